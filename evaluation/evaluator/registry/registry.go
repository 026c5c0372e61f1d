//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package registry maps evaluator names to evaluators and resolves the
// selection given on the command line.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
)

// Registry defines the interface for evaluators registry.
type Registry interface {
	// Register registers an evaluator to the registry.
	Register(name string, e evaluator.Evaluator) error
	// Get retrieves an evaluator by name.
	Get(name string) (evaluator.Evaluator, error)
	// List returns the names of all registered evaluators.
	List() []string
	// Select returns the evaluators registered under names, in order.
	Select(names ...string) (map[string]evaluator.Evaluator, error)
}

// registry is the default implementation of Registry.
type registry struct {
	mu         sync.RWMutex
	evaluators map[string]evaluator.Evaluator
}

// New creates an evaluator registry holding evaluators keyed by their Name.
func New(evaluators ...evaluator.Evaluator) Registry {
	r := &registry{
		evaluators: make(map[string]evaluator.Evaluator),
	}
	for _, e := range evaluators {
		_ = r.Register("", e)
	}
	return r
}

// Register registers an evaluator to the registry.
// Same name evaluator will be overwritten.
func (r *registry) Register(name string, e evaluator.Evaluator) error {
	if e == nil {
		return errors.New("evaluator is nil")
	}
	if name == "" {
		name = e.Name()
	}
	if name == "" {
		return errors.New("evaluator name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[name] = e
	return nil
}

// Get gets an evaluator by name.
// Returns os.ErrNotExist if the evaluator is not found.
func (r *registry) Get(name string) (evaluator.Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.evaluators[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("get evaluator %s: %w", name, os.ErrNotExist)
}

// List returns the names of all registered evaluators sorted lexicographically.
func (r *registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves names, as typed on the command line, into evaluators keyed
// by name. Blank and repeated names are skipped; no names selects every
// registered evaluator. Unknown names are reported together along with the
// known ones.
func (r *registry) Select(names ...string) (map[string]evaluator.Evaluator, error) {
	if len(names) == 0 {
		names = r.List()
	}
	out := make(map[string]evaluator.Evaluator, len(names))
	var merr *multierror.Error
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, seen := out[name]; seen || name == "" {
			continue
		}
		e, err := r.Get(name)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		out[name] = e
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("select evaluators (known: %s): %w", strings.Join(r.List(), ", "), err)
	}
	return out, nil
}
