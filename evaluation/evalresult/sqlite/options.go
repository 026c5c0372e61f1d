//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"fmt"
	"regexp"
	"time"
)

const (
	defaultInitTimeout = 30 * time.Second
	defaultPath        = ".foundry/results/reports.db"
)

var tablePrefixRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// options holds configuration for the SQLite report manager.
type options struct {
	// path is the database file. ":memory:" keeps the database in memory.
	path string
	// skipDBInit indicates whether schema initialization is skipped.
	skipDBInit bool
	// tablePrefix is the prefix applied to the table name.
	tablePrefix string
	// initTimeout is the timeout used for schema initialization.
	initTimeout time.Duration
}

// Option configures options.
type Option func(*options)

func newOptions(opts ...Option) *options {
	o := &options{
		path:        defaultPath,
		initTimeout: defaultInitTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithPath sets the database file.
func WithPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.path = path
		}
	}
}

// WithSkipDBInit skips table creation.
func WithSkipDBInit(skip bool) Option {
	return func(o *options) {
		o.skipDBInit = skip
	}
}

// WithTablePrefix sets a prefix for the table name.
// It panics on a prefix that is not a plain SQL identifier.
func WithTablePrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" && !tablePrefixRegex.MatchString(prefix) {
			panic(fmt.Sprintf("invalid table prefix %q", prefix))
		}
		o.tablePrefix = prefix
	}
}

// WithInitTimeout sets the timeout for schema initialization.
func WithInitTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout <= 0 {
			return
		}
		o.initTimeout = timeout
	}
}
