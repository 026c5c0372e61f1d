//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package local provides a local file storage implementation for evaluation reports.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
)

var _ evalresult.Manager = (*manager)(nil)

// manager implements the evalresult.Manager interface using local file storage.
type manager struct {
	baseDir string
	locator evalresult.Locator
	mu      sync.Mutex
}

// New creates a local file evaluation report manager.
func New(opt ...Option) evalresult.Manager {
	opts := newOptions(opt...)
	return &manager{baseDir: opts.baseDir, locator: opts.locator}
}

// Save stores a report as an indented JSON file.
func (m *manager) Save(_ context.Context, appName string, report *evalresult.Report) (string, error) {
	if err := evalresult.Prepare(appName, report); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := m.reportPath(appName, report.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("encode report %s: %w", report.ID, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return report.ID, nil
}

// Get reads a report file.
func (m *manager) Get(_ context.Context, appName, reportID string) (*evalresult.Report, error) {
	if err := evalresult.CheckGet(appName, reportID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.Open(m.reportPath(appName, reportID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("report %s.%s not found: %w", appName, reportID, os.ErrNotExist)
		}
		return nil, err
	}
	defer f.Close()
	var report evalresult.Report
	if err := json.NewDecoder(f).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report %s.%s: %w", appName, reportID, err)
	}
	return &report, nil
}

// List returns the report IDs stored under appName.
func (m *manager) List(_ context.Context, appName string) ([]string, error) {
	if appName == "" {
		return nil, errors.New("app name is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locator.List(m.baseDir, appName)
}

// Close implements evalresult.Manager.
func (m *manager) Close() error {
	return nil
}

func (m *manager) reportPath(appName, reportID string) string {
	return m.locator.Build(m.baseDir, appName, reportID)
}
