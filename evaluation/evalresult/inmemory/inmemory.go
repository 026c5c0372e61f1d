//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory storage implementation for evaluation reports.
package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
)

var _ evalresult.Manager = (*Manager)(nil)

// Manager implements the evalresult.Manager interface using in-memory storage.
// Reports are stored as JSON so callers cannot mutate saved reports.
type Manager struct {
	mu      sync.RWMutex
	reports map[string]map[string][]byte
}

// New creates an in-memory evaluation report manager.
func New() *Manager {
	return &Manager{reports: make(map[string]map[string][]byte)}
}

// Save stores a report in memory.
func (m *Manager) Save(_ context.Context, appName string, report *evalresult.Report) (string, error) {
	if err := evalresult.Prepare(appName, report); err != nil {
		return "", err
	}
	b, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report %s: %w", report.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports[appName] == nil {
		m.reports[appName] = make(map[string][]byte)
	}
	m.reports[appName][report.ID] = b
	return report.ID, nil
}

// Get retrieves a report by ID from memory.
func (m *Manager) Get(_ context.Context, appName, reportID string) (*evalresult.Report, error) {
	if err := evalresult.CheckGet(appName, reportID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	b, ok := m.reports[appName][reportID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("report %s.%s not found: %w", appName, reportID, os.ErrNotExist)
	}
	var report evalresult.Report
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns the sorted report IDs stored under appName.
func (m *Manager) List(_ context.Context, appName string) ([]string, error) {
	if appName == "" {
		return nil, errors.New("app name is empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.reports[appName]))
	for id := range m.reports[appName] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements evalresult.Manager.
func (m *Manager) Close() error {
	return nil
}
