//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package evalresult defines the evaluation report and its storage.
package evalresult

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
)

// Report is the outcome of one evaluation pipeline run.
type Report struct {
	// ID uniquely identifies this report.
	ID string `json:"id"`
	// DataFile is the JSONL file the records were read from.
	DataFile string `json:"data_file,omitempty"`
	// Metrics maps "<evaluator>.<metric>" to an aggregate value.
	Metrics map[string]Metric `json:"metrics"`
	// Rows holds the per-record outputs in record order.
	Rows []Row `json:"rows"`
	// StudioURL links the project in AI Foundry, if known.
	StudioURL string `json:"studio_url,omitempty"`
	// CreatedAt is when the report was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Metric is one aggregate value. Value is nil when nothing was evaluated.
type Metric struct {
	Value  *float64          `json:"value"`
	Status status.EvalStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// Row holds the outputs of all evaluators for one record.
type Row struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
	// Outputs maps "<evaluator>.<key>" to a value.
	Outputs map[string]any `json:"outputs"`
}

// MetricNames returns the metric keys sorted lexicographically.
func (r *Report) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager defines the interface for managing evaluation reports.
type Manager interface {
	// Save stores a report under appName and returns its ID.
	// A report without ID gets a generated one.
	Save(ctx context.Context, appName string, report *Report) (string, error)
	// Get retrieves a report by ID. Missing reports wrap os.ErrNotExist.
	Get(ctx context.Context, appName, reportID string) (*Report, error)
	// List returns the IDs of all reports stored under appName.
	List(ctx context.Context, appName string) ([]string, error)
	// Close releases the resources held by the manager.
	Close() error
}

// Prepare validates the Save arguments and fills the report ID and time.
// Backends call it before writing.
func Prepare(appName string, report *Report) error {
	if appName == "" {
		return errors.New("app name is empty")
	}
	if report == nil {
		return errors.New("report is nil")
	}
	if report.ID == "" {
		report.ID = fmt.Sprintf("%s_%s", appName, uuid.New().String())
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	return nil
}

// CheckGet validates the Get arguments.
func CheckGet(appName, reportID string) error {
	if appName == "" {
		return errors.New("app name is empty")
	}
	if reportID == "" {
		return errors.New("report id is empty")
	}
	return nil
}
