//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package evaluator defines the contract shared by quality evaluators.
package evaluator

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// DefaultThreshold is the minimum Likert score that passes.
const DefaultThreshold = 3.0

// Evaluator scores evaluation records.
// Implementations hold no mutable state and may be called concurrently.
type Evaluator interface {
	// Name is the key under which results are reported.
	Name() string
	// Description describes the evaluator.
	Description() string
	// Evaluate scores every record and aggregates the scores.
	Evaluate(ctx context.Context, records []*transcript.Record) (*Result, error)
}

// RecordEvaluator is implemented by evaluators that score records
// independently, which lets callers fan records out.
type RecordEvaluator interface {
	Evaluator
	// EvaluateRecord scores one record.
	EvaluateRecord(ctx context.Context, record *transcript.Record) (*RecordResult, error)
	// Threshold is the minimum passing score used by Aggregate.
	Threshold() float64
}

// RecordResult is the verdict on one record.
type RecordResult struct {
	Score     float64           `json:"score"`
	Status    status.EvalStatus `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Threshold float64           `json:"threshold"`
}

// Result is the verdict of one evaluator over a set of records.
type Result struct {
	// OverallScore is the mean score of the evaluated records.
	OverallScore  float64           `json:"overall_score"`
	OverallStatus status.EvalStatus `json:"overall_status"`
	// PassRate is the share of evaluated records that passed.
	PassRate  float64         `json:"pass_rate"`
	Threshold float64         `json:"threshold"`
	PerRecord []*RecordResult `json:"per_record"`
}

// NotEvaluated returns a record result that carries no score.
func NotEvaluated(reason string, threshold float64) *RecordResult {
	return &RecordResult{Status: status.EvalStatusNotEvaluated, Reason: reason, Threshold: threshold}
}

// Aggregate averages the evaluated records, skipping not-evaluated ones.
// Without any evaluated record the overall status is not_evaluated.
func Aggregate(results []*RecordResult, threshold float64) *Result {
	out := &Result{Threshold: threshold, PerRecord: results}
	sum, passed, evaluated := 0.0, 0, 0
	for _, r := range results {
		if r == nil || r.Status == status.EvalStatusNotEvaluated {
			continue
		}
		evaluated++
		sum += r.Score
		if r.Status == status.EvalStatusPassed {
			passed++
		}
	}
	if evaluated == 0 {
		out.OverallStatus = status.EvalStatusNotEvaluated
		return out
	}
	out.OverallScore = sum / float64(evaluated)
	out.PassRate = float64(passed) / float64(evaluated)
	out.OverallStatus = status.FromScore(out.OverallScore, threshold)
	return out
}

// ScoreKey is the row key of the score of evaluator name.
func ScoreKey(name string) string { return name }

// ResultKey is the key of the pass or fail label.
func ResultKey(name string) string { return name + "_result" }

// ReasonKey is the key of the judge explanation.
func ReasonKey(name string) string { return name + "_reason" }

// ThresholdKey is the key of the threshold used.
func ThresholdKey(name string) string { return name + "_threshold" }

// Outputs renders r as the row fields of evaluator name.
func (r *RecordResult) Outputs(name string) map[string]any {
	out := map[string]any{
		ResultKey(name):    r.Status.Label(),
		ReasonKey(name):    r.Reason,
		ThresholdKey(name): r.Threshold,
	}
	if r.Status == status.EvalStatusNotEvaluated {
		out[ScoreKey(name)] = nil
	} else {
		out[ScoreKey(name)] = r.Score
	}
	return out
}
