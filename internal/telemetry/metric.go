//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
)

// Instruments. Replaced by InitMeters.
var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	RunPolls        metric.Int64Counter     = noop.Int64Counter{}
	RunDuration     metric.Float64Histogram = noop.Float64Histogram{}
	ToolCalls       metric.Int64Counter     = noop.Int64Counter{}
	EvaluationScore metric.Float64Histogram = noop.Float64Histogram{}
	ChatDuration    metric.Float64Histogram = noop.Float64Histogram{}
	ChatTokenUsage  metric.Int64Histogram   = noop.Int64Histogram{}
)

// InitMeters creates every instrument from mp.
func InitMeters(mp metric.MeterProvider) error {
	if mp == nil {
		return fmt.Errorf("meter provider is nil")
	}
	m := mp.Meter(semconv.MeterName)
	var err error
	if RunPolls, err = m.Int64Counter(semconv.MetricRunPolls,
		metric.WithDescription("Number of run status polls"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricRunPolls, err)
	}
	if RunDuration, err = m.Float64Histogram(semconv.MetricRunDuration,
		metric.WithDescription("Time from run creation to terminal status"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricRunDuration, err)
	}
	if ToolCalls, err = m.Int64Counter(semconv.MetricToolCalls,
		metric.WithDescription("Number of local tool executions"), metric.WithUnit("1")); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricToolCalls, err)
	}
	if EvaluationScore, err = m.Float64Histogram(semconv.MetricEvaluationScore,
		metric.WithDescription("Evaluator scores per record"), metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5)); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricEvaluationScore, err)
	}
	if ChatDuration, err = m.Float64Histogram(semconv.MetricClientOperationDur,
		metric.WithDescription("Duration of chat completions"), metric.WithUnit("s")); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricClientOperationDur, err)
	}
	if ChatTokenUsage, err = m.Int64Histogram(semconv.MetricClientTokenUsage,
		metric.WithDescription("Token usage of chat completions"), metric.WithUnit("{token}")); err != nil {
		return fmt.Errorf("create metric %s: %w", semconv.MetricClientTokenUsage, err)
	}
	MeterProvider = mp
	return nil
}

// IncRunPoll counts one GetRun call.
func IncRunPoll(ctx context.Context, status string) {
	RunPolls.Add(ctx, 1, metric.WithAttributes(attribute.String(semconv.KeyRunStatus, status)))
}

// RecordRunDuration records how long a run took to settle.
func RecordRunDuration(ctx context.Context, status string, d time.Duration) {
	RunDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(semconv.KeyRunStatus, status)))
}

// IncToolCall counts one local tool execution.
func IncToolCall(ctx context.Context, toolName, outcome string) {
	ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String(semconv.KeyGenAIToolName, toolName),
		attribute.String(semconv.KeyToolOutcome, outcome),
	))
}

// RecordEvaluationScore records one per-record evaluator score.
func RecordEvaluationScore(ctx context.Context, evaluator, status string, score float64) {
	EvaluationScore.Record(ctx, score, metric.WithAttributes(
		attribute.String(semconv.KeyGenAIEvaluationName, evaluator),
		attribute.String(semconv.KeyEvaluationStatus, status),
	))
}

// RecordChat records duration and token usage of one chat completion.
func RecordChat(ctx context.Context, model string, d time.Duration, inputTokens, outputTokens int64) {
	base := []attribute.KeyValue{
		attribute.String(semconv.KeyGenAIOperationName, OperationChat),
		attribute.String(semconv.KeyGenAIRequestModel, model),
	}
	ChatDuration.Record(ctx, d.Seconds(), metric.WithAttributes(base...))
	ChatTokenUsage.Record(ctx, inputTokens, metric.WithAttributes(
		append(base[:len(base):len(base)], attribute.String(semconv.KeyGenAITokenType, semconv.ValueTokenTypeInput))...))
	ChatTokenUsage.Record(ctx, outputTokens, metric.WithAttributes(
		append(base[:len(base):len(base)], attribute.String(semconv.KeyGenAITokenType, semconv.ValueTokenTypeOutput))...))
}
