//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package poller submits agent runs and polls them until they settle.
//
// The poller waits one interval before every status read and stops at the
// first terminal status. Attempts and wall time can be bounded; exceeding a
// bound yields *errs.Timeout. A failed run is returned together with
// *errs.RunFailed so callers can report it and carry on.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
)

// DefaultInterval is the wait between two status reads.
const DefaultInterval = time.Second

// Observer is notified after every status read.
type Observer func(run *agentservice.Run)

// ToolHandler answers the tool calls of a run in requires_action.
type ToolHandler interface {
	HandleToolCalls(ctx context.Context, calls []agentservice.ToolCall) ([]agentservice.ToolOutput, error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the wait between status reads. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of status reads. Zero is unbounded.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		p.maxAttempts = n
	}
}

// WithMaxDuration bounds the time spent polling. Zero is unbounded.
func WithMaxDuration(d time.Duration) Option {
	return func(p *Poller) {
		p.maxDuration = d
	}
}

// WithConfig applies the poll section of the configuration.
func WithConfig(c config.PollConfig) Option {
	return func(p *Poller) {
		WithInterval(c.Interval)(p)
		p.maxAttempts = c.MaxAttempts
		p.maxDuration = c.MaxDuration
	}
}

// WithObserver registers fn to be called after every status read.
func WithObserver(fn Observer) Option {
	return func(p *Poller) {
		p.observer = fn
	}
}

// WithRunCreated registers fn to be called once Run has created the run,
// before the first status read.
func WithRunCreated(fn Observer) Option {
	return func(p *Poller) {
		p.created = fn
	}
}

// WithToolHandler lets the poller resolve requires_action locally.
// Without one the run is polled until the service moves it on.
func WithToolHandler(h ToolHandler) Option {
	return func(p *Poller) {
		p.tools = h
	}
}

// Poller drives runs of one agent service.
type Poller struct {
	svc         agentservice.Service
	interval    time.Duration
	maxAttempts int
	maxDuration time.Duration
	observer    Observer
	created     Observer
	tools       ToolHandler
	now         func() time.Time
}

// New returns a Poller for svc.
func New(svc agentservice.Service, opts ...Option) *Poller {
	p := &Poller{svc: svc, interval: DefaultInterval, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run creates a run of agentID on threadID and waits for it.
func (p *Poller) Run(ctx context.Context, threadID, agentID string) (*agentservice.Run, error) {
	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewInvokeAgentSpanName(agentID))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIOperationName, itelemetry.OperationInvokeAgent),
		attribute.String(semconv.KeyGenAISystem, semconv.SystemAzureAIAgents),
		attribute.String(semconv.KeyGenAIAgentID, agentID),
		attribute.String(semconv.KeyGenAIConversationID, threadID),
	)

	run, err := p.svc.CreateRun(ctx, threadID, agentID)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(semconv.KeyRunID, run.ID))
	log.InfofContext(ctx, "poller: created run %s", run.ID)
	if p.created != nil {
		p.created(run)
	}

	run, err = p.Wait(ctx, run)
	if run != nil {
		span.SetAttributes(
			attribute.String(semconv.KeyRunStatus, string(run.Status)),
			attribute.Int64(semconv.KeyGenAIUsageInputTokens, run.Usage.PromptTokens),
			attribute.Int64(semconv.KeyGenAIUsageOutputTokens, run.Usage.CompletionTokens),
		)
		if err == nil && atrace.ContentRecordingEnabled() {
			p.recordReply(ctx, span, run)
		}
	}
	itelemetry.TraceError(span, err)
	return run, err
}

// recordReply attaches the assistant messages of a settled run to span.
func (p *Poller) recordReply(ctx context.Context, span trace.Span, run *agentservice.Run) {
	msgs, err := p.svc.ListMessages(ctx, run.ThreadID, agentservice.OrderAscending, run.ID)
	if err != nil {
		log.WarnfContext(ctx, "poller: list messages of run %s for tracing: %v", run.ID, err)
		return
	}
	var out []itelemetry.Message
	for _, m := range msgs {
		if m.Role != agentservice.RoleAssistant {
			continue
		}
		if text, ok := m.LastText(); ok {
			out = append(out, itelemetry.TextMessage(string(m.Role), text))
		}
	}
	if len(out) > 0 {
		span.SetAttributes(itelemetry.MessagesAttribute(semconv.KeyGenAIOutputMessages, out...))
	}
}

// Wait polls run until it reaches a terminal status.
//
// The returned run is the last observed one, also when err is a Timeout,
// a RunFailed or a context error. Tool output submissions share the
// attempt and duration bounds with status reads.
func (p *Poller) Wait(ctx context.Context, run *agentservice.Run) (*agentservice.Run, error) {
	if run == nil {
		return nil, fmt.Errorf("poller: nil run")
	}
	start := p.now()
	attempts := 0
	timer := time.NewTimer(p.interval)
	timer.Stop()
	defer timer.Stop()

	for !run.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return run, p.timeout(run, attempts, start)
		}
		if p.maxDuration > 0 && p.now().Sub(start) >= p.maxDuration {
			return run, p.timeout(run, attempts, start)
		}

		// A tool submission counts as an attempt.
		if run.Status == agentservice.RunStatusRequiresAction && p.tools != nil && len(run.RequiredToolCalls) > 0 {
			next, err := p.submitToolOutputs(ctx, run)
			if err != nil {
				return run, err
			}
			attempts++
			run = next
			continue
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-timer.C:
		}

		next, err := p.svc.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, err
		}
		attempts++
		run = next
		itelemetry.IncRunPoll(ctx, string(run.Status))
		log.DebugfContext(ctx, "poller: run %s is %s after %d polls", run.ID, run.Status, attempts)
		if p.observer != nil {
			p.observer(run)
		}
	}

	itelemetry.RecordRunDuration(ctx, string(run.Status), p.now().Sub(start))
	if run.Status == agentservice.RunStatusFailed {
		failed := &errs.RunFailed{RunID: run.ID}
		if run.LastError != nil {
			failed.Code = run.LastError.Code
			failed.Message = run.LastError.Message
		}
		return run, failed
	}
	return run, nil
}

func (p *Poller) submitToolOutputs(ctx context.Context, run *agentservice.Run) (*agentservice.Run, error) {
	outputs, err := p.tools.HandleToolCalls(ctx, run.RequiredToolCalls)
	if err != nil {
		return nil, fmt.Errorf("run %s: handle tool calls: %w", run.ID, err)
	}
	log.InfofContext(ctx, "poller: submitting %d tool outputs for run %s", len(outputs), run.ID)
	next, err := p.svc.SubmitToolOutputs(ctx, run.ThreadID, run.ID, outputs)
	if err != nil {
		return nil, err
	}
	if p.observer != nil {
		p.observer(next)
	}
	return next, nil
}

func (p *Poller) timeout(run *agentservice.Run, attempts int, start time.Time) error {
	return &errs.Timeout{
		RunID:      run.ID,
		LastStatus: string(run.Status),
		Attempts:   attempts,
		Elapsed:    p.now().Sub(start),
	}
}
