//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow wires the session, poller, transcript and evaluation
// stages into the evaluate, trace-agent and trace-graph flows.
//
// Every flow writes its user facing progress lines to the configured
// writer; diagnostics go through the log package.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/poller"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/appinsights"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
)

// ConnectionResolver looks up the Application Insights connection of
// the project.
type ConnectionResolver interface {
	Resolve(ctx context.Context) (appinsights.ConnectionString, error)
}

// TraceStarter installs a tracer provider exporting to cs and returns
// its cleanup.
type TraceStarter func(ctx context.Context, cs appinsights.ConnectionString) (func() error, error)

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets the writer of progress lines. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithPollerOptions appends options to the run poller.
func WithPollerOptions(opts ...poller.Option) Option {
	return func(r *Runner) {
		r.pollOpts = append(r.pollOpts, opts...)
	}
}

// WithEvaluators replaces the default judge based evaluators.
func WithEvaluators(evaluators map[string]evaluator.Evaluator) Option {
	return func(r *Runner) {
		r.evaluators = evaluators
	}
}

// WithEvaluatorNames restricts the default evaluators to names.
func WithEvaluatorNames(names ...string) Option {
	return func(r *Runner) {
		r.evaluatorNames = names
	}
}

// WithPipelineOptions appends options to the evaluation pipeline.
func WithPipelineOptions(opts ...evaluation.Option) Option {
	return func(r *Runner) {
		r.pipelineOpts = append(r.pipelineOpts, opts...)
	}
}

// WithResultManager stores evaluation reports in m.
func WithResultManager(m evalresult.Manager) Option {
	return func(r *Runner) {
		r.results = m
	}
}

// WithMetricsTextfile writes the evaluation gauges to path.
func WithMetricsTextfile(path string) Option {
	return func(r *Runner) {
		r.metricsTextfile = path
	}
}

// WithConnectionResolver replaces the Application Insights lookup.
func WithConnectionResolver(c ConnectionResolver) Option {
	return func(r *Runner) {
		r.resolver = c
	}
}

// WithTraceStarter replaces the OTLP tracer setup.
func WithTraceStarter(fn TraceStarter) Option {
	return func(r *Runner) {
		r.startTrace = fn
	}
}

// WithChatModel sets the model of the graph chatbot.
func WithChatModel(m model.Model) Option {
	return func(r *Runner) {
		r.chatModel = m
	}
}

// WithGraphTools sets the tools bound to the graph chatbot.
func WithGraphTools(tools *tool.Set) Option {
	return func(r *Runner) {
		r.graphTools = tools
	}
}

// WithAgentTools sets the function tools attached to the evaluated agent.
func WithAgentTools(tools *tool.Set) Option {
	return func(r *Runner) {
		r.agentTools = tools
	}
}

// Runner runs the flows against one agent service.
type Runner struct {
	cfg *config.Config
	svc agentservice.Service
	out io.Writer

	pollOpts        []poller.Option
	agentTools      *tool.Set
	evaluators      map[string]evaluator.Evaluator
	evaluatorNames  []string
	pipelineOpts    []evaluation.Option
	results         evalresult.Manager
	metricsTextfile string

	resolver   ConnectionResolver
	startTrace TraceStarter
	chatModel  model.Model
	graphTools *tool.Set
}

// New returns a Runner. cfg must already be loaded.
func New(cfg *config.Config, svc agentservice.Service, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, svc: svc, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Runner) newPoller(extra ...poller.Option) *poller.Poller {
	opts := []poller.Option{
		poller.WithConfig(r.cfg.Poll),
		poller.WithObserver(func(run *agentservice.Run) {
			r.printf("Run status: %s", run.Status)
		}),
	}
	opts = append(opts, extra...)
	opts = append(opts, r.pollOpts...)
	return poller.New(r.svc, opts...)
}

// reportRun prints the outcome of a finished run. A failed run is
// reported and tolerated; every other error is returned.
func (r *Runner) reportRun(run *agentservice.Run, err error) error {
	if err == nil {
		return nil
	}
	if errs.IsRunFailed(err) {
		var detail string
		if run != nil && run.LastError != nil {
			detail = (&errs.RunFailed{Code: run.LastError.Code, Message: run.LastError.Message}).Detail()
		} else {
			detail = err.Error()
		}
		r.printf("Run error: %s", detail)
		return nil
	}
	return err
}

// startTelemetry resolves the connection string and starts tracing. A
// project without Application Insights yields the instruction text and a
// *errs.TelemetryUnavailable before anything is created.
func (r *Runner) startTelemetry(ctx context.Context) (func() error, error) {
	resolver := r.resolver
	if resolver == nil {
		c, err := appinsights.New(r.cfg.ProjectEndpoint, appinsights.WithAPIVersion(r.cfg.ProjectAPIVersion))
		if err != nil {
			return nil, err
		}
		resolver = c
	}
	cs, err := resolver.Resolve(ctx)
	if err != nil {
		if errs.IsTelemetryUnavailable(err) {
			r.printf("%s", errs.TelemetryInstruction)
		}
		return nil, err
	}
	start := r.startTrace
	if start == nil {
		start = func(ctx context.Context, cs appinsights.ConnectionString) (func() error, error) {
			return atrace.Start(ctx,
				atrace.WithConnectionString(cs),
				atrace.WithProtocol(r.cfg.Telemetry.Protocol),
				atrace.WithServiceName(r.cfg.Telemetry.ServiceName),
				atrace.WithContentRecording(r.cfg.ContentRecording),
			)
		}
	}
	clean, err := start(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("start tracing: %w", err)
	}
	return func() error {
		if err := clean(); err != nil {
			log.Warnf("workflow: flush traces: %v", err)
			return err
		}
		return nil
	}, nil
}
