//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/conversation"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/poller"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// Traced agent settings.
const (
	AgentTraceSpanName = "financial-education-agent-tracing"
	TracedAgentName    = "fun-financial-education-agent"
	// DefaultTracedAgentModel is used when no agent model is configured.
	DefaultTracedAgentModel = "gpt-4.1-nano"
	TracedAgentPrompt       = "Tell me the types of mortgages available in Switzerland and their pros and cons."
	TracedAgentInstructions = `You are a friendly AI Financial Education Agent.
You provide general financial advice and education, but always:
1. Include disclaimers about the general nature of your advice.
2. Encourage the user to consult financial professionals.
3. Provide general, non-diagnostic advice around finance and budgeting.
4. Clearly remind them you're not a financial advisor.
5. Encourage safe and balanced approaches to financial planning.`
)

// TraceAgent runs the financial education agent under one span exported
// to the project's Application Insights. Nothing is created when the
// project has no telemetry connection.
func (r *Runner) TraceAgent(ctx context.Context) (err error) {
	if err := r.cfg.Validate(config.TracingKeys...); err != nil {
		return err
	}
	clean, err := r.startTelemetry(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := clean(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, span := atrace.Tracer.Start(ctx, AgentTraceSpanName)
	defer span.End()
	defer func() { itelemetry.TraceError(span, err) }()

	agentModel := r.cfg.AgentModel
	if agentModel == "" {
		agentModel = DefaultTracedAgentModel
	}
	sess, err := conversation.Start(ctx, r.svc, conversation.Request{
		Agent: agentservice.AgentSpec{
			Name:         TracedAgentName,
			Model:        agentModel,
			Instructions: TracedAgentInstructions,
		},
		Prompt: TracedAgentPrompt,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("delete agent: %w", cerr)
		}
	}()
	r.printf("Created agent with ID: %s", sess.Agent.ID)
	r.printf("Created thread, thread ID: %s", sess.Thread.ID)

	threads, err := sess.ListThreads(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIAgentID, sess.Agent.ID),
		attribute.String(semconv.KeyGenAIConversationID, sess.Thread.ID),
		attribute.Int(semconv.KeyThreadCount, len(threads)),
	)
	r.printf("Created message, message ID: %s", sess.Message.ID)

	p := r.newPoller(poller.WithRunCreated(func(run *agentservice.Run) {
		span.SetAttributes(attribute.String(semconv.KeyRunID, run.ID))
	}))
	if err := r.reportRun(p.Run(ctx, sess.Thread.ID, sess.Agent.ID)); err != nil {
		return err
	}

	if err := sess.Close(ctx); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	r.printf("Deleted agent")

	lines, err := transcript.NewCollector(r.svc).Collect(ctx, sess.Thread.ID)
	if err != nil {
		return err
	}
	return transcript.Render(r.out, lines)
}
