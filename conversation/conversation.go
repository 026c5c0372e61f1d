//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package conversation starts agent sessions: it creates the agent and the
// thread and posts the opening message.
//
// The Session owns the agent for its whole lifetime and deletes it exactly
// once in Close, whatever the outcome of the runs in between.
package conversation

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
)

// Request describes the session to start.
type Request struct {
	Agent agentservice.AgentSpec
	// Prompt is posted as the first user message. Empty skips the message.
	Prompt string
}

// Session holds the remote resources created by Start.
type Session struct {
	svc     agentservice.Service
	Agent   *agentservice.Agent
	Thread  *agentservice.Thread
	Message *agentservice.Message

	closeOnce sync.Once
	closeErr  error
}

// Start creates the agent, the thread and the opening message.
// Any failure aborts immediately; an agent created before the failure is
// deleted before returning.
func Start(ctx context.Context, svc agentservice.Service, req Request) (*Session, error) {
	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewCreateAgentSpanName(req.Agent.Name))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIOperationName, itelemetry.OperationCreateAgent),
		attribute.String(semconv.KeyGenAIAgentName, req.Agent.Name),
		attribute.String(semconv.KeyGenAIRequestModel, req.Agent.Model),
	)
	if atrace.ContentRecordingEnabled() {
		if req.Agent.Instructions != "" {
			span.SetAttributes(itelemetry.InstructionsAttribute(req.Agent.Instructions))
		}
		if req.Prompt != "" {
			span.SetAttributes(itelemetry.MessagesAttribute(semconv.KeyGenAIInputMessages,
				itelemetry.TextMessage(string(agentservice.RoleUser), req.Prompt)))
		}
	}

	agent, err := svc.CreateAgent(ctx, req.Agent)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(semconv.KeyGenAIAgentID, agent.ID))
	s := &Session{svc: svc, Agent: agent}

	thread, err := svc.CreateThread(ctx)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, s.abort(ctx, err)
	}
	s.Thread = thread
	span.SetAttributes(attribute.String(semconv.KeyGenAIConversationID, thread.ID))

	if req.Prompt != "" {
		msg, err := svc.CreateMessage(ctx, thread.ID, agentservice.RoleUser, req.Prompt)
		if err != nil {
			itelemetry.TraceError(span, err)
			return nil, s.abort(ctx, err)
		}
		s.Message = msg
	}
	return s, nil
}

func (s *Session) abort(ctx context.Context, cause error) error {
	if err := s.Close(context.WithoutCancel(ctx)); err != nil {
		log.WarnfContext(ctx, "conversation: cleanup after failed start: %v", err)
	}
	return cause
}

// Post appends another message to the session thread.
func (s *Session) Post(ctx context.Context, role agentservice.Role, text string) (*agentservice.Message, error) {
	return s.svc.CreateMessage(ctx, s.Thread.ID, role, text)
}

// ListThreads lists the threads visible to the project.
func (s *Session) ListThreads(ctx context.Context) ([]agentservice.Thread, error) {
	return s.svc.ListThreads(ctx)
}

// Close deletes the agent. Only the first call reaches the service; later
// calls return the first result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.Agent == nil {
			return
		}
		s.closeErr = s.svc.DeleteAgent(ctx, s.Agent.ID)
		if s.closeErr == nil {
			log.DebugfContext(ctx, "conversation: deleted agent %s", s.Agent.ID)
		}
	})
	return s.closeErr
}
