//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agentservice defines the hosted agent service consumed by the
// workflows: agents, threads, messages and runs.
//
// The remote service owns every resource. Local code only creates them and
// observes their state.
package agentservice

import (
	"context"
	"time"
)

// Role is the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Order is the sort order used when listing messages.
type Order string

// List orders.
const (
	OrderAscending  Order = "asc"
	OrderDescending Order = "desc"
)

// RunStatus is the status of a run as reported by the service.
type RunStatus string

// Run statuses.
const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// IsTerminal reports whether the run can no longer change status.
// Any status the client does not know is treated as terminal.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction, RunStatusCancelling:
		return false
	}
	return true
}

// ToolDefinition declares a function tool attached to an agent.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Agent is a configured conversational entity hosted by the service.
type Agent struct {
	ID           string
	Name         string
	Model        string
	Instructions string
	Tools        []ToolDefinition
	CreatedAt    time.Time
}

// AgentSpec holds the arguments of CreateAgent.
type AgentSpec struct {
	Name         string
	Model        string
	Instructions string
	Description  string
	Tools        []ToolDefinition
	Temperature  *float64
}

// Thread is a conversation session.
type Thread struct {
	ID        string
	CreatedAt time.Time
}

// Message is one immutable entry in a thread.
type Message struct {
	ID        string
	ThreadID  string
	RunID     string
	AgentID   string
	Role      Role
	Content   []Content
	CreatedAt time.Time
}

// ContentType is the kind of a content segment.
type ContentType string

// Content types.
const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image_file"
)

// Content is one segment of a message body.
type Content struct {
	Type ContentType
	Text string
}

// Texts returns the text segments of the message in order.
func (m Message) Texts() []string {
	var out []string
	for _, c := range m.Content {
		if c.Type == ContentText {
			out = append(out, c.Text)
		}
	}
	return out
}

// LastText returns the last text segment and whether one exists.
func (m Message) LastText() (string, bool) {
	texts := m.Texts()
	if len(texts) == 0 {
		return "", false
	}
	return texts[len(texts)-1], true
}

// RunError is the error detail attached to a failed run.
type RunError struct {
	Code    string
	Message string
}

// ToolCall is a function invocation requested by a run.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	// Output is set once the result has been submitted.
	Output string
}

// Usage is the token usage of a run.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID        string
	ThreadID  string
	AgentID   string
	Status    RunStatus
	LastError *RunError
	// RequiredToolCalls is filled while Status is requires_action.
	RequiredToolCalls []ToolCall
	Instructions      string
	Usage             Usage
	CreatedAt         time.Time
}

// RunStepType is the kind of a run step.
type RunStepType string

// Run step types.
const (
	RunStepMessageCreation RunStepType = "message_creation"
	RunStepToolCalls       RunStepType = "tool_calls"
)

// RunStep is one step executed while processing a run.
type RunStep struct {
	ID        string
	RunID     string
	Type      RunStepType
	MessageID string
	ToolCalls []ToolCall
	CreatedAt time.Time
}

// ToolOutput is the result of a tool call submitted back to a run.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// Service is the hosted agent service.
// Implementations return *errs.RemoteServiceError for failed remote calls.
type Service interface {
	CreateAgent(ctx context.Context, spec AgentSpec) (*Agent, error)
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error

	CreateThread(ctx context.Context) (*Thread, error)
	ListThreads(ctx context.Context) ([]Thread, error)

	CreateMessage(ctx context.Context, threadID string, role Role, text string) (*Message, error)
	// ListMessages returns every message of the thread, following pagination.
	// A non-empty runID restricts the result to messages of that run.
	ListMessages(ctx context.Context, threadID string, order Order, runID string) ([]Message, error)

	CreateRun(ctx context.Context, threadID, agentID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListRuns(ctx context.Context, threadID string) ([]Run, error)
	ListRunSteps(ctx context.Context, threadID, runID string) ([]RunStep, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
}
