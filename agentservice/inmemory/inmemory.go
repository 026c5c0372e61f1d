//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a scripted in-process agentservice.Service.
//
// Runs follow a status script: the first status is reported at creation
// and every GetRun advances one entry until the last one. It backs unit
// tests and the --dry-run mode of the CLI.
package inmemory

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
)

// Operation names used for call counting and failure injection.
const (
	OpCreateAgent       = "create agent"
	OpGetAgent          = "get agent"
	OpDeleteAgent       = "delete agent"
	OpCreateThread      = "create thread"
	OpListThreads       = "list threads"
	OpCreateMessage     = "create message"
	OpListMessages      = "list messages"
	OpCreateRun         = "create run"
	OpGetRun            = "get run"
	OpListRuns          = "list runs"
	OpListRunSteps      = "list run steps"
	OpSubmitToolOutputs = "submit tool outputs"
)

// RunScript describes how every run created by the service evolves.
type RunScript struct {
	// Statuses are reported in order. Defaults to queued, in_progress, completed.
	Statuses []agentservice.RunStatus
	// LastError is attached once the run reports failed.
	LastError *agentservice.RunError
	// Reply produces the assistant answer appended when the run completes.
	Reply func(prompt string) string
	// ToolCalls are requested while the run reports requires_action.
	ToolCalls []agentservice.ToolCall
}

// DefaultScript completes after one in_progress poll and echoes the prompt.
func DefaultScript() RunScript {
	return RunScript{
		Statuses: []agentservice.RunStatus{
			agentservice.RunStatusQueued,
			agentservice.RunStatusInProgress,
			agentservice.RunStatusCompleted,
		},
		Reply: func(prompt string) string { return "You asked: " + prompt },
	}
}

// Option configures the Service.
type Option func(*Service)

// WithRunScript sets the script used by new runs.
func WithRunScript(s RunScript) Option {
	return func(svc *Service) {
		svc.script = s
	}
}

// WithClock sets the time source used to stamp resources.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		svc.now = now
	}
}

type runState struct {
	run     agentservice.Run
	pos     int
	steps   []agentservice.RunStep
	outputs []agentservice.ToolOutput
	prompt  string
	replied bool
}

type threadState struct {
	thread   agentservice.Thread
	messages []agentservice.Message
	runs     []*runState
}

// Service is a thread-safe scripted agent service.
type Service struct {
	mu       sync.Mutex
	script   RunScript
	now      func() time.Time
	tick     time.Duration
	agents   map[string]*agentservice.Agent
	threads  map[string]*threadState
	order    []string
	calls    map[string]int
	failures map[string]error
	deleted  []string
}

// New creates an empty Service.
func New(opts ...Option) *Service {
	svc := &Service{
		script:   DefaultScript(),
		now:      time.Now,
		agents:   map[string]*agentservice.Agent{},
		threads:  map[string]*threadState{},
		calls:    map[string]int{},
		failures: map[string]error{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if len(svc.script.Statuses) == 0 {
		svc.script.Statuses = DefaultScript().Statuses
	}
	return svc
}

var _ agentservice.Service = (*Service)(nil)

// FailOn makes every later call of op fail with err wrapped in a RemoteServiceError.
func (s *Service) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Calls returns how many times op was invoked.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// DeletedAgents returns the ids passed to successful DeleteAgent calls, in order.
func (s *Service) DeletedAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.deleted)
}

// AgentCount returns the number of live agents.
func (s *Service) AgentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

// enter records a call and returns the injected failure, if any.
// Callers hold s.mu.
func (s *Service) enter(op string) error {
	s.calls[op]++
	if err, ok := s.failures[op]; ok {
		return &errs.RemoteServiceError{Op: op, StatusCode: http.StatusBadRequest, Err: err}
	}
	return nil
}

// stamp returns strictly increasing timestamps so ordering is stable.
func (s *Service) stamp() time.Time {
	s.tick += time.Millisecond
	return s.now().Add(s.tick)
}

func notFound(op, kind, id string) error {
	return &errs.RemoteServiceError{
		Op:         op,
		StatusCode: http.StatusNotFound,
		Code:       "not_found",
		Err:        fmt.Errorf("%s %s not found", kind, id),
	}
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// CreateAgent implements agentservice.Service.
func (s *Service) CreateAgent(_ context.Context, spec agentservice.AgentSpec) (*agentservice.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateAgent); err != nil {
		return nil, err
	}
	if spec.Model == "" {
		return nil, &errs.RemoteServiceError{Op: OpCreateAgent, StatusCode: http.StatusBadRequest,
			Code: "invalid_model", Err: fmt.Errorf("model is required")}
	}
	a := &agentservice.Agent{
		ID:           newID("asst"),
		Name:         spec.Name,
		Model:        spec.Model,
		Instructions: spec.Instructions,
		Tools:        slices.Clone(spec.Tools),
		CreatedAt:    s.stamp(),
	}
	s.agents[a.ID] = a
	cp := *a
	return &cp, nil
}

// GetAgent implements agentservice.Service.
func (s *Service) GetAgent(_ context.Context, agentID string) (*agentservice.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetAgent); err != nil {
		return nil, err
	}
	a, ok := s.agents[agentID]
	if !ok {
		return nil, notFound(OpGetAgent, "agent", agentID)
	}
	cp := *a
	return &cp, nil
}

// DeleteAgent implements agentservice.Service.
func (s *Service) DeleteAgent(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDeleteAgent); err != nil {
		return err
	}
	if _, ok := s.agents[agentID]; !ok {
		return notFound(OpDeleteAgent, "agent", agentID)
	}
	delete(s.agents, agentID)
	s.deleted = append(s.deleted, agentID)
	return nil
}

// CreateThread implements agentservice.Service.
func (s *Service) CreateThread(_ context.Context) (*agentservice.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateThread); err != nil {
		return nil, err
	}
	th := &threadState{thread: agentservice.Thread{ID: newID("thread"), CreatedAt: s.stamp()}}
	s.threads[th.thread.ID] = th
	s.order = append(s.order, th.thread.ID)
	cp := th.thread
	return &cp, nil
}

// ListThreads implements agentservice.Service. Newest threads come first.
func (s *Service) ListThreads(_ context.Context) ([]agentservice.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListThreads); err != nil {
		return nil, err
	}
	out := make([]agentservice.Thread, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.threads[s.order[i]].thread)
	}
	return out, nil
}

// CreateMessage implements agentservice.Service.
func (s *Service) CreateMessage(
	_ context.Context, threadID string, role agentservice.Role, text string,
) (*agentservice.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateMessage); err != nil {
		return nil, err
	}
	th, ok := s.threads[threadID]
	if !ok {
		return nil, notFound(OpCreateMessage, "thread", threadID)
	}
	m := s.appendMessage(th, role, text, "", "")
	return &m, nil
}

func (s *Service) appendMessage(th *threadState, role agentservice.Role, text, runID, agentID string) agentservice.Message {
	m := agentservice.Message{
		ID:        newID("msg"),
		ThreadID:  th.thread.ID,
		RunID:     runID,
		AgentID:   agentID,
		Role:      role,
		Content:   []agentservice.Content{{Type: agentservice.ContentText, Text: text}},
		CreatedAt: s.stamp(),
	}
	th.messages = append(th.messages, m)
	return m
}

// AppendMessage adds a message with arbitrary content, for tests that need
// non-text segments.
func (s *Service) AppendMessage(threadID string, m agentservice.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok {
		return notFound("append message", "thread", threadID)
	}
	if m.ID == "" {
		m.ID = newID("msg")
	}
	m.ThreadID = threadID
	m.CreatedAt = s.stamp()
	th.messages = append(th.messages, m)
	return nil
}

// ListMessages implements agentservice.Service.
func (s *Service) ListMessages(
	_ context.Context, threadID string, order agentservice.Order, runID string,
) ([]agentservice.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListMessages); err != nil {
		return nil, err
	}
	th, ok := s.threads[threadID]
	if !ok {
		return nil, notFound(OpListMessages, "thread", threadID)
	}
	var out []agentservice.Message
	for _, m := range th.messages {
		if runID == "" || m.RunID == runID {
			out = append(out, m)
		}
	}
	if order == agentservice.OrderDescending {
		slices.Reverse(out)
	}
	return out, nil
}

// CreateRun implements agentservice.Service.
func (s *Service) CreateRun(_ context.Context, threadID, agentID string) (*agentservice.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateRun); err != nil {
		return nil, err
	}
	th, ok := s.threads[threadID]
	if !ok {
		return nil, notFound(OpCreateRun, "thread", threadID)
	}
	a, ok := s.agents[agentID]
	if !ok {
		return nil, notFound(OpCreateRun, "agent", agentID)
	}
	rs := &runState{run: agentservice.Run{
		ID:           newID("run"),
		ThreadID:     threadID,
		AgentID:      agentID,
		Instructions: a.Instructions,
		CreatedAt:    s.stamp(),
	}}
	for i := len(th.messages) - 1; i >= 0; i-- {
		if th.messages[i].Role == agentservice.RoleUser {
			if text, ok := th.messages[i].LastText(); ok {
				rs.prompt = text
			}
			break
		}
	}
	th.runs = append(th.runs, rs)
	s.apply(th, rs)
	cp := rs.run
	return &cp, nil
}

// apply sets the run to the current script position and fires its side effects.
func (s *Service) apply(th *threadState, rs *runState) {
	status := s.script.Statuses[rs.pos]
	rs.run.Status = status
	rs.run.RequiredToolCalls = nil
	switch status {
	case agentservice.RunStatusRequiresAction:
		rs.run.RequiredToolCalls = slices.Clone(s.script.ToolCalls)
	case agentservice.RunStatusFailed:
		if s.script.LastError != nil {
			e := *s.script.LastError
			rs.run.LastError = &e
		}
	case agentservice.RunStatusCompleted:
		if rs.replied {
			return
		}
		rs.replied = true
		if len(rs.outputs) > 0 {
			calls := make([]agentservice.ToolCall, 0, len(s.script.ToolCalls))
			for _, tc := range s.script.ToolCalls {
				for _, o := range rs.outputs {
					if o.ToolCallID == tc.ID {
						tc.Output = o.Output
					}
				}
				calls = append(calls, tc)
			}
			rs.steps = append(rs.steps, agentservice.RunStep{
				ID: newID("step"), RunID: rs.run.ID, Type: agentservice.RunStepToolCalls,
				ToolCalls: calls, CreatedAt: s.stamp(),
			})
		}
		if s.script.Reply == nil {
			return
		}
		m := s.appendMessage(th, agentservice.RoleAssistant, s.script.Reply(rs.prompt), rs.run.ID, rs.run.AgentID)
		rs.steps = append(rs.steps, agentservice.RunStep{
			ID: newID("step"), RunID: rs.run.ID, Type: agentservice.RunStepMessageCreation,
			MessageID: m.ID, CreatedAt: s.stamp(),
		})
		rs.run.Usage = agentservice.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
	}
}

func (s *Service) findRun(op, threadID, runID string) (*threadState, *runState, error) {
	th, ok := s.threads[threadID]
	if !ok {
		return nil, nil, notFound(op, "thread", threadID)
	}
	for _, rs := range th.runs {
		if rs.run.ID == runID {
			return th, rs, nil
		}
	}
	return nil, nil, notFound(op, "run", runID)
}

// GetRun implements agentservice.Service. Every call advances the script by one status.
func (s *Service) GetRun(_ context.Context, threadID, runID string) (*agentservice.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetRun); err != nil {
		return nil, err
	}
	th, rs, err := s.findRun(OpGetRun, threadID, runID)
	if err != nil {
		return nil, err
	}
	if !rs.run.Status.IsTerminal() && rs.pos < len(s.script.Statuses)-1 {
		rs.pos++
		s.apply(th, rs)
	}
	cp := rs.run
	return &cp, nil
}

// ListRuns implements agentservice.Service.
func (s *Service) ListRuns(_ context.Context, threadID string) ([]agentservice.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListRuns); err != nil {
		return nil, err
	}
	th, ok := s.threads[threadID]
	if !ok {
		return nil, notFound(OpListRuns, "thread", threadID)
	}
	out := make([]agentservice.Run, 0, len(th.runs))
	for _, rs := range th.runs {
		out = append(out, rs.run)
	}
	return out, nil
}

// ListRunSteps implements agentservice.Service.
func (s *Service) ListRunSteps(_ context.Context, threadID, runID string) ([]agentservice.RunStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListRunSteps); err != nil {
		return nil, err
	}
	_, rs, err := s.findRun(OpListRunSteps, threadID, runID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rs.steps), nil
}

// SubmitToolOutputs implements agentservice.Service.
func (s *Service) SubmitToolOutputs(
	_ context.Context, threadID, runID string, outputs []agentservice.ToolOutput,
) (*agentservice.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSubmitToolOutputs); err != nil {
		return nil, err
	}
	th, rs, err := s.findRun(OpSubmitToolOutputs, threadID, runID)
	if err != nil {
		return nil, err
	}
	if rs.run.Status != agentservice.RunStatusRequiresAction {
		return nil, &errs.RemoteServiceError{Op: OpSubmitToolOutputs, StatusCode: http.StatusBadRequest,
			Code: "invalid_state", Err: fmt.Errorf("run %s is %s", runID, rs.run.Status)}
	}
	rs.outputs = append(rs.outputs, outputs...)
	if rs.pos < len(s.script.Statuses)-1 {
		rs.pos++
		s.apply(th, rs)
	}
	cp := rs.run
	return &cp, nil
}
