//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
)

// Roles used in evaluation records in addition to user and assistant.
const (
	RoleSystem = "system"
	RoleTool   = "tool"
)

// Content item types.
const (
	ItemText       = "text"
	ItemToolCall   = "tool_call"
	ItemToolResult = "tool_result"
)

// Item is one content entry of a ChatMessage.
type Item struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	// Arguments holds the decoded call arguments, or the raw string when
	// they are not valid JSON.
	Arguments any `json:"arguments,omitempty"`
	ToolResult any `json:"tool_result,omitempty"`
}

// ChatMessage is one turn of an evaluation record.
type ChatMessage struct {
	CreatedAt  string `json:"createdAt,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Role       string `json:"role"`
	Content    []Item `json:"content"`
}

// Record is one agent exchange prepared for evaluation.
type Record struct {
	// Query holds the system instructions followed by the conversation up
	// to and including the user turn that started the run.
	Query []ChatMessage `json:"query"`
	// Response holds the assistant turns of the run, tool calls and tool
	// results included.
	Response        []ChatMessage                 `json:"response"`
	ToolDefinitions []agentservice.ToolDefinition `json:"tool_definitions"`
	ThreadID        string                        `json:"thread_id"`
	RunID           string                        `json:"run_id"`
}

// ToolCalls returns every tool call item of the response.
func (r Record) ToolCalls() []Item {
	var out []Item
	for _, m := range r.Response {
		for _, it := range m.Content {
			if it.Type == ItemToolCall {
				out = append(out, it)
			}
		}
	}
	return out
}

// LastUserText returns the text of the last user turn of the query.
func (r Record) LastUserText() string {
	for i := len(r.Query) - 1; i >= 0; i-- {
		if r.Query[i].Role == string(agentservice.RoleUser) {
			return joinText(r.Query[i].Content)
		}
	}
	return ""
}

// FinalText returns the text of the last assistant turn of the response.
func (r Record) FinalText() string {
	for i := len(r.Response) - 1; i >= 0; i-- {
		m := r.Response[i]
		if m.Role != string(agentservice.RoleAssistant) {
			continue
		}
		if text := joinText(m.Content); text != "" {
			return text
		}
	}
	return ""
}

func joinText(items []Item) string {
	text := ""
	for _, it := range items {
		if it.Type != ItemText || it.Text == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += it.Text
	}
	return text
}

// Converter turns the completed runs of a thread into records.
type Converter struct {
	svc agentservice.Service
}

// NewConverter returns a Converter reading from svc.
func NewConverter(svc agentservice.Service) *Converter {
	return &Converter{svc: svc}
}

// Prepare returns one record per completed run of threadID, in run order.
func (c *Converter) Prepare(ctx context.Context, threadID string) ([]Record, error) {
	msgs, err := c.svc.ListMessages(ctx, threadID, agentservice.OrderAscending, "")
	if err != nil {
		return nil, err
	}
	runs, err := c.svc.ListRuns(ctx, threadID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(runs, func(a, b agentservice.Run) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	byID := make(map[string]agentservice.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	tools := map[string][]agentservice.ToolDefinition{}

	records := make([]Record, 0, len(runs))
	for _, run := range runs {
		if run.Status != agentservice.RunStatusCompleted {
			log.DebugfContext(ctx, "transcript: run %s is %s, skipped", run.ID, run.Status)
			continue
		}
		defs, ok := tools[run.AgentID]
		if !ok {
			agent, err := c.svc.GetAgent(ctx, run.AgentID)
			if err != nil {
				return nil, fmt.Errorf("run %s: %w", run.ID, err)
			}
			defs = agent.Tools
			tools[run.AgentID] = defs
		}
		steps, err := c.svc.ListRunSteps(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
		if defs == nil {
			defs = []agentservice.ToolDefinition{}
		}
		records = append(records, Record{
			Query:           query(run, msgs),
			Response:        response(run, steps, byID),
			ToolDefinitions: defs,
			ThreadID:        threadID,
			RunID:           run.ID,
		})
	}
	log.DebugfContext(ctx, "transcript: prepared %d records from thread %s", len(records), threadID)
	return records, nil
}

func query(run agentservice.Run, msgs []agentservice.Message) []ChatMessage {
	out := []ChatMessage{{
		Role:    RoleSystem,
		Content: []Item{{Type: ItemText, Text: run.Instructions}},
	}}
	for _, m := range msgs {
		if m.RunID == run.ID || m.CreatedAt.After(run.CreatedAt) {
			continue
		}
		out = append(out, ChatMessage{
			CreatedAt: stamp(m.CreatedAt),
			RunID:     m.RunID,
			Role:      string(m.Role),
			Content:   textItems(m),
		})
	}
	return out
}

func response(run agentservice.Run, steps []agentservice.RunStep, byID map[string]agentservice.Message) []ChatMessage {
	slices.SortStableFunc(steps, func(a, b agentservice.RunStep) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	var out []ChatMessage
	for _, s := range steps {
		switch s.Type {
		case agentservice.RunStepToolCalls:
			calls := ChatMessage{
				CreatedAt: stamp(s.CreatedAt),
				RunID:     run.ID,
				Role:      string(agentservice.RoleAssistant),
			}
			var results []ChatMessage
			for _, tc := range s.ToolCalls {
				calls.Content = append(calls.Content, Item{
					Type:       ItemToolCall,
					ToolCallID: tc.ID,
					Name:       tc.Name,
					Arguments:  decode(tc.Arguments),
				})
				results = append(results, ChatMessage{
					CreatedAt:  stamp(s.CreatedAt),
					RunID:      run.ID,
					ToolCallID: tc.ID,
					Role:       RoleTool,
					Content:    []Item{{Type: ItemToolResult, ToolResult: decode(tc.Output)}},
				})
			}
			out = append(out, calls)
			out = append(out, results...)
		case agentservice.RunStepMessageCreation:
			m, ok := byID[s.MessageID]
			if !ok {
				continue
			}
			out = append(out, ChatMessage{
				CreatedAt: stamp(m.CreatedAt),
				RunID:     run.ID,
				Role:      string(m.Role),
				Content:   textItems(m),
			})
		}
	}
	if out == nil {
		out = []ChatMessage{}
	}
	return out
}

func textItems(m agentservice.Message) []Item {
	texts := m.Texts()
	items := make([]Item, 0, len(texts))
	for _, t := range texts {
		items = append(items, Item{Type: ItemText, Text: t})
	}
	return items
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// decode returns the JSON value held by s, or s itself when it is not JSON.
func decode(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
