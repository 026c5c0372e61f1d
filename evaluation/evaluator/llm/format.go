//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// FormatConversation renders messages as numbered turns. System turns are
// dropped; tool calls and results are rendered inline when withTools is set.
func FormatConversation(messages []transcript.ChatMessage, withTools bool) string {
	var b strings.Builder
	userTurn, agentTurn := 0, 0
	for _, m := range messages {
		body := formatItems(m.Content, withTools)
		if body == "" {
			continue
		}
		var label string
		switch m.Role {
		case string(agentservice.RoleUser):
			userTurn++
			label = fmt.Sprintf("User turn %d", userTurn)
		case string(agentservice.RoleAssistant):
			agentTurn++
			label = fmt.Sprintf("Agent turn %d", agentTurn)
		case transcript.RoleTool:
			label = "Tool result"
		default:
			continue
		}
		fmt.Fprintf(&b, "%s:\n  %s\n", label, body)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SystemInstructions returns the system turn of messages, if any.
func SystemInstructions(messages []transcript.ChatMessage) string {
	for _, m := range messages {
		if m.Role == transcript.RoleSystem {
			return formatItems(m.Content, false)
		}
	}
	return ""
}

func formatItems(items []transcript.Item, withTools bool) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case transcript.ItemText:
			if it.Text != "" {
				parts = append(parts, it.Text)
			}
		case transcript.ItemToolCall:
			if withTools {
				parts = append(parts, FormatToolCall(it))
			}
		case transcript.ItemToolResult:
			if withTools {
				parts = append(parts, "[TOOL_RESULT] "+compact(it.ToolResult))
			}
		}
	}
	return strings.Join(parts, "\n  ")
}

// FormatToolCall renders one tool call item.
func FormatToolCall(it transcript.Item) string {
	return fmt.Sprintf("[TOOL_CALL] %s(%s)", it.Name, compact(it.Arguments))
}

// FormatToolCalls renders tool calls one per line.
func FormatToolCalls(items []transcript.Item) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, FormatToolCall(it))
	}
	return strings.Join(lines, "\n")
}

// FormatToolDefinitions renders the tool declarations as indented JSON.
func FormatToolDefinitions(defs []agentservice.ToolDefinition) string {
	if len(defs) == 0 {
		return "[]"
	}
	b, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return fmt.Sprint(defs)
	}
	return string(b)
}

func compact(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
