//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package transcript reads the messages of a thread back from the agent
// service, renders them, and turns completed runs into evaluation records.
package transcript

import (
	"context"
	"fmt"
	"io"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
)

// Line is one rendered message of a transcript.
type Line struct {
	Role agentservice.Role
	Text string
}

// String renders the line as "role: text".
func (l Line) String() string {
	return fmt.Sprintf("%s: %s", l.Role, l.Text)
}

// Collector lists the messages of a thread.
type Collector struct {
	svc agentservice.Service
}

// NewCollector returns a Collector reading from svc.
func NewCollector(svc agentservice.Service) *Collector {
	return &Collector{svc: svc}
}

// Collect returns one line per message of threadID in creation order.
// Messages without a text segment are skipped; a message with several
// text segments contributes its last one.
func (c *Collector) Collect(ctx context.Context, threadID string) ([]Line, error) {
	msgs, err := c.svc.ListMessages(ctx, threadID, agentservice.OrderAscending, "")
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(msgs))
	for _, m := range msgs {
		text, ok := m.LastText()
		if !ok {
			log.DebugfContext(ctx, "transcript: message %s has no text, skipped", m.ID)
			continue
		}
		lines = append(lines, Line{Role: m.Role, Text: text})
	}
	return lines, nil
}

// Render writes every line to w.
func Render(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l.String()); err != nil {
			return err
		}
	}
	return nil
}
