//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
)

const (
	// DefaultMaxSteps bounds the node executions of one run.
	DefaultMaxSteps = 25
	// DefaultChannelBufferSize is the buffer of the Stream channel.
	DefaultChannelBufferSize = 16
)

// Update is emitted by Stream after each node execution. The last
// update of a failed run carries Err and no node.
type Update struct {
	Step   int
	NodeID string
	// Values is the update returned by the node.
	Values State
	// State is the graph state after the update was applied.
	State State
	Err   error
}

// Executor runs a compiled Graph.
type Executor struct {
	graph *Graph
	opts  ExecutorOptions
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	MaxSteps          int
	ChannelBufferSize int
}

// ExecutorOption sets an ExecutorOptions field.
type ExecutorOption func(*ExecutorOptions)

// WithMaxSteps bounds the node executions of one run.
func WithMaxSteps(n int) ExecutorOption {
	return func(o *ExecutorOptions) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithChannelBufferSize sets the buffer of the Stream channel.
func WithChannelBufferSize(size int) ExecutorOption {
	return func(o *ExecutorOptions) {
		if size >= 0 {
			o.ChannelBufferSize = size
		}
	}
}

// NewExecutor creates an executor for g.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	o := ExecutorOptions{MaxSteps: DefaultMaxSteps, ChannelBufferSize: DefaultChannelBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor{graph: g, opts: o}, nil
}

// Invoke runs the graph from its entry point and returns the final state.
func (e *Executor) Invoke(ctx context.Context, input State) (State, error) {
	return e.run(ctx, input, nil)
}

// Stream runs the graph in a goroutine and emits one Update per node
// execution. The channel is closed when the run ends.
func (e *Executor) Stream(ctx context.Context, input State) <-chan *Update {
	ch := make(chan *Update, e.opts.ChannelBufferSize)
	go func() {
		defer close(ch)
		if _, err := e.run(ctx, input, ch); err != nil {
			select {
			case ch <- &Update{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

func (e *Executor) run(ctx context.Context, input State, updates chan<- *Update) (State, error) {
	schema := e.graph.Schema()
	state, err := schema.ApplyUpdate(schema.CreateInitialState(), input)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	current := e.graph.EntryPoint()
	for step := 1; current != End; step++ {
		if step > e.opts.MaxSteps {
			return state, fmt.Errorf("%w: %d", ErrMaxStepsExceeded, e.opts.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}
		node, ok := e.graph.Node(current)
		if !ok {
			return state, fmt.Errorf("%s: %w", current, ErrNodeNotFound)
		}
		values, err := e.executeNode(ctx, node, step, state)
		if err != nil {
			return state, err
		}
		if state, err = schema.ApplyUpdate(state, values); err != nil {
			return state, fmt.Errorf("node %s: %w", node.ID, err)
		}
		if updates != nil {
			select {
			case updates <- &Update{Step: step, NodeID: node.ID, Values: values, State: state.Clone()}:
			case <-ctx.Done():
				return state, ctx.Err()
			}
		}
		if current, err = e.next(ctx, node.ID, state); err != nil {
			return state, err
		}
	}
	return state, nil
}

func (e *Executor) executeNode(ctx context.Context, node *Node, step int, state State) (State, error) {
	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewExecuteNodeSpanName(node.ID))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGraphNodeID, node.ID),
		attribute.Int(semconv.KeyGraphStep, step),
	)
	log.DebugfContext(ctx, "graph: step %d executing node %s", step, node.ID)
	values, err := node.Function(ctx, state.Clone())
	if err != nil {
		err = fmt.Errorf("node %s: %w", node.ID, err)
		itelemetry.TraceError(span, err)
		return nil, err
	}
	return values, nil
}

func (e *Executor) next(ctx context.Context, from string, state State) (string, error) {
	if ce, ok := e.graph.ConditionalEdge(from); ok {
		result, err := ce.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("condition of %s: %w", from, err)
		}
		to := result
		if ce.PathMap != nil {
			if to, ok = ce.PathMap[result]; !ok {
				return "", fmt.Errorf("condition of %s returned unmapped route %q", from, result)
			}
		}
		if to != End {
			if _, ok := e.graph.Node(to); !ok {
				return "", fmt.Errorf("route %s -> %s: %w", from, to, ErrNodeNotFound)
			}
		}
		return to, nil
	}
	edges := e.graph.Edges(from)
	switch len(edges) {
	case 0:
		return End, nil
	case 1:
		return edges[0].To, nil
	}
	return "", fmt.Errorf("%s: %w", from, ErrAmbiguousEdge)
}
