//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph runs state machines of nodes connected by static and
// conditional edges. Node updates are merged into a shared State by the
// reducers of a StateSchema.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Special node identifiers.
const (
	// Start is the virtual node execution begins from.
	Start = "__start__"
	// End is the virtual node that terminates execution.
	End = "__end__"
)

// State is the data flowing through the graph.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// NodeFunc executes a node. The returned State is an update merged into
// the graph state; nil means no change.
type NodeFunc func(ctx context.Context, state State) (State, error)

// ConditionalFunc picks the route taken after a node.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// Node is a named step of the graph.
type Node struct {
	ID          string
	Name        string
	Description string
	Function    NodeFunc
}

// Edge is an unconditional transition.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge routes from a node by the result of Condition.
// When PathMap is set the result is looked up in it, otherwise the
// result is the target node ID.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string
}

// Graph is a compiled set of nodes and edges.
type Graph struct {
	mu               sync.RWMutex
	schema           *StateSchema
	nodes            map[string]*Node
	edges            map[string][]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
	buildErrs        []error
}

// New creates an empty graph using schema for state updates.
func New(schema *StateSchema) *Graph {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string][]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
	}
}

// Schema returns the state schema.
func (g *Graph) Schema() *StateSchema {
	return g.schema
}

// Node returns the node with id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns the IDs of all nodes in sorted order.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EntryPoint returns the first node executed.
func (g *Graph) EntryPoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entryPoint
}

// Edges returns the static edges leaving id.
func (g *Graph) Edges(id string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// ConditionalEdge returns the conditional edge leaving id, if any.
func (g *Graph) ConditionalEdge(id string) (*ConditionalEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.conditionalEdges[id]
	return e, ok
}

func (g *Graph) addNode(node *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case node.ID == "":
		return g.buildError(fmt.Errorf("node ID cannot be empty"))
	case node.ID == Start || node.ID == End:
		return g.buildError(fmt.Errorf("node ID %s is reserved", node.ID))
	case node.Function == nil:
		return g.buildError(fmt.Errorf("node %s has no function", node.ID))
	}
	if _, ok := g.nodes[node.ID]; ok {
		return g.buildError(fmt.Errorf("node %s already exists", node.ID))
	}
	g.nodes[node.ID] = node
	return nil
}

func (g *Graph) addEdge(edge *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.From == "" || edge.To == "" {
		return g.buildError(fmt.Errorf("edge from and to cannot be empty"))
	}
	if edge.From == End || edge.To == Start {
		return g.buildError(fmt.Errorf("invalid edge %s -> %s", edge.From, edge.To))
	}
	if edge.From == Start {
		if g.entryPoint != "" && g.entryPoint != edge.To {
			return g.buildError(fmt.Errorf("entry point already set to %s", g.entryPoint))
		}
		g.entryPoint = edge.To
	}
	for _, e := range g.edges[edge.From] {
		if e.To == edge.To {
			return nil
		}
	}
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	return nil
}

func (g *Graph) addConditionalEdge(edge *ConditionalEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.From == "" || edge.Condition == nil {
		return g.buildError(fmt.Errorf("conditional edge needs a source and a condition"))
	}
	if _, ok := g.conditionalEdges[edge.From]; ok {
		return g.buildError(fmt.Errorf("node %s already has conditional edges", edge.From))
	}
	g.conditionalEdges[edge.From] = edge
	return nil
}

// buildError records err so Compile reports it. Callers hold g.mu.
func (g *Graph) buildError(err error) error {
	g.buildErrs = append(g.buildErrs, err)
	return err
}

func (g *Graph) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.buildErrs) > 0 {
		return g.buildErrs[0]
	}
	if g.entryPoint == "" {
		return ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return fmt.Errorf("entry point %s: %w", g.entryPoint, ErrNodeNotFound)
	}
	for from, edges := range g.edges {
		if from != Start {
			if _, ok := g.nodes[from]; !ok {
				return fmt.Errorf("edge source %s: %w", from, ErrNodeNotFound)
			}
		}
		for _, e := range edges {
			if e.To == End {
				continue
			}
			if _, ok := g.nodes[e.To]; !ok {
				return fmt.Errorf("edge target %s: %w", e.To, ErrNodeNotFound)
			}
		}
	}
	for from, ce := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("conditional edge source %s: %w", from, ErrNodeNotFound)
		}
		for _, to := range ce.PathMap {
			if to == End {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("conditional edge target %s: %w", to, ErrNodeNotFound)
			}
		}
	}
	for id := range g.nodes {
		_, cond := g.conditionalEdges[id]
		switch {
		case cond:
		case len(g.edges[id]) == 0:
			return fmt.Errorf("node %s has no outgoing edge", id)
		case len(g.edges[id]) > 1:
			return fmt.Errorf("%s: %w", id, ErrAmbiguousEdge)
		}
	}
	return nil
}
