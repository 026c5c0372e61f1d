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
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
)

// ToolsNodeID is the node ToolsCondition routes tool calls to.
const ToolsNodeID = "tools"

// StateGraph builds a Graph with a fluent interface:
//
//	g, err := NewStateGraph(MessagesStateSchema()).
//		AddLLMNode("chatbot", m, "", tools).
//		AddToolsNode(ToolsNodeID, tools).
//		AddConditionalEdges("chatbot", ToolsCondition, nil).
//		AddEdge(ToolsNodeID, "chatbot").
//		SetEntryPoint("chatbot").
//		Compile()
//
// Builder errors are collected and returned by Compile.
type StateGraph struct {
	graph *Graph
}

// NewStateGraph creates a builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{graph: New(schema)}
}

// Option configures a Node.
type Option func(*Node)

// WithName sets the human readable name of the node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// AddNode adds a node running function.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	node := &Node{ID: id, Name: id, Function: function}
	for _, opt := range opts {
		opt(node)
	}
	_ = sg.graph.addNode(node)
	return sg
}

// AddLLMNode adds a node that sends the messages to m with tools bound.
func (sg *StateGraph) AddLLMNode(id string, m model.Model, instruction string,
	tools *tool.Set, opts ...Option) *StateGraph {
	return sg.AddNode(id, NewLLMNodeFunc(m, instruction, tools), opts...)
}

// AddToolsNode adds a node that executes the tool calls of the last
// assistant message.
func (sg *StateGraph) AddToolsNode(id string, tools *tool.Set, opts ...Option) *StateGraph {
	return sg.AddNode(id, NewToolsNodeFunc(tools), opts...)
}

// AddEdge adds a static edge.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	_ = sg.graph.addEdge(&Edge{From: from, To: to})
	return sg
}

// AddConditionalEdges routes from a node by condition. With a nil
// pathMap the condition returns node IDs directly.
func (sg *StateGraph) AddConditionalEdges(from string, condition ConditionalFunc,
	pathMap map[string]string) *StateGraph {
	_ = sg.graph.addConditionalEdge(&ConditionalEdge{From: from, Condition: condition, PathMap: pathMap})
	return sg
}

// SetEntryPoint is AddEdge(Start, nodeID).
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	return sg.AddEdge(Start, nodeID)
}

// SetFinishPoint is AddEdge(nodeID, End).
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// Compile validates the graph and returns it for execution.
func (sg *StateGraph) Compile() (*Graph, error) {
	if err := sg.graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return sg.graph, nil
}

// MustCompile is Compile that panics on error.
func (sg *StateGraph) MustCompile() *Graph {
	g, err := sg.Compile()
	if err != nil {
		panic(err)
	}
	return g
}

// LLMOption configures the requests of an LLM node.
type LLMOption func(*model.GenerationConfig)

// WithGenerationConfig sets the generation settings of every request.
func WithGenerationConfig(cfg model.GenerationConfig) LLMOption {
	return func(c *model.GenerationConfig) {
		*c = cfg
	}
}

// NewLLMNodeFunc returns a NodeFunc that sends the state messages to m
// and appends its answer. A pending user_input is appended as a user
// message first.
func NewLLMNodeFunc(m model.Model, instruction string, tools *tool.Set, opts ...LLMOption) NodeFunc {
	var genConfig model.GenerationConfig
	for _, opt := range opts {
		opt(&genConfig)
	}
	var declared map[string]tool.Tool
	if tools != nil {
		declared = make(map[string]tool.Tool)
		for _, t := range tools.Tools() {
			declared[t.Declaration().Name] = t
		}
	}
	return func(ctx context.Context, state State) (State, error) {
		messages := Messages(state)
		var added []model.Message
		if input, _ := state[StateKeyUserInput].(string); input != "" {
			added = append(added, model.NewUserMessage(input))
		}
		request := make([]model.Message, 0, len(messages)+len(added)+1)
		if instruction != "" && (len(messages) == 0 || messages[0].Role != model.RoleSystem) {
			request = append(request, model.NewSystemMessage(instruction))
		}
		request = append(request, messages...)
		request = append(request, added...)

		rsp, err := model.Generate(ctx, m, &model.Request{
			Messages:         request,
			GenerationConfig: genConfig,
			Tools:            declared,
		})
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if len(rsp.Choices) == 0 {
			return nil, errors.New("model returned no choice")
		}
		msg := rsp.Choices[0].Message
		msg.Role = model.RoleAssistant
		for i := range msg.ToolCalls {
			if msg.ToolCalls[i].ID == "" {
				msg.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
			if msg.ToolCalls[i].Type == "" {
				msg.ToolCalls[i].Type = "function"
			}
		}
		update := State{
			StateKeyMessages:     append(added, msg),
			StateKeyLastResponse: msg.Content,
		}
		if len(added) > 0 {
			update[StateKeyUserInput] = ""
		}
		return update, nil
	}
}

// NewToolsNodeFunc returns a NodeFunc that executes the tool calls of
// the last assistant message and appends one tool message per call.
// Failed calls are answered with an error payload so the model can react.
func NewToolsNodeFunc(tools *tool.Set) NodeFunc {
	if tools == nil {
		tools = tool.NewSet()
	}
	return func(ctx context.Context, state State) (State, error) {
		messages := Messages(state)
		if len(messages) == 0 {
			return nil, errors.New("no messages in state")
		}
		last := messages[len(messages)-1]
		if last.Role != model.RoleAssistant {
			return nil, errors.New("last message is not an assistant message")
		}
		out := make([]model.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			result := tools.Execute(ctx, agentservice.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: string(call.Function.Arguments),
			})
			out = append(out, model.NewToolMessage(call.ID, call.Function.Name, result))
		}
		return State{StateKeyMessages: out}, nil
	}
}

// ToolsCondition routes to ToolsNodeID when the last message asks for
// tool calls and to End otherwise.
func ToolsCondition(_ context.Context, state State) (string, error) {
	messages := Messages(state)
	if len(messages) == 0 {
		return End, nil
	}
	last := messages[len(messages)-1]
	if last.Role == model.RoleAssistant && len(last.ToolCalls) > 0 {
		return ToolsNodeID, nil
	}
	return End, nil
}
