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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/graph"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/model/openai"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
	"trpc.group/trpc-go/trpc-agent-foundry/tool/tavily"
)

// Graph flow settings.
const (
	GraphSpanName   = "langgraph_movie_agent"
	ChatbotNodeID   = "chatbot"
	GraphQuestion   = "What are three popular movies in Switzerland right now?"
	ChatTemperature = 0.3
	// SearchMaxResults bounds the results of one web search.
	SearchMaxResults = 2
)

// NewChatbotGraph builds the chatbot graph: the chatbot node answers or
// asks for tools, the tools node runs them and hands back to the chatbot.
func NewChatbotGraph(m model.Model, tools *tool.Set) (*graph.Graph, error) {
	temperature := ChatTemperature
	chatbot := graph.NewLLMNodeFunc(m, "", tools, graph.WithGenerationConfig(model.GenerationConfig{
		Temperature: &temperature,
	}))
	return graph.NewStateGraph(graph.MessagesStateSchema()).
		AddNode(ChatbotNodeID, chatbot, graph.WithDescription("answers with the search tool bound")).
		AddToolsNode(graph.ToolsNodeID, tools).
		AddConditionalEdges(ChatbotNodeID, graph.ToolsCondition, nil).
		AddEdge(graph.ToolsNodeID, ChatbotNodeID).
		SetEntryPoint(ChatbotNodeID).
		Compile()
}

// TraceGraph asks the chatbot graph each question under its own span.
// Without questions the default movie question is asked. A failed
// question is printed and the next one still runs; all failures are
// returned together.
func (r *Runner) TraceGraph(ctx context.Context, questions ...string) (err error) {
	keys := config.TracingKeys
	if r.chatModel == nil {
		keys = append(append([]string{}, keys...), config.EvaluationKeys...)
	}
	if r.graphTools == nil {
		keys = append(append([]string{}, keys...), config.EnvTavilyAPIKey)
	}
	if err := r.cfg.Validate(keys...); err != nil {
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

	m := r.chatModel
	if m == nil {
		m = openai.New(r.cfg.ChatDeployment,
			openai.WithAzureEndpoint(r.cfg.OpenAIEndpoint, r.cfg.ChatAPIVersion),
			openai.WithAPIKey(r.cfg.OpenAIAPIKey),
		)
	}
	tools := r.graphTools
	if tools == nil {
		tools = tool.NewSet(tavily.New(r.cfg.TavilyAPIKey, tavily.WithMaxResults(SearchMaxResults)))
	}

	r.printf("Initializing agent...")
	g, err := NewChatbotGraph(m, tools)
	if err != nil {
		return err
	}
	exec, err := graph.NewExecutor(g)
	if err != nil {
		return err
	}
	r.printf("Agent ready!")

	if len(questions) == 0 {
		questions = []string{GraphQuestion}
	}
	var result *multierror.Error
	for _, q := range questions {
		if err := r.ask(ctx, exec, q); err != nil {
			r.printf("Error occurred: %v", err)
			result = multierror.Append(result, fmt.Errorf("question %q: %w", q, err))
		}
		r.printf("%s", strings.Repeat("-", 50))
	}
	return result.ErrorOrNil()
}

func (r *Runner) ask(ctx context.Context, exec *graph.Executor, question string) (err error) {
	ctx, span := atrace.Tracer.Start(ctx, GraphSpanName)
	defer span.End()
	defer func() { itelemetry.TraceError(span, err) }()

	r.printf("%s", strings.Repeat("=", 50))
	r.printf("User: %s", question)
	span.SetAttributes(attribute.String(semconv.KeyUserInput, question))
	r.printf("%s", strings.Repeat("=", 50))

	input := graph.State{graph.StateKeyMessages: []model.Message{model.NewUserMessage(question)}}
	for u := range exec.Stream(ctx, input) {
		if u.Err != nil {
			return u.Err
		}
		msgs, _ := u.Values[graph.StateKeyMessages].([]model.Message)
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		if last.Role != model.RoleAssistant {
			log.DebugfContext(ctx, "workflow: node %s returned %d tool results", u.NodeID, len(msgs))
			continue
		}
		if last.Content != "" {
			r.printf("AI: %s", last.Content)
			span.SetAttributes(attribute.String(semconv.KeyAgentResponse, last.Content))
		}
		if len(last.ToolCalls) == 0 {
			continue
		}
		r.printf("Searching...")
		for _, call := range last.ToolCalls {
			line := "- Search query: " + searchQuery(call.Function.Arguments)
			r.printf("%s", line)
			span.SetAttributes(attribute.String(semconv.KeySearchQuery, line))
		}
	}
	return ctx.Err()
}

func searchQuery(args []byte) string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return ""
	}
	return in.Query
}
