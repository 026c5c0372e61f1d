//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package openai provides a chat model backed by OpenAI or Azure OpenAI
// chat completions.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.opentelemetry.io/otel/attribute"

	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/tool"
)

const functionToolType = "function"

// Model implements the model.Model interface for chat completions.
type Model struct {
	client            openai.Client
	name              string
	channelBufferSize int
}

var _ model.Model = (*Model)(nil)

// New creates a chat model. With WithAzureEndpoint, name is the deployment.
func New(name string, opts ...Option) *Model {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []openaiopt.RequestOption
	if o.AzureEndpoint != "" {
		clientOpts = append(clientOpts, azure.WithEndpoint(o.AzureEndpoint, o.APIVersion))
		if o.APIKey != "" {
			clientOpts = append(clientOpts, azure.WithAPIKey(o.APIKey))
		}
	} else {
		if o.APIKey != "" {
			clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
		}
		if o.BaseURL != "" {
			clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
		}
	}
	if o.HTTPClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.HTTPClient))
	}
	clientOpts = append(clientOpts, openaiopt.WithMaxRetries(o.MaxRetries))
	clientOpts = append(clientOpts, o.OpenAIOptions...)

	return &Model{
		client:            openai.NewClient(clientOpts...),
		name:              name,
		channelBufferSize: o.ChannelBufferSize,
	}
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	chatRequest := m.buildChatRequest(request)
	responseChan := make(chan *model.Response, m.channelBufferSize)
	go func() {
		defer close(responseChan)
		m.handleResponse(ctx, request.Messages, chatRequest, responseChan)
	}()
	return responseChan, nil
}

func (m *Model) buildChatRequest(request *model.Request) openai.ChatCompletionNewParams {
	chatRequest := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(request.Messages),
		Tools:    convertTools(request.Tools),
	}
	if request.MaxTokens != nil {
		chatRequest.MaxCompletionTokens = openai.Int(int64(*request.MaxTokens))
	}
	if request.Temperature != nil {
		chatRequest.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		chatRequest.TopP = openai.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		chatRequest.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfString: openai.String(request.Stop[0]),
		}
	}
	if request.JSONMode {
		chatRequest.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return chatRequest
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		case model.RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: assistant}
		case model.RoleTool:
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.ToolID,
				},
			}
		default: // Unknown roles are sent as user messages.
			result[i] = openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			}
		}
	}
	return result
}

func convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Function.Name,
				Arguments: string(toolCall.Function.Arguments),
			},
		})
	}
	return result
}

// convertTools declares tools sorted by name so requests are stable.
func convertTools(tools map[string]tool.Tool) []openai.ChatCompletionToolParam {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	var result []openai.ChatCompletionToolParam
	for _, name := range names {
		declaration := tools[name].Declaration()
		if declaration == nil {
			log.Warnf("openai: tool %s has no declaration, skipped", name)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        declaration.Name,
				Description: openai.String(declaration.Description),
				Parameters:  shared.FunctionParameters(declaration.InputSchema.Map()),
			},
		})
	}
	return result
}

func (m *Model) handleResponse(
	ctx context.Context,
	messages []model.Message,
	chatRequest openai.ChatCompletionNewParams,
	responseChan chan<- *model.Response,
) {
	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewChatSpanName(m.name))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIOperationName, itelemetry.OperationChat),
		attribute.String(semconv.KeyGenAIRequestModel, m.name),
	)
	recording := atrace.ContentRecordingEnabled()
	if recording {
		span.SetAttributes(itelemetry.MessagesAttribute(semconv.KeyGenAIInputMessages, traceMessages(messages)...))
	}

	start := time.Now()
	chatCompletion, err := m.client.Chat.Completions.New(ctx, chatRequest)
	if err != nil {
		itelemetry.TraceError(span, err)
		send(ctx, responseChan, errorResponse(err))
		return
	}

	response := &model.Response{
		ID:        chatCompletion.ID,
		Object:    string(chatCompletion.Object),
		Created:   chatCompletion.Created,
		Model:     chatCompletion.Model,
		Timestamp: time.Now(),
		Done:      true,
	}
	response.Choices = make([]model.Choice, len(chatCompletion.Choices))
	for i, choice := range chatCompletion.Choices {
		response.Choices[i] = model.Choice{
			Index: int(choice.Index),
			Message: model.Message{
				Role:    model.RoleAssistant,
				Content: choice.Message.Content,
			},
		}
		for j, toolCall := range choice.Message.ToolCalls {
			id := toolCall.ID
			if id == "" {
				id = fmt.Sprintf("auto_call_%d", j)
			}
			response.Choices[i].Message.ToolCalls = append(response.Choices[i].Message.ToolCalls, model.ToolCall{
				ID:   id,
				Type: functionToolType,
				Function: model.FunctionCall{
					Name:      toolCall.Function.Name,
					Arguments: []byte(toolCall.Function.Arguments),
				},
			})
		}
		if choice.FinishReason != "" {
			finishReason := choice.FinishReason
			response.Choices[i].FinishReason = &finishReason
		}
	}
	if chatCompletion.Usage.PromptTokens > 0 || chatCompletion.Usage.CompletionTokens > 0 {
		response.Usage = &model.Usage{
			PromptTokens:     int(chatCompletion.Usage.PromptTokens),
			CompletionTokens: int(chatCompletion.Usage.CompletionTokens),
			TotalTokens:      int(chatCompletion.Usage.TotalTokens),
		}
	}

	span.SetAttributes(
		attribute.String(semconv.KeyGenAIResponseModel, chatCompletion.Model),
		attribute.String(semconv.KeyGenAIResponseID, chatCompletion.ID),
		attribute.Int64(semconv.KeyGenAIUsageInputTokens, chatCompletion.Usage.PromptTokens),
		attribute.Int64(semconv.KeyGenAIUsageOutputTokens, chatCompletion.Usage.CompletionTokens),
	)
	if recording {
		out := make([]model.Message, len(response.Choices))
		for i, choice := range response.Choices {
			out[i] = choice.Message
		}
		span.SetAttributes(itelemetry.MessagesAttribute(semconv.KeyGenAIOutputMessages, traceMessages(out)...))
	}
	itelemetry.RecordChat(ctx, m.name, time.Since(start),
		chatCompletion.Usage.PromptTokens, chatCompletion.Usage.CompletionTokens)
	send(ctx, responseChan, response)
}

// traceMessages converts chat messages into gen_ai message entries.
func traceMessages(messages []model.Message) []itelemetry.Message {
	out := make([]itelemetry.Message, 0, len(messages))
	for _, msg := range messages {
		tm := itelemetry.Message{Role: msg.Role.String(), Parts: []itelemetry.MessagePart{}}
		switch {
		case msg.Role == model.RoleTool:
			tm.Parts = append(tm.Parts, itelemetry.MessagePart{
				Type: itelemetry.PartToolCallResponse, ID: msg.ToolID, Content: msg.Content,
			})
		case msg.Content != "":
			tm.Parts = append(tm.Parts, itelemetry.MessagePart{Type: itelemetry.PartText, Content: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			part := itelemetry.MessagePart{Type: itelemetry.PartToolCall, ID: call.ID, Name: call.Function.Name}
			if json.Valid(call.Function.Arguments) {
				part.Arguments = call.Function.Arguments
			}
			tm.Parts = append(tm.Parts, part)
		}
		out = append(out, tm)
	}
	return out
}

func errorResponse(err error) *model.Response {
	rspErr := &model.ResponseError{Message: err.Error(), Type: model.ErrorTypeAPIError}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		code := apiErr.Code
		rspErr.Code = &code
	}
	return &model.Response{Error: rspErr, Timestamp: time.Now(), Done: true}
}

func send(ctx context.Context, ch chan<- *model.Response, rsp *model.Response) {
	select {
	case ch <- rsp:
	case <-ctx.Done():
	}
}
