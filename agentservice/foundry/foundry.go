//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package foundry implements agentservice.Service on top of the Azure AI
// Foundry Agents data plane.
//
// The Agents API is wire compatible with the OpenAI Assistants API, so the
// openai-go Beta client is pointed at the project endpoint and authenticated
// with an Entra ID bearer token.
package foundry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
)

// DefaultAPIVersion is the Agents API version sent with every request.
const DefaultAPIVersion = "v1"

type options struct {
	credential  azcore.TokenCredential
	apiKey      string
	apiVersion  string
	scope       string
	httpClient  option.HTTPClient
	maxRetries  int
	requestOpts []option.RequestOption
}

// Option configures the Client.
type Option func(*options)

// WithCredential sets the token credential. The default is azidentity.DefaultAzureCredential.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(o *options) {
		o.credential = cred
	}
}

// WithAPIKey authenticates with an "api-key" header instead of Entra ID.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(o *options) {
		o.apiVersion = v
	}
}

// WithScope overrides the token scope.
func WithScope(scope string) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c option.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithRequestOptions appends raw openai-go request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *options) {
		o.requestOpts = append(o.requestOpts, opts...)
	}
}

// Client talks to one Foundry project.
type Client struct {
	oai      openai.Client
	endpoint string
}

var _ agentservice.Service = (*Client)(nil)

// New creates a Client for the project endpoint, e.g.
// https://<resource>.services.ai.azure.com/api/projects/<project>.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errs.NewConfigurationError("AZURE_AI_FOUNDRY_PROJECT_ENDPOINT")
	}
	o := &options{apiVersion: DefaultAPIVersion, scope: DefaultScope, maxRetries: 2}
	for _, opt := range opts {
		opt(o)
	}
	base := strings.TrimRight(endpoint, "/") + "/"
	reqOpts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithQuery("api-version", o.apiVersion),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	if o.apiKey != "" {
		reqOpts = append(reqOpts, option.WithHeader("api-key", o.apiKey))
	} else {
		cred := o.credential
		if cred == nil {
			dac, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("create default azure credential: %w", err)
			}
			cred = dac
		}
		reqOpts = append(reqOpts, option.WithMiddleware(bearerMiddleware(cred, o.scope)))
	}
	reqOpts = append(reqOpts, o.requestOpts...)
	return &Client{oai: openai.NewClient(reqOpts...), endpoint: base}, nil
}

// Endpoint returns the normalized project endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// remoteError maps openai-go and azcore failures to errs.RemoteServiceError.
func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	rerr := &errs.RemoteServiceError{Op: op, Err: err}
	var apiErr *openai.Error
	var azErr *azcore.ResponseError
	switch {
	case errors.As(err, &apiErr):
		rerr.StatusCode = apiErr.StatusCode
		rerr.Code = apiErr.Code
		rerr.Err = errors.New(apiErr.Message)
		if apiErr.Message == "" {
			rerr.Err = errors.New(http.StatusText(apiErr.StatusCode))
		}
	case errors.As(err, &azErr):
		rerr.StatusCode = azErr.StatusCode
		rerr.Code = azErr.ErrorCode
	}
	return rerr
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// CreateAgent implements agentservice.Service.
func (c *Client) CreateAgent(ctx context.Context, spec agentservice.AgentSpec) (*agentservice.Agent, error) {
	params := openai.BetaAssistantNewParams{
		Model: shared.ChatModel(spec.Model),
	}
	if spec.Name != "" {
		params.Name = openai.String(spec.Name)
	}
	if spec.Instructions != "" {
		params.Instructions = openai.String(spec.Instructions)
	}
	if spec.Description != "" {
		params.Description = openai.String(spec.Description)
	}
	if spec.Temperature != nil {
		params.Temperature = openai.Float(*spec.Temperature)
	}
	for _, t := range spec.Tools {
		fn := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: shared.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		params.Tools = append(params.Tools, openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{Function: fn},
		})
	}
	a, err := c.oai.Beta.Assistants.New(ctx, params)
	if err != nil {
		return nil, remoteError("create agent", err)
	}
	log.DebugfContext(ctx, "foundry: created agent %s", a.ID)
	return toAgent(a), nil
}

// GetAgent implements agentservice.Service.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*agentservice.Agent, error) {
	a, err := c.oai.Beta.Assistants.Get(ctx, agentID)
	if err != nil {
		return nil, remoteError("get agent", err)
	}
	return toAgent(a), nil
}

// DeleteAgent implements agentservice.Service.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	res, err := c.oai.Beta.Assistants.Delete(ctx, agentID)
	if err != nil {
		return remoteError("delete agent", err)
	}
	if !res.Deleted {
		return &errs.RemoteServiceError{Op: "delete agent", Err: fmt.Errorf("agent %s was not deleted", agentID)}
	}
	return nil
}

// CreateThread implements agentservice.Service.
func (c *Client) CreateThread(ctx context.Context) (*agentservice.Thread, error) {
	th, err := c.oai.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return nil, remoteError("create thread", err)
	}
	return &agentservice.Thread{ID: th.ID, CreatedAt: unix(th.CreatedAt)}, nil
}

type threadPage struct {
	Data    []openai.Thread `json:"data"`
	HasMore bool            `json:"has_more"`
	LastID  string          `json:"last_id"`
}

// ListThreads implements agentservice.Service.
// openai-go has no thread listing, so the request is issued directly.
func (c *Client) ListThreads(ctx context.Context) ([]agentservice.Thread, error) {
	var out []agentservice.Thread
	after := ""
	for {
		var page threadPage
		opts := []option.RequestOption{option.WithQuery("limit", "100")}
		if after != "" {
			opts = append(opts, option.WithQuery("after", after))
		}
		if err := c.oai.Get(ctx, "threads", nil, &page, opts...); err != nil {
			return nil, remoteError("list threads", err)
		}
		for _, th := range page.Data {
			out = append(out, agentservice.Thread{ID: th.ID, CreatedAt: unix(th.CreatedAt)})
		}
		if !page.HasMore || page.LastID == "" || page.LastID == after {
			return out, nil
		}
		after = page.LastID
	}
}

// CreateMessage implements agentservice.Service.
func (c *Client) CreateMessage(
	ctx context.Context, threadID string, role agentservice.Role, text string,
) (*agentservice.Message, error) {
	params := openai.BetaThreadMessageNewParams{
		Role:    openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(text)},
	}
	if role == agentservice.RoleAssistant {
		params.Role = openai.BetaThreadMessageNewParamsRoleAssistant
	}
	m, err := c.oai.Beta.Threads.Messages.New(ctx, threadID, params)
	if err != nil {
		return nil, remoteError("create message", err)
	}
	msg := toMessage(*m)
	return &msg, nil
}

// ListMessages implements agentservice.Service.
func (c *Client) ListMessages(
	ctx context.Context, threadID string, order agentservice.Order, runID string,
) ([]agentservice.Message, error) {
	params := openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
		Limit: openai.Int(100),
	}
	if order == agentservice.OrderDescending {
		params.Order = openai.BetaThreadMessageListParamsOrderDesc
	}
	if runID != "" {
		params.RunID = openai.String(runID)
	}
	iter := c.oai.Beta.Threads.Messages.ListAutoPaging(ctx, threadID, params)
	var out []agentservice.Message
	for iter.Next() {
		out = append(out, toMessage(iter.Current()))
	}
	if err := iter.Err(); err != nil {
		return nil, remoteError("list messages", err)
	}
	return out, nil
}

// CreateRun implements agentservice.Service.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*agentservice.Run, error) {
	r, err := c.oai.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{AssistantID: agentID})
	if err != nil {
		return nil, remoteError("create run", err)
	}
	return toRun(r), nil
}

// GetRun implements agentservice.Service.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*agentservice.Run, error) {
	r, err := c.oai.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, remoteError("get run", err)
	}
	return toRun(r), nil
}

// ListRuns implements agentservice.Service.
func (c *Client) ListRuns(ctx context.Context, threadID string) ([]agentservice.Run, error) {
	iter := c.oai.Beta.Threads.Runs.ListAutoPaging(ctx, threadID, openai.BetaThreadRunListParams{
		Order: openai.BetaThreadRunListParamsOrderAsc,
	})
	var out []agentservice.Run
	for iter.Next() {
		r := iter.Current()
		out = append(out, *toRun(&r))
	}
	if err := iter.Err(); err != nil {
		return nil, remoteError("list runs", err)
	}
	return out, nil
}

// ListRunSteps implements agentservice.Service.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) ([]agentservice.RunStep, error) {
	iter := c.oai.Beta.Threads.Runs.Steps.ListAutoPaging(ctx, threadID, runID, openai.BetaThreadRunStepListParams{
		Order: openai.BetaThreadRunStepListParamsOrderAsc,
	})
	var out []agentservice.RunStep
	for iter.Next() {
		out = append(out, toStep(iter.Current()))
	}
	if err := iter.Err(); err != nil {
		return nil, remoteError("list run steps", err)
	}
	return out, nil
}

// SubmitToolOutputs implements agentservice.Service.
func (c *Client) SubmitToolOutputs(
	ctx context.Context, threadID, runID string, outputs []agentservice.ToolOutput,
) (*agentservice.Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{}
	for _, o := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.ToolCallID),
			Output:     openai.String(o.Output),
		})
	}
	r, err := c.oai.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return nil, remoteError("submit tool outputs", err)
	}
	return toRun(r), nil
}

func toAgent(a *openai.Assistant) *agentservice.Agent {
	out := &agentservice.Agent{
		ID:           a.ID,
		Name:         a.Name,
		Model:        a.Model,
		Instructions: a.Instructions,
		CreatedAt:    unix(a.CreatedAt),
	}
	for _, t := range a.Tools {
		if t.Type != "function" {
			continue
		}
		out.Tools = append(out.Tools, agentservice.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return out
}

func toMessage(m openai.Message) agentservice.Message {
	out := agentservice.Message{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		RunID:     m.RunID,
		AgentID:   m.AssistantID,
		Role:      agentservice.Role(m.Role),
		CreatedAt: unix(m.CreatedAt),
	}
	for _, c := range m.Content {
		switch c.Type {
		case "text":
			out.Content = append(out.Content, agentservice.Content{Type: agentservice.ContentText, Text: c.Text.Value})
		default:
			out.Content = append(out.Content, agentservice.Content{Type: agentservice.ContentType(c.Type)})
		}
	}
	return out
}

func toRun(r *openai.Run) *agentservice.Run {
	out := &agentservice.Run{
		ID:           r.ID,
		ThreadID:     r.ThreadID,
		AgentID:      r.AssistantID,
		Status:       agentservice.RunStatus(r.Status),
		Instructions: r.Instructions,
		CreatedAt:    unix(r.CreatedAt),
		Usage: agentservice.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
	}
	if r.LastError.Code != "" || r.LastError.Message != "" {
		out.LastError = &agentservice.RunError{Code: r.LastError.Code, Message: r.LastError.Message}
	}
	for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		out.RequiredToolCalls = append(out.RequiredToolCalls, agentservice.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func toStep(s openai.RunStep) agentservice.RunStep {
	out := agentservice.RunStep{
		ID:        s.ID,
		RunID:     s.RunID,
		Type:      agentservice.RunStepType(s.StepDetails.Type),
		MessageID: s.StepDetails.MessageCreation.MessageID,
		CreatedAt: unix(s.CreatedAt),
	}
	for _, tc := range s.StepDetails.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, agentservice.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			Output:    tc.Function.Output,
		})
	}
	return out
}
