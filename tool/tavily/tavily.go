//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tavily provides a web search tool backed by the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-foundry/tool"
	"trpc.group/trpc-go/trpc-agent-foundry/tool/function"
)

// Default configuration constants
const (
	DefaultName       = "tavily_search_results_json"
	defaultBaseURL    = "https://api.tavily.com"
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 2
	defaultDepth      = "advanced"
	maxErrorBody      = 512
)

type config struct {
	name       string
	baseURL    string
	httpClient *http.Client
	maxResults int
	depth      string
}

// Option is a functional option for configuring the search tool.
type Option func(*config)

// WithMaxResults sets the number of results returned per query.
func WithMaxResults(n int) Option {
	return func(c *config) {
		c.maxResults = n
	}
}

// WithBaseURL points the tool at another Tavily compatible endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithSearchDepth sets "basic" or "advanced".
func WithSearchDepth(depth string) Option {
	return func(c *config) {
		c.depth = depth
	}
}

// WithName overrides the tool name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Input is the tool argument.
type Input struct {
	Query string `json:"query" jsonschema:"description=search query to look up"`
}

// Result is one search hit.
type Result struct {
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Searcher calls the Tavily search endpoint.
type Searcher struct {
	apiKey string
	cfg    config
}

// NewSearcher returns a Searcher for apiKey.
func NewSearcher(apiKey string, opts ...Option) *Searcher {
	cfg := config{
		name:       DefaultName,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxResults: defaultMaxResults,
		depth:      defaultDepth,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Searcher{apiKey: apiKey, cfg: cfg}
}

// New returns the search tool.
func New(apiKey string, opts ...Option) tool.CallableTool {
	s := NewSearcher(apiKey, opts...)
	return function.NewFunctionTool(
		s.Search,
		function.WithName(s.cfg.name),
		function.WithDescription("A search engine optimized for comprehensive, accurate, and trusted results. "+
			"Useful for when you need to answer questions about current events. Input should be a search query."),
	)
}

// Search runs one query.
func (s *Searcher) Search(ctx context.Context, in Input) ([]Result, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if s.apiKey == "" {
		return nil, fmt.Errorf("tavily api key is not set")
	}
	body, err := json.Marshal(searchRequest{Query: in.Query, MaxResults: s.cfg.maxResults, SearchDepth: s.cfg.depth})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.cfg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	if len(out.Results) > s.cfg.maxResults {
		out.Results = out.Results[:s.cfg.maxResults]
	}
	return out.Results, nil
}
