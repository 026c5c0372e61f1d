//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"net/http"

	openaiopt "github.com/openai/openai-go/option"
)

const (
	// defaultChannelBufferSize is the default channel buffer size.
	defaultChannelBufferSize = 4
	// defaultMaxRetries matches the openai-go client default.
	defaultMaxRetries = 2
)

// options contains configuration options for creating a Model.
type options struct {
	// APIKey for the OpenAI client. Sent as Api-Key for Azure endpoints.
	APIKey string
	// BaseURL of an OpenAI-compatible API.
	BaseURL string
	// AzureEndpoint switches the client to Azure OpenAI deployments.
	AzureEndpoint string
	// APIVersion is the Azure OpenAI api-version.
	APIVersion string
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
	// MaxRetries bounds the client retries.
	MaxRetries int
	// Buffer size for response channels.
	ChannelBufferSize int
	// Options for the OpenAI client.
	OpenAIOptions []openaiopt.RequestOption
}

var defaultOptions = options{
	ChannelBufferSize: defaultChannelBufferSize,
	MaxRetries:        defaultMaxRetries,
}

// Option is a function that configures a Model.
type Option func(*options)

// WithAPIKey sets the API key for the model.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.APIKey = key
	}
}

// WithBaseURL sets the base URL of an OpenAI-compatible API.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.BaseURL = url
	}
}

// WithAzureEndpoint targets the deployments of an Azure OpenAI resource.
// The model name is used as deployment name.
func WithAzureEndpoint(endpoint, apiVersion string) Option {
	return func(o *options) {
		o.AzureEndpoint = endpoint
		o.APIVersion = apiVersion
	}
}

// WithHTTPClient sets the HTTP client used by the model.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.HTTPClient = c
	}
}

// WithMaxRetries sets how many times a failed call is retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.MaxRetries = n
		}
	}
}

// WithChannelBufferSize sets the channel buffer size for the model.
func WithChannelBufferSize(size int) Option {
	return func(o *options) {
		if size <= 0 {
			size = defaultChannelBufferSize
		}
		o.ChannelBufferSize = size
	}
}

// WithOpenAIOptions appends raw openai-go request options.
func WithOpenAIOptions(openaiOpts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.OpenAIOptions = append(o.OpenAIOptions, openaiOpts...)
	}
}
