//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import "time"

// ErrorTypeAPIError marks a failure reported by the chat deployment.
const ErrorTypeAPIError = "api_error"

// Choice is one candidate answer.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message,omitempty"`
	// FinishReason is "stop", "length", "tool_calls" or "content_filter".
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Usage counts the tokens of one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one completion.
//
// Error is set when the deployment answered with a failure such as a rate
// limit or a content filter hit. Transport failures are returned by
// GenerateContent instead.
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	// Usage is nil when the deployment omits it.
	Usage     *Usage         `json:"usage,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	// Done marks the last response of a request.
	Done bool `json:"done"`
}

// Content returns the text of the first choice.
func (rsp *Response) Content() string {
	if rsp == nil || len(rsp.Choices) == 0 {
		return ""
	}
	return rsp.Choices[0].Message.Content
}

// IsToolCallResponse reports whether the first choice asks for tools.
func (rsp *Response) IsToolCallResponse() bool {
	return rsp != nil && len(rsp.Choices) > 0 && len(rsp.Choices[0].Message.ToolCalls) > 0
}

// ResponseError is a failure reported by the deployment.
type ResponseError struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param,omitempty"`
	Code    *string `json:"code,omitempty"`
}
