//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides interfaces for working with chat models.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Model is the interface for all language models.
type Model interface {
	// GenerateContent sends request and streams back responses. The channel
	// is closed after the final response.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)
	// Info returns basic information about the model.
	Info() Info
}

// Info describes a model.
type Info struct {
	Name string
}

// Generate runs request on m and returns the final response.
// An API-level error carried by a response is returned as error.
func Generate(ctx context.Context, m Model, request *Request) (*Response, error) {
	ch, err := m.GenerateContent(ctx, request)
	if err != nil {
		return nil, err
	}
	var last *Response
	for rsp := range ch {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			return rsp, fmt.Errorf("model %s: %s", m.Info().Name, rsp.Error.Message)
		}
		last = rsp
	}
	if last == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("model returned no response")
	}
	return last, nil
}
