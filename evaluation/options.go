//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package evaluation

import (
	"runtime"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
)

type options struct {
	poolSize        int
	projectEndpoint string
	appName         string
	resultManager   evalresult.Manager
}

func newOptions(opt ...Option) *options {
	opts := &options{
		poolSize: runtime.GOMAXPROCS(0),
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures a Pipeline.
type Option func(*options)

// WithPoolSize bounds the number of evaluation tasks running at once.
func WithPoolSize(size int) Option {
	return func(o *options) {
		o.poolSize = size
	}
}

// WithProjectEndpoint sets the AI Foundry project the report links to.
func WithProjectEndpoint(endpoint string) Option {
	return func(o *options) {
		o.projectEndpoint = endpoint
	}
}

// WithResultManager stores every report under appName.
func WithResultManager(appName string, m evalresult.Manager) Option {
	return func(o *options) {
		o.appName = appName
		o.resultManager = m
	}
}
