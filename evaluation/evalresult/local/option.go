//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package local

import "trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"

// defaultBaseDir is where reports are written without WithBaseDir.
const defaultBaseDir = ".foundry/results"

type options struct {
	baseDir string
	locator evalresult.Locator
}

func newOptions(opt ...Option) *options {
	opts := &options{
		baseDir: defaultBaseDir,
		locator: evalresult.NewLocator(),
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures the local evaluation report manager.
type Option func(*options)

// WithBaseDir overrides the default base directory used to store reports.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.baseDir = dir
		}
	}
}

// WithLocator overrides the file layout.
func WithLocator(l evalresult.Locator) Option {
	return func(o *options) {
		if l != nil {
			o.locator = l
		}
	}
}
