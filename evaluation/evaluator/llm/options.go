//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llm

import "trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"

const (
	// DefaultNumSamples is the number of judge calls per record.
	DefaultNumSamples = 1
	// DefaultMaxTokens bounds the judge answer.
	DefaultMaxTokens = 800
)

type options struct {
	threshold   float64
	numSamples  int
	temperature float64
	maxTokens   int
}

func newOptions(opt ...Option) *options {
	opts := &options{
		threshold:  evaluator.DefaultThreshold,
		numSamples: DefaultNumSamples,
		maxTokens:  DefaultMaxTokens,
	}
	for _, o := range opt {
		o(opts)
	}
	return opts
}

// Option configures an LLM judge evaluator.
type Option func(*options)

// WithThreshold sets the minimum passing score.
func WithThreshold(threshold float64) Option {
	return func(o *options) {
		o.threshold = threshold
	}
}

// WithNumSamples sets how many times the judge is asked per record.
// Scores of the samples are averaged.
func WithNumSamples(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.numSamples = n
		}
	}
}

// WithTemperature sets the judge sampling temperature. The default is 0.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithMaxTokens bounds the judge answer length.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}
