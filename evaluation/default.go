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
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/intentresolution"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/llm"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/registry"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/taskadherence"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/toolcallaccuracy"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
)

// DefaultRegistry registers the agent quality evaluators, all sharing judge.
func DefaultRegistry(judge model.Model, opts ...llm.Option) registry.Registry {
	return registry.New(
		toolcallaccuracy.New(judge, opts...),
		intentresolution.New(judge, opts...),
		taskadherence.New(judge, opts...),
	)
}

// DefaultEvaluators builds the agent quality evaluators on the judge
// deployment described by cfg. A missing setting yields a
// *errs.ConfigurationError before any evaluator is built.
func DefaultEvaluators(cfg llm.ModelConfig, opts ...llm.Option) (map[string]evaluator.Evaluator, error) {
	return SelectEvaluators(cfg, nil, opts...)
}

// SelectEvaluators is DefaultEvaluators restricted to names. Empty names
// selects every evaluator; an unknown name wraps os.ErrNotExist.
func SelectEvaluators(cfg llm.ModelConfig, names []string, opts ...llm.Option) (map[string]evaluator.Evaluator, error) {
	judge, err := llm.NewJudgeModel(cfg)
	if err != nil {
		return nil, err
	}
	return DefaultRegistry(judge, opts...).Select(names...)
}
