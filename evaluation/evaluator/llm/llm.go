//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package llm provides base helpers for LLM-backed evaluators.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/errs"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/model"
	"trpc.group/trpc-go/trpc-agent-foundry/model/openai"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
	atrace "trpc.group/trpc-go/trpc-agent-foundry/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// ModelConfig locates the Azure OpenAI deployment used as judge.
type ModelConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
}

// ModelConfigFrom extracts the judge settings from cfg.
func ModelConfigFrom(cfg *config.Config) ModelConfig {
	return ModelConfig{
		Endpoint:   cfg.OpenAIEndpoint,
		APIKey:     cfg.OpenAIAPIKey,
		APIVersion: cfg.EvalAPIVersion,
		Deployment: cfg.ChatDeployment,
	}
}

// Validate reports every missing setting at once.
func (c ModelConfig) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, config.EnvOpenAIEndpoint)
	}
	if c.APIKey == "" {
		missing = append(missing, config.EnvOpenAIAPIKey)
	}
	if c.Deployment == "" {
		missing = append(missing, config.EnvChatDeployment)
	}
	if len(missing) == 0 {
		return nil
	}
	return errs.NewConfigurationError(missing...)
}

// NewJudgeModel builds the chat model shared by the judge evaluators.
func NewJudgeModel(cfg ModelConfig, opts ...openai.Option) (model.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []openai.Option{
		openai.WithAzureEndpoint(cfg.Endpoint, cfg.APIVersion),
		openai.WithAPIKey(cfg.APIKey),
	}
	return openai.New(cfg.Deployment, append(base, opts...)...), nil
}

// MessagesConstructor builds the judge prompt for one record.
type MessagesConstructor interface {
	ConstructMessages(ctx context.Context, record *transcript.Record) ([]model.Message, error)
}

// ResponseScorer turns the judge answer into a score.
type ResponseScorer interface {
	ScoreBasedOnResponse(ctx context.Context, rsp *model.Response) (*ScoreResult, error)
}

// Applicability is implemented by judges that cannot score every record.
// A record that is not applicable is reported as not evaluated with reason.
type Applicability interface {
	Applicable(record *transcript.Record) (ok bool, reason string)
}

// Judge is the prompt and scoring logic of one LLM evaluator.
type Judge interface {
	MessagesConstructor
	ResponseScorer
}

// ScoreResult is the parsed judge verdict.
type ScoreResult struct {
	Score  float64
	Reason string
}

// LLMBaseEvaluator hosts the orchestration shared by LLM evaluators.
type LLMBaseEvaluator struct {
	name        string
	description string
	judge       Judge
	model       model.Model
	opts        *options
}

var _ evaluator.RecordEvaluator = (*LLMBaseEvaluator)(nil)

// New creates an evaluator named name that asks m to judge records.
func New(name, description string, judge Judge, m model.Model, opt ...Option) *LLMBaseEvaluator {
	return &LLMBaseEvaluator{
		name:        name,
		description: description,
		judge:       judge,
		model:       m,
		opts:        newOptions(opt...),
	}
}

// Name returns the evaluator name.
func (e *LLMBaseEvaluator) Name() string {
	return e.name
}

// Description describes the evaluator.
func (e *LLMBaseEvaluator) Description() string {
	return e.description
}

// Threshold returns the minimum passing score.
func (e *LLMBaseEvaluator) Threshold() float64 {
	return e.opts.threshold
}

// Evaluate scores every record in order and aggregates the scores.
func (e *LLMBaseEvaluator) Evaluate(ctx context.Context, records []*transcript.Record) (*evaluator.Result, error) {
	results := make([]*evaluator.RecordResult, 0, len(records))
	for i, record := range records {
		res, err := e.EvaluateRecord(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		results = append(results, res)
	}
	return evaluator.Aggregate(results, e.opts.threshold), nil
}

// EvaluateRecord asks the judge about one record.
func (e *LLMBaseEvaluator) EvaluateRecord(ctx context.Context, record *transcript.Record) (*evaluator.RecordResult, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if a, ok := e.judge.(Applicability); ok {
		if applicable, reason := a.Applicable(record); !applicable {
			log.DebugfContext(ctx, "%s skipped run %s: %s", e.name, record.RunID, reason)
			return evaluator.NotEvaluated(reason, e.opts.threshold), nil
		}
	}

	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewEvaluateSpanName(e.name))
	defer span.End()
	span.SetAttributes(
		attribute.String(semconv.KeyGenAIOperationName, itelemetry.OperationEvaluate),
		attribute.String(semconv.KeyGenAIEvaluationName, e.name),
		attribute.String(semconv.KeyGenAIConversationID, record.ThreadID),
		attribute.String(semconv.KeyRunID, record.RunID),
	)

	res, err := e.evaluateRecord(ctx, record)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Float64(semconv.KeyGenAIEvaluationScore, res.Score),
		attribute.String(semconv.KeyGenAIEvaluationLabel, res.Status.Label()),
	)
	itelemetry.RecordEvaluationScore(ctx, e.name, res.Status.String(), res.Score)
	return res, nil
}

func (e *LLMBaseEvaluator) evaluateRecord(ctx context.Context, record *transcript.Record) (*evaluator.RecordResult, error) {
	messages, err := e.judge.ConstructMessages(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("construct messages: %w", err)
	}
	samples := make([]*ScoreResult, 0, e.opts.numSamples)
	for range e.opts.numSamples {
		rsp, err := e.judgeModelResponse(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("judge model response: %w", err)
		}
		score, err := e.judge.ScoreBasedOnResponse(ctx, rsp)
		if err != nil {
			return nil, fmt.Errorf("score based on response: %w", err)
		}
		samples = append(samples, score)
	}
	return aggregateSamples(samples, e.opts.threshold), nil
}

// aggregateSamples averages the sample scores. The reason is taken from the
// first sample whose own verdict agrees with the averaged one.
func aggregateSamples(samples []*ScoreResult, threshold float64) *evaluator.RecordResult {
	sum := 0.0
	for _, s := range samples {
		sum += s.Score
	}
	mean := sum / float64(len(samples))
	verdict := status.FromScore(mean, threshold)
	reason := samples[0].Reason
	for _, s := range samples {
		if status.FromScore(s.Score, threshold) == verdict {
			reason = s.Reason
			break
		}
	}
	return &evaluator.RecordResult{
		Score:     mean,
		Status:    verdict,
		Reason:    reason,
		Threshold: threshold,
	}
}

// judgeModelResponse calls the judge model and returns the final response.
func (e *LLMBaseEvaluator) judgeModelResponse(ctx context.Context, messages []model.Message) (*model.Response, error) {
	temperature := e.opts.temperature
	maxTokens := e.opts.maxTokens
	req := &model.Request{
		Messages: messages,
		GenerationConfig: model.GenerationConfig{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			JSONMode:    true,
		},
	}
	rsp, err := model.Generate(ctx, e.model, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rsp.Content()) == "" {
		return nil, errors.New("empty judge response")
	}
	return rsp, nil
}
