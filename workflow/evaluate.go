//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/conversation"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator/llm"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/metrics"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/poller"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
	"trpc.group/trpc-go/trpc-agent-foundry/userfunctions"
)

// Evaluation agent settings.
const (
	EvaluationAgentName    = "city-travel-agent"
	EvaluationInstructions = "You are helpful agent"
	EvaluationPrompt       = "Tell me about Seattle"
)

// EvaluateAgent creates the travel agent, asks it about Seattle, saves
// the conversation as evaluation records and scores them. The agent is
// deleted exactly once whatever the run outcome.
func (r *Runner) EvaluateAgent(ctx context.Context) (report *evaluation.Report, err error) {
	keys := config.AgentKeys
	if r.evaluators == nil {
		keys = append(append([]string{}, config.AgentKeys...), config.EvaluationKeys...)
	}
	if err := r.cfg.Validate(keys...); err != nil {
		return nil, err
	}
	evaluators := r.evaluators
	if evaluators == nil {
		if evaluators, err = evaluation.SelectEvaluators(llm.ModelConfigFrom(r.cfg), r.evaluatorNames); err != nil {
			return nil, err
		}
	}
	tools := r.agentTools
	if tools == nil {
		tools = userfunctions.Set()
	}

	sess, err := conversation.Start(ctx, r.svc, conversation.Request{
		Agent: agentservice.AgentSpec{
			Name:         EvaluationAgentName,
			Model:        r.cfg.AgentModel,
			Instructions: EvaluationInstructions,
			Tools:        tools.Definitions(),
		},
		Prompt: EvaluationPrompt,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.WarnfContext(ctx, "workflow: delete agent %s: %v", sess.Agent.ID, cerr)
			if err == nil {
				err = fmt.Errorf("delete agent: %w", cerr)
			}
		}
	}()
	r.printf("Created agent, ID: %s", sess.Agent.ID)
	r.printf("Created message, ID: %s", sess.Message.ID)

	p := r.newPoller(
		poller.WithRunCreated(func(run *agentservice.Run) { r.printf("Run ID: %s", run.ID) }),
		poller.WithToolHandler(tools),
	)
	if err := r.reportRun(p.Run(ctx, sess.Thread.ID, sess.Agent.ID)); err != nil {
		return nil, err
	}

	lines, err := transcript.NewCollector(r.svc).Collect(ctx, sess.Thread.ID)
	if err != nil {
		return nil, err
	}
	if err := transcript.Render(r.out, lines); err != nil {
		return nil, err
	}

	records, err := transcript.NewConverter(r.svc).Prepare(ctx, sess.Thread.ID)
	if err != nil {
		return nil, err
	}
	dataFile, err := filepath.Abs(r.cfg.OutputFile)
	if err != nil {
		return nil, err
	}
	if err := transcript.WriteJSONL(dataFile, records); err != nil {
		return nil, err
	}
	r.printf("Evaluation data saved to %s", dataFile)

	opts := []evaluation.Option{evaluation.WithProjectEndpoint(r.cfg.ProjectEndpoint)}
	if r.results != nil {
		opts = append(opts, evaluation.WithResultManager(EvaluationAgentName, r.results))
	}
	pipeline, err := evaluation.New(append(opts, r.pipelineOpts...)...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()
	if report, err = pipeline.Evaluate(ctx, dataFile, evaluators); err != nil {
		return nil, err
	}

	if err := sess.Close(ctx); err != nil {
		return nil, fmt.Errorf("delete agent: %w", err)
	}
	if r.metricsTextfile != "" {
		if err := metrics.WriteReport(r.metricsTextfile, report); err != nil {
			return nil, err
		}
	}
	r.printf("AI Foundry URL: %s", report.StudioURL)
	r.printMetrics(report)
	return report, nil
}

func (r *Runner) printMetrics(report *evaluation.Report) {
	for _, key := range report.MetricNames() {
		m := report.Metrics[key]
		if m.Value == nil {
			r.printf("%s: %s (%s)", key, m.Status, m.Reason)
			continue
		}
		r.printf("%s: %.4g", key, *m.Value)
	}
}
