//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package evaluation scores transcript records with a set of named
// evaluators and aggregates the scores into a report.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/status"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// Report, Metric and Row are the stored shape of a pipeline run.
type (
	Report = evalresult.Report
	Metric = evalresult.Metric
	Row    = evalresult.Row
)

const (
	// BinaryAggregate is the metric suffix of the pass rate.
	BinaryAggregate = "binary_aggregate"
	// ReasonNoData is reported when the data file holds no record.
	ReasonNoData = "no data"
)

// MetricKey returns "<evaluator>.<metric>".
func MetricKey(evaluatorName, metric string) string {
	return evaluatorName + "." + metric
}

// Pipeline runs evaluators over evaluation records.
type Pipeline struct {
	pool *ants.PoolWithFunc
	opts *options
}

// New creates a Pipeline. Close releases its worker pool.
func New(opt ...Option) (*Pipeline, error) {
	opts := newOptions(opt...)
	pool, err := createEvaluationPool(opts.poolSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{pool: pool, opts: opts}, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() error {
	p.pool.Release()
	return nil
}

// Evaluate reads dataFile and scores its records.
func (p *Pipeline) Evaluate(ctx context.Context, dataFile string,
	evaluators map[string]evaluator.Evaluator) (*Report, error) {
	records, err := transcript.ReadJSONL(dataFile)
	if err != nil {
		return nil, fmt.Errorf("read evaluation data: %w", err)
	}
	ptrs := make([]*transcript.Record, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	report, err := p.EvaluateRecords(ctx, ptrs, evaluators)
	if err != nil {
		return nil, err
	}
	report.DataFile = dataFile
	if err := p.save(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// EvaluateRecords scores records with every evaluator. Evaluators that
// implement evaluator.RecordEvaluator are fanned out per record.
// Without records every evaluator is reported as not evaluated.
func (p *Pipeline) EvaluateRecords(ctx context.Context, records []*transcript.Record,
	evaluators map[string]evaluator.Evaluator) (*Report, error) {
	if len(evaluators) == 0 {
		return nil, errors.New("no evaluator configured")
	}
	names := make([]string, 0, len(evaluators))
	for name, e := range evaluators {
		if e == nil {
			return nil, fmt.Errorf("evaluator %s is nil", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	start := time.Now()
	results := make(map[string]*evaluator.Result, len(names))
	if len(records) > 0 {
		var err error
		if results, err = p.run(ctx, names, records, evaluators); err != nil {
			return nil, err
		}
	}
	report := buildReport(names, records, results)
	report.ID = uuid.NewString()
	report.CreatedAt = time.Now().UTC()
	report.StudioURL = StudioURL(p.opts.projectEndpoint)
	log.InfofContext(ctx, "evaluated %d records with %d evaluators in %s",
		len(records), len(names), time.Since(start).Round(time.Millisecond))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, names []string, records []*transcript.Record,
	evaluators map[string]evaluator.Evaluator) (map[string]*evaluator.Result, error) {
	outcomes := make(map[string]*evaluatorOutcome, len(names))
	var wg sync.WaitGroup
	submit := func(task *evaluationTask) {
		wg.Add(1)
		task.wg = &wg
		if err := p.pool.Invoke(task); err != nil {
			wg.Done()
			task.out.fail(fmt.Errorf("submit evaluation task: %w", err))
			task.reset()
			evaluationTaskPool.Put(task)
		}
	}
	for _, name := range names {
		e := evaluators[name]
		out := &evaluatorOutcome{}
		outcomes[name] = out
		re, ok := e.(evaluator.RecordEvaluator)
		if !ok {
			task := evaluationTaskPool.Get().(*evaluationTask)
			task.ctx, task.evaluator, task.records, task.out = ctx, e, records, out
			submit(task)
			continue
		}
		out.perRecord = make([]*evaluator.RecordResult, len(records))
		for i := range records {
			task := evaluationTaskPool.Get().(*evaluationTask)
			task.ctx, task.evaluator, task.recordEvaluator = ctx, e, re
			task.records, task.idx, task.out = records, i, out
			submit(task)
		}
	}
	wg.Wait()

	var result *multierror.Error
	results := make(map[string]*evaluator.Result, len(names))
	for _, name := range names {
		out := outcomes[name]
		for _, err := range out.errs {
			result = multierror.Append(result, fmt.Errorf("evaluator %s: %w", name, err))
		}
		if len(out.errs) > 0 {
			continue
		}
		if out.result != nil {
			results[name] = out.result
			continue
		}
		re := evaluators[name].(evaluator.RecordEvaluator)
		results[name] = evaluator.Aggregate(out.perRecord, re.Threshold())
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildReport(names []string, records []*transcript.Record, results map[string]*evaluator.Result) *Report {
	report := &Report{
		Metrics: make(map[string]Metric, 2*len(names)),
		Rows:    make([]Row, len(records)),
	}
	for i, rec := range records {
		report.Rows[i] = Row{ThreadID: rec.ThreadID, RunID: rec.RunID, Outputs: map[string]any{}}
	}
	for _, name := range names {
		res := results[name]
		scoreKey, passKey := MetricKey(name, name), MetricKey(name, BinaryAggregate)
		if res == nil || res.OverallStatus == status.EvalStatusNotEvaluated {
			reason := ReasonNoData
			if res != nil {
				reason = firstReason(res.PerRecord)
			}
			report.Metrics[scoreKey] = Metric{Status: status.EvalStatusNotEvaluated, Reason: reason}
			report.Metrics[passKey] = Metric{Status: status.EvalStatusNotEvaluated, Reason: reason}
		} else {
			score, passRate := res.OverallScore, res.PassRate
			report.Metrics[scoreKey] = Metric{Value: &score, Status: res.OverallStatus}
			report.Metrics[passKey] = Metric{Value: &passRate, Status: res.OverallStatus}
		}
		if res == nil {
			continue
		}
		if len(res.PerRecord) != len(records) {
			log.Warnf("evaluator %s returned %d record results for %d records; rows omitted",
				name, len(res.PerRecord), len(records))
			continue
		}
		for i, rr := range res.PerRecord {
			if rr == nil {
				continue
			}
			for k, v := range rr.Outputs(name) {
				report.Rows[i].Outputs[MetricKey(name, k)] = v
			}
		}
	}
	return report
}

func firstReason(results []*evaluator.RecordResult) string {
	for _, r := range results {
		if r != nil && r.Reason != "" {
			return r.Reason
		}
	}
	return ReasonNoData
}

func (p *Pipeline) save(ctx context.Context, report *Report) error {
	if p.opts.resultManager == nil {
		return nil
	}
	id, err := p.opts.resultManager.Save(ctx, p.opts.appName, report)
	if err != nil {
		return fmt.Errorf("save evaluation report: %w", err)
	}
	log.DebugfContext(ctx, "saved evaluation report %s", id)
	return nil
}

// StudioURL links the evaluation page of the AI Foundry project behind
// projectEndpoint, e.g. https://<resource>.services.ai.azure.com/api/projects/<project>.
// It returns "" when the endpoint does not name a project.
func StudioURL(projectEndpoint string) string {
	u, err := url.Parse(projectEndpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	resource, _, _ := strings.Cut(u.Hostname(), ".")
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "projects" || parts[2] == "" {
		return ""
	}
	q := url.Values{}
	q.Set("resource", resource)
	q.Set("project", parts[2])
	return "https://ai.azure.com/build/evaluation?" + q.Encode()
}
