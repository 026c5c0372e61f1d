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
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evaluator"
	"trpc.group/trpc-go/trpc-agent-foundry/transcript"
)

// evaluationTask scores one record with a RecordEvaluator, or every record
// with a plain Evaluator when recordEvaluator is nil.
type evaluationTask struct {
	ctx             context.Context
	evaluator       evaluator.Evaluator
	recordEvaluator evaluator.RecordEvaluator
	records         []*transcript.Record
	idx             int
	out             *evaluatorOutcome
	wg              *sync.WaitGroup
}

func (p *evaluationTask) reset() {
	p.ctx = nil
	p.evaluator = nil
	p.recordEvaluator = nil
	p.records = nil
	p.idx = 0
	p.out = nil
	p.wg = nil
}

var evaluationTaskPool = &sync.Pool{
	New: func() any { return new(evaluationTask) },
}

// evaluatorOutcome collects what the tasks of one evaluator produced.
type evaluatorOutcome struct {
	mu        sync.Mutex
	perRecord []*evaluator.RecordResult
	result    *evaluator.Result
	errs      []error
}

func (o *evaluatorOutcome) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (p *evaluationTask) run() {
	if p.recordEvaluator != nil {
		res, err := p.recordEvaluator.EvaluateRecord(p.ctx, p.records[p.idx])
		if err != nil {
			p.out.fail(fmt.Errorf("record %d: %w", p.idx, err))
			return
		}
		// Each task owns its slot.
		p.out.perRecord[p.idx] = res
		return
	}
	res, err := p.evaluator.Evaluate(p.ctx, p.records)
	if err != nil {
		p.out.fail(err)
		return
	}
	p.out.result = res
}

func createEvaluationPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		task, ok := args.(*evaluationTask)
		if !ok {
			panic("evaluation pool args type error")
		}
		wg := task.wg
		defer func() {
			wg.Done()
			task.reset()
			evaluationTaskPool.Put(task)
		}()
		task.run()
	})
	if err != nil {
		return nil, fmt.Errorf("create evaluation pool: %w", err)
	}
	return pool, nil
}
