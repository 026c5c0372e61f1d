//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-agent-foundry/model"
)

const (
	// LikertMin is the lowest Likert score.
	LikertMin = 1.0
	// LikertMax is the highest Likert score.
	LikertMax = 5.0
)

// LikertScorer reads a JSON verdict of the form
// {"explanation": "...", "score": 4} from the judge answer.
type LikertScorer struct {
	// ScoreField names the score property. Empty means "score".
	ScoreField string
}

var _ ResponseScorer = LikertScorer{}

// ScoreBasedOnResponse implements ResponseScorer.
func (s LikertScorer) ScoreBasedOnResponse(_ context.Context, rsp *model.Response) (*ScoreResult, error) {
	content := rsp.Content()
	if content == "" {
		return nil, errors.New("empty response text")
	}
	obj, err := extractObject(content)
	if err != nil {
		return nil, err
	}
	field := s.ScoreField
	if field == "" {
		field = "score"
	}
	raw, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("judge answer has no %q", field)
	}
	score, err := parseScore(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	if score < LikertMin || score > LikertMax {
		return nil, fmt.Errorf("%s %v out of range [%v, %v]", field, score, LikertMin, LikertMax)
	}
	return &ScoreResult{Score: score, Reason: reasonOf(obj)}, nil
}

// extractObject decodes the outermost JSON object found in content.
// Judges sometimes wrap the object in prose or code fences.
func extractObject(content string) (map[string]json.RawMessage, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in judge answer")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("decode judge answer: %w", err)
	}
	return obj, nil
}

func parseScore(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported value %s", raw)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func reasonOf(obj map[string]json.RawMessage) string {
	for _, key := range []string{"explanation", "reason", "chain_of_thought"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}
