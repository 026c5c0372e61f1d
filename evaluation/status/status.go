//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package status provides the status of an evaluation.
package status

import "fmt"

// EvalStatus represents the status of an evaluation.
type EvalStatus int

const (
	// EvalStatusUnknown represents an unknown evaluation status.
	EvalStatusUnknown EvalStatus = iota
	// EvalStatusPassed represents a passed evaluation status.
	EvalStatusPassed
	// EvalStatusFailed represents a failed evaluation status.
	EvalStatusFailed
	// EvalStatusNotEvaluated means no score could be produced, for example
	// because there was no data.
	EvalStatusNotEvaluated
)

// String returns the string representation of the evaluation status.
func (s EvalStatus) String() string {
	switch s {
	case EvalStatusPassed:
		return "passed"
	case EvalStatusFailed:
		return "failed"
	case EvalStatusNotEvaluated:
		return "not_evaluated"
	default:
		return "unknown"
	}
}

// Label is the short verdict written into result rows: pass, fail or
// not_evaluated.
func (s EvalStatus) Label() string {
	switch s {
	case EvalStatusPassed:
		return "pass"
	case EvalStatusFailed:
		return "fail"
	default:
		return s.String()
	}
}

// FromScore returns passed when score reaches threshold.
func FromScore(score, threshold float64) EvalStatus {
	if score >= threshold {
		return EvalStatusPassed
	}
	return EvalStatusFailed
}

// Parse converts the output of String back into an EvalStatus.
func Parse(s string) (EvalStatus, error) {
	switch s {
	case "passed", "pass":
		return EvalStatusPassed, nil
	case "failed", "fail":
		return EvalStatusFailed, nil
	case "not_evaluated":
		return EvalStatusNotEvaluated, nil
	case "unknown", "":
		return EvalStatusUnknown, nil
	}
	return EvalStatusUnknown, fmt.Errorf("unknown eval status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s EvalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EvalStatus) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
