//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package errs defines the error kinds surfaced by the agent workflows.
//
// Configuration, telemetry availability and remote setup errors are fatal to
// a workflow. RunFailed is a reportable outcome: callers print it and keep
// going so that cleanup and later stages still run.
package errs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ConfigurationError reports required configuration values that are absent.
// Every missing key is collected before the error is returned.
type ConfigurationError struct {
	Missing []string
	Err     *multierror.Error
}

// NewConfigurationError builds a ConfigurationError for the given keys.
// It returns nil when keys is empty.
func NewConfigurationError(keys ...string) *ConfigurationError {
	if len(keys) == 0 {
		return nil
	}
	missing := append([]string(nil), keys...)
	sort.Strings(missing)
	var merr *multierror.Error
	for _, k := range missing {
		merr = multierror.Append(merr, fmt.Errorf("%s is not set", k))
	}
	merr.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, e := range es {
			parts[i] = e.Error()
		}
		return strings.Join(parts, "; ")
	}
	return &ConfigurationError{Missing: missing, Err: merr}
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

// Unwrap exposes the individual missing key errors.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RemoteServiceError wraps a failed call to a hosted service.
type RemoteServiceError struct {
	// Op names the remote operation, e.g. "create agent".
	Op         string
	StatusCode int
	Code       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": remote service error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d", e.StatusCode)
		if e.Code != "" {
			fmt.Fprintf(&b, ", code %s", e.Code)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// RunFailed reports a run that reached the failed status.
type RunFailed struct {
	RunID   string
	Code    string
	Message string
}

// Detail renders the error detail attached by the service as a JSON object.
func (e *RunFailed) Detail() string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(runErrorDetail{Code: e.Code, Message: e.Message}); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type runErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *RunFailed) Error() string {
	return fmt.Sprintf("run %s failed: %s", e.RunID, e.Detail())
}

// TelemetryUnavailable reports that the project has no observability backend.
type TelemetryUnavailable struct {
	Reason string
}

// TelemetryInstruction is printed when Application Insights is not configured.
const TelemetryInstruction = "Application Insights is not enabled. " +
	"Enable by going to Tracing in your Azure AI Foundry project."

func (e *TelemetryUnavailable) Error() string {
	if e.Reason == "" {
		return TelemetryInstruction
	}
	return TelemetryInstruction + " (" + e.Reason + ")"
}

// Timeout reports that polling exceeded its attempt or duration bound.
type Timeout struct {
	RunID      string
	LastStatus string
	Attempts   int
	Elapsed    time.Duration
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("run %s still %s after %d polls (%s)",
		e.RunID, e.LastStatus, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsRemote reports whether err is a RemoteServiceError.
func IsRemote(err error) bool {
	var target *RemoteServiceError
	return errors.As(err, &target)
}

// IsRunFailed reports whether err is a RunFailed.
func IsRunFailed(err error) bool {
	var target *RunFailed
	return errors.As(err, &target)
}

// IsTelemetryUnavailable reports whether err is a TelemetryUnavailable.
func IsTelemetryUnavailable(err error) bool {
	var target *TelemetryUnavailable
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a Timeout.
func IsTimeout(err error) bool {
	var target *Timeout
	return errors.As(err, &target)
}
