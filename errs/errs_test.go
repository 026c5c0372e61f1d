//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationErrorListsAllKeys(t *testing.T) {
	err := NewConfigurationError("AZURE_OPENAI_SERVICE", "AZURE_OPENAI_API_KEY")
	require.NotNil(t, err)
	assert.Equal(t, []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_SERVICE"}, err.Missing)
	assert.Equal(t,
		"configuration error: AZURE_OPENAI_API_KEY is not set; AZURE_OPENAI_SERVICE is not set",
		err.Error())
	assert.Nil(t, NewConfigurationError())
}

func TestRunFailedDetail(t *testing.T) {
	assert.Equal(t, `{"code":"rate_limit"}`, (&RunFailed{Code: "rate_limit"}).Detail())
	assert.Equal(t, `{"code":"server_error","message":"boom"}`,
		(&RunFailed{Code: "server_error", Message: "boom"}).Detail())
	assert.Equal(t, "{}", (&RunFailed{}).Detail())
	assert.Equal(t, `run run_1 failed: {"code":"rate_limit"}`,
		(&RunFailed{RunID: "run_1", Code: "rate_limit"}).Error())
}

func TestRunFailedDetailIsValidJSON(t *testing.T) {
	detail := (&RunFailed{Code: "bad\x01code", Message: "café <b>\"quoted\"</b>"}).Detail()
	require.True(t, json.Valid([]byte(detail)), detail)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(detail), &got))
	assert.Equal(t, "bad\x01code", got["code"])
	assert.Equal(t, "café <b>\"quoted\"</b>", got["message"])
	assert.Contains(t, detail, "<b>")
	assert.Equal(t, `{"message":"boom"}`, (&RunFailed{Message: "boom"}).Detail())
}

func TestRemoteServiceErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &RemoteServiceError{Op: "create agent", StatusCode: 400, Code: "invalid_model", Err: cause}
	assert.Equal(t, "create agent: remote service error (status 400, code invalid_model): dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "get run: remote service error", (&RemoteServiceError{Op: "get run"}).Error())
}

func TestKindPredicatesSeeThroughWrapping(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("workflow: %w", err) }
	assert.True(t, IsConfiguration(wrap(NewConfigurationError("X"))))
	assert.True(t, IsRemote(wrap(&RemoteServiceError{Op: "x"})))
	assert.True(t, IsRunFailed(wrap(&RunFailed{})))
	assert.True(t, IsTelemetryUnavailable(wrap(&TelemetryUnavailable{})))
	assert.True(t, IsTimeout(wrap(&Timeout{})))
	assert.False(t, IsTimeout(errors.New("other")))
}

func TestTimeoutMessage(t *testing.T) {
	err := &Timeout{RunID: "run_1", LastStatus: "in_progress", Attempts: 3, Elapsed: 3 * time.Second}
	assert.Equal(t, "run run_1 still in_progress after 3 polls (3s)", err.Error())
}

func TestTelemetryUnavailableMessage(t *testing.T) {
	assert.Equal(t, TelemetryInstruction, (&TelemetryUnavailable{}).Error())
	assert.Contains(t, (&TelemetryUnavailable{Reason: "no connection"}).Error(), "(no connection)")
}
