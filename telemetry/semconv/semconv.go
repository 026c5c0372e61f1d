//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package semconv holds span attribute keys and metric names.
//
// gen_ai.* keys follow
// https://github.com/open-telemetry/semantic-conventions/blob/main/docs/gen-ai/gen-ai-agent-spans.md
package semconv

// Resource defaults.
const (
	ResourceServiceNamespace = "trpc-agent-foundry"
	ResourceServiceName      = "foundry-agent"
	ResourceServiceVersion   = "v0.1.0"
)

// GenAI span attributes.
const (
	KeyGenAIOperationName      = "gen_ai.operation.name"
	KeyGenAISystem             = "gen_ai.system"
	KeyGenAIProviderName       = "gen_ai.provider.name"
	KeyGenAIRequestModel       = "gen_ai.request.model"
	KeyGenAIRequestTemperature = "gen_ai.request.temperature"
	KeyGenAIResponseModel      = "gen_ai.response.model"
	KeyGenAIResponseID         = "gen_ai.response.id"
	KeyGenAIFinishReasons      = "gen_ai.response.finish_reasons"
	KeyGenAIAgentID            = "gen_ai.agent.id"
	KeyGenAIAgentName          = "gen_ai.agent.name"
	KeyGenAIConversationID     = "gen_ai.conversation.id"
	KeyGenAIInputMessages      = "gen_ai.input.messages"
	KeyGenAIOutputMessages     = "gen_ai.output.messages"
	KeyGenAISystemInstructions = "gen_ai.system_instructions"
	KeyGenAIUsageInputTokens   = "gen_ai.usage.input_tokens"  // #nosec G101 - attribute name, not a credential.
	KeyGenAIUsageOutputTokens  = "gen_ai.usage.output_tokens" // #nosec G101 - attribute name, not a credential.

	KeyGenAIToolName          = "gen_ai.tool.name"
	KeyGenAIToolDescription   = "gen_ai.tool.description"
	KeyGenAIToolCallID        = "gen_ai.tool.call.id"
	KeyGenAIToolCallArguments = "gen_ai.tool.call.arguments"
	KeyGenAIToolCallResult    = "gen_ai.tool.call.result"

	KeyGenAIEvaluationName  = "gen_ai.evaluation.name"
	KeyGenAIEvaluationScore = "gen_ai.evaluation.score.value"
	KeyGenAIEvaluationLabel = "gen_ai.evaluation.score.label"
)

// Run attributes.
const (
	KeyRunID       = "foundry.run.id"
	KeyRunStatus   = "foundry.run.status"
	KeyRunAttempts = "foundry.run.poll_attempts"
	KeyThreadCount = "foundry.thread.count"
)

// Graph flow attributes.
const (
	KeyGraphNodeID   = "graph.node.id"
	KeyGraphStep     = "graph.step"
	KeyUserInput     = "user_input"
	KeyAgentResponse = "agent_response"
	KeySearchQuery   = "search_tool_call_query"
)

// Error attributes, see
// https://github.com/open-telemetry/semantic-conventions/blob/main/docs/general/recording-errors.md
const (
	KeyErrorType          = "error.type"
	KeyErrorMessage       = "error.message"
	ValueDefaultErrorType = "_OTHER"
)

// SystemAzureAIAgents is the gen_ai.system value of Foundry agents.
const SystemAzureAIAgents = "az.ai.agents"

// Metric names.
const (
	MeterName = "trpc_agent_foundry"

	MetricRunPolls              = "foundry.run.polls"
	MetricRunDuration           = "foundry.run.duration"
	MetricToolCalls             = "foundry.tool.calls"
	MetricEvaluationScore       = "gen_ai.evaluation.score"
	MetricClientOperationDur    = "gen_ai.client.operation.duration"
	MetricClientTokenUsage      = "gen_ai.client.token.usage" // #nosec G101 - metric name, not a credential.
	KeyGenAITokenType           = "gen_ai.token.type"         // #nosec G101 - attribute name, not a credential.
	ValueTokenTypeInput         = "input"
	ValueTokenTypeOutput        = "output"
	KeyEvaluationStatus         = "gen_ai.evaluation.status"
	KeyToolOutcome              = "foundry.tool.outcome"
	ValueToolOutcomeSuccess     = "success"
	ValueToolOutcomeError       = "error"
	ValueToolOutcomeUnavailable = "unavailable"
)
