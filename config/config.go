//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads and validates the settings shared by every workflow.
//
// Values are layered, lowest precedence first: built-in defaults, an optional
// YAML file, an optional .env file and finally the process environment.
// Validation is eager: a workflow names everything it needs up front and gets
// a single ConfigurationError listing every missing key.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-agent-foundry/errs"
)

// Environment variable names.
const (
	EnvProjectEndpoint   = "AZURE_AI_FOUNDRY_PROJECT_ENDPOINT"
	EnvAgentModel        = "AZURE_OPENAI_MODEL_DEPLOYMENT"
	EnvOpenAIEndpoint    = "AZURE_OPENAI_SERVICE"
	EnvOpenAIAPIKey      = "AZURE_OPENAI_API_KEY"
	EnvChatDeployment    = "AZURE_OPENAI_CHATGPT_DEPLOYMENT"
	EnvContentRecording  = "AZURE_TRACING_GEN_AI_CONTENT_RECORDING_ENABLED"
	EnvTavilyAPIKey      = "TAVILY_API_KEY"
	EnvPollInterval      = "FOUNDRY_POLL_INTERVAL"
	EnvPollMaxAttempts   = "FOUNDRY_POLL_MAX_ATTEMPTS"
	EnvPollMaxDuration   = "FOUNDRY_POLL_MAX_DURATION"
	EnvResultsDir        = "FOUNDRY_RESULTS_DIR"
	EnvResultsStore      = "FOUNDRY_RESULTS_STORE"
	EnvTelemetryProtocol = "FOUNDRY_TELEMETRY_PROTOCOL"
)

// Defaults.
const (
	DefaultProjectAPIVersion = "2025-05-15-preview"
	DefaultAgentsAPIVersion  = "v1"
	DefaultEvalAPIVersion    = "2025-01-01-preview"
	DefaultChatAPIVersion    = "2024-12-01-preview"
	DefaultPollInterval      = time.Second
	DefaultPollMaxDuration   = 10 * time.Minute
	DefaultOutputFile        = "evaluation_input_data.jsonl"
	DefaultResultsDir        = ".foundry/results"
	DefaultResultsStore      = "local"
	DefaultTelemetryProtocol = "http"
)

// Config carries every externally provided value.
type Config struct {
	ProjectEndpoint   string `yaml:"project_endpoint"`
	ProjectAPIVersion string `yaml:"project_api_version"`
	AgentsAPIVersion  string `yaml:"agents_api_version"`
	AgentModel        string `yaml:"agent_model"`

	// Azure OpenAI deployment used by evaluators and the graph flow.
	OpenAIEndpoint string `yaml:"openai_endpoint"`
	OpenAIAPIKey   string `yaml:"openai_api_key"`
	ChatDeployment string `yaml:"chat_deployment"`
	EvalAPIVersion string `yaml:"eval_api_version"`
	ChatAPIVersion string `yaml:"chat_api_version"`

	ContentRecording bool   `yaml:"content_recording"`
	TavilyAPIKey     string `yaml:"tavily_api_key"`

	Poll      PollConfig      `yaml:"poll"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	OutputFile   string `yaml:"output_file"`
	ResultsDir   string `yaml:"results_dir"`
	ResultsStore string `yaml:"results_store"`
}

// PollConfig bounds the run poller.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	// MaxAttempts of zero means unbounded.
	MaxAttempts int `yaml:"max_attempts"`
	// MaxDuration of zero means unbounded.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// TelemetryConfig selects the OTLP exporter.
type TelemetryConfig struct {
	Protocol    string `yaml:"protocol"`
	ServiceName string `yaml:"service_name"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		ProjectAPIVersion: DefaultProjectAPIVersion,
		AgentsAPIVersion:  DefaultAgentsAPIVersion,
		EvalAPIVersion:    DefaultEvalAPIVersion,
		ChatAPIVersion:    DefaultChatAPIVersion,
		Poll: PollConfig{
			Interval:    DefaultPollInterval,
			MaxDuration: DefaultPollMaxDuration,
		},
		Telemetry: TelemetryConfig{
			Protocol:    DefaultTelemetryProtocol,
			ServiceName: "trpc-agent-foundry",
		},
		OutputFile:   DefaultOutputFile,
		ResultsDir:   DefaultResultsDir,
		ResultsStore: DefaultResultsStore,
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	file    string
	envFile string
	lookup  func(string) (string, bool)
}

// WithFile reads a YAML file before applying the environment.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithEnvFile sets the dotenv file. The default is ".env"; a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// Load builds a Config from defaults, the YAML file, the dotenv file and the environment.
// It does not validate; call Validate with the keys a workflow requires.
func Load(opts ...Option) (*Config, error) {
	o := &options{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(o)
	}
	cfg := Default()
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", o.file, err)
		}
	}
	dotenv := map[string]string{}
	if o.envFile != "" {
		m, err := godotenv.Read(o.envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read env file %s: %w", o.envFile, err)
		}
	}
	get := func(key string) (string, bool) {
		if v, ok := o.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvProjectEndpoint:   &c.ProjectEndpoint,
		EnvAgentModel:        &c.AgentModel,
		EnvOpenAIEndpoint:    &c.OpenAIEndpoint,
		EnvOpenAIAPIKey:      &c.OpenAIAPIKey,
		EnvChatDeployment:    &c.ChatDeployment,
		EnvTavilyAPIKey:      &c.TavilyAPIKey,
		EnvResultsDir:        &c.ResultsDir,
		EnvResultsStore:      &c.ResultsStore,
		EnvTelemetryProtocol: &c.Telemetry.Protocol,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := get(EnvContentRecording); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvContentRecording, err)
		}
		c.ContentRecording = b
	}
	durs := map[string]*time.Duration{
		EnvPollInterval:    &c.Poll.Interval,
		EnvPollMaxDuration: &c.Poll.MaxDuration,
	}
	for key, dst := range durs {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}
	if v, ok := get(EnvPollMaxAttempts); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvPollMaxAttempts, err)
		}
		c.Poll.MaxAttempts = n
	}
	return nil
}

// Requirement sets used by the workflows.
var (
	// AgentKeys are needed to create agents and runs.
	AgentKeys = []string{EnvProjectEndpoint, EnvAgentModel}
	// EvaluationKeys are needed by the judge model shared by all evaluators.
	EvaluationKeys = []string{EnvOpenAIEndpoint, EnvOpenAIAPIKey, EnvChatDeployment}
	// TracingKeys are needed to look up the telemetry connection.
	TracingKeys = []string{EnvProjectEndpoint}
	// GraphKeys are needed by the chatbot graph and its search tool.
	GraphKeys = []string{EnvOpenAIEndpoint, EnvOpenAIAPIKey, EnvChatDeployment, EnvTavilyAPIKey}
)

// Value returns the configured value for an environment key.
func (c *Config) Value(key string) string {
	switch key {
	case EnvProjectEndpoint:
		return c.ProjectEndpoint
	case EnvAgentModel:
		return c.AgentModel
	case EnvOpenAIEndpoint:
		return c.OpenAIEndpoint
	case EnvOpenAIAPIKey:
		return c.OpenAIAPIKey
	case EnvChatDeployment:
		return c.ChatDeployment
	case EnvTavilyAPIKey:
		return c.TavilyAPIKey
	case EnvResultsDir:
		return c.ResultsDir
	case EnvResultsStore:
		return c.ResultsStore
	case EnvTelemetryProtocol:
		return c.Telemetry.Protocol
	}
	return ""
}

// Validate checks every key at once and returns a *errs.ConfigurationError
// naming all keys that are empty. It also rejects nonsensical poll bounds.
func (c *Config) Validate(keys ...string) error {
	var missing []string
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if c.Value(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errs.NewConfigurationError(missing...)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", EnvPollInterval, c.Poll.Interval)
	}
	if c.Poll.MaxAttempts < 0 || c.Poll.MaxDuration < 0 {
		return fmt.Errorf("poll bounds must not be negative")
	}
	return nil
}
