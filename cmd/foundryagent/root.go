//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-foundry/agentservice"
	"trpc.group/trpc-go/trpc-agent-foundry/agentservice/foundry"
	"trpc.group/trpc-go/trpc-agent-foundry/config"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult/local"
	"trpc.group/trpc-go/trpc-agent-foundry/evaluation/evalresult/sqlite"
	"trpc.group/trpc-go/trpc-agent-foundry/log"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-foundry/workflow"
)

// Result store backends.
const (
	storeLocal  = "local"
	storeSQLite = "sqlite"
	storeNone   = "none"

	sqliteFile = "reports.db"
)

// app holds the flag values and the dependencies of every command.
type app struct {
	out io.Writer

	configFile      string
	envFile         string
	logLevel        string
	metricsTextfile string
	otlpMetrics     bool

	cfg *config.Config

	newService func(cfg *config.Config) (agentservice.Service, error)
	runnerOpts []workflow.Option
}

func newApp(out io.Writer) *app {
	return &app{out: out, newService: foundryService}
}

func foundryService(cfg *config.Config) (agentservice.Service, error) {
	return foundry.New(cfg.ProjectEndpoint, foundry.WithAPIVersion(cfg.AgentsAPIVersion))
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "foundryagent",
		Short:        "Run, trace and evaluate Azure AI Foundry agents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log.SetLevel(a.logLevel)
			cfg, err := config.Load(config.WithFile(a.configFile), config.WithEnvFile(a.envFile))
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file, ignored when missing")
	flags.StringVar(&a.logLevel, "log-level", log.LevelInfo, "debug, info, warn or error")
	flags.StringVar(&a.metricsTextfile, "metrics-textfile", "", "write evaluation gauges to this Prometheus textfile")
	flags.BoolVar(&a.otlpMetrics, "otlp-metrics", false, "export run and evaluator metrics over OTLP")

	root.AddCommand(
		newEvaluateCommand(a),
		newTraceAgentCommand(a),
		newTraceGraphCommand(a),
		newReportCommand(a),
	)
	return root
}

func newEvaluateCommand(a *app) *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Create the travel agent, run it and evaluate the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			opts := []workflow.Option{workflow.WithEvaluatorNames(names...)}
			if store != nil {
				defer store.Close()
				opts = append(opts, workflow.WithResultManager(store))
			}
			if a.metricsTextfile != "" {
				opts = append(opts, workflow.WithMetricsTextfile(a.metricsTextfile))
			}
			return a.withRunner(cmd.Context(), func(ctx context.Context, r *workflow.Runner) error {
				_, err := r.EvaluateAgent(ctx)
				return err
			}, opts...)
		},
	}
	cmd.Flags().StringSliceVar(&names, "evaluators", nil,
		"evaluators to run, e.g. intent_resolution,task_adherence; all when empty")
	return cmd
}

func newTraceAgentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace-agent",
		Short: "Run the financial education agent with tracing to Application Insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withRunner(cmd.Context(), func(ctx context.Context, r *workflow.Runner) error {
				return r.TraceAgent(ctx)
			})
		},
	}
}

func newTraceGraphCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trace-graph [question...]",
		Short: "Ask the search chatbot graph with tracing to Application Insights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRunner(cmd.Context(), func(ctx context.Context, r *workflow.Runner) error {
				return r.TraceGraph(ctx, args...)
			})
		},
	}
}

// withRunner builds the agent service and the optional meter provider
// around fn.
func (a *app) withRunner(
	ctx context.Context,
	fn func(ctx context.Context, r *workflow.Runner) error,
	extra ...workflow.Option,
) error {
	if a.otlpMetrics {
		clean, err := metric.Start(ctx,
			metric.WithProtocol(a.cfg.Telemetry.Protocol),
			metric.WithServiceName(a.cfg.Telemetry.ServiceName),
		)
		if err != nil {
			return fmt.Errorf("start metrics: %w", err)
		}
		defer func() {
			if cerr := clean(); cerr != nil {
				log.Warnf("foundryagent: flush metrics: %v", cerr)
			}
		}()
	}

	// Every flow validates the project endpoint first, so without one the
	// runner reports all missing keys before touching the service.
	var svc agentservice.Service
	if a.cfg.ProjectEndpoint != "" {
		var err error
		if svc, err = a.newService(a.cfg); err != nil {
			return err
		}
	}
	opts := append([]workflow.Option{workflow.WithOutput(a.out)}, extra...)
	opts = append(opts, a.runnerOpts...)
	return fn(ctx, workflow.New(a.cfg, svc, opts...))
}

// openStore opens the configured result store. The "none" store disables
// persistence and yields a nil manager.
func openStore(cfg *config.Config) (evalresult.Manager, error) {
	switch cfg.ResultsStore {
	case storeLocal, "":
		return local.New(local.WithBaseDir(cfg.ResultsDir)), nil
	case storeSQLite:
		return sqlite.New(sqlite.WithPath(filepath.Join(cfg.ResultsDir, sqliteFile)))
	case storeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown %s %q, want %s, %s or %s",
			config.EnvResultsStore, cfg.ResultsStore, storeLocal, storeSQLite, storeNone)
	}
}
