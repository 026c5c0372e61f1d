//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command foundryagent runs the Azure AI Foundry agent flows: evaluate an
// agent, trace an agent run, trace the search chatbot graph and inspect
// stored evaluation reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp(os.Stdout)).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
