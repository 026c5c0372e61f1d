//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

var (
	// ErrNoEntryPoint is returned by Compile when no edge leaves Start.
	ErrNoEntryPoint = errors.New("graph has no entry point")
	// ErrNodeNotFound is returned when an edge or route names an unknown node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrMaxStepsExceeded is returned when execution does not reach End
	// within the configured number of steps.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
	// ErrAmbiguousEdge is returned when a node has several static edges
	// and no conditional edge to choose between them.
	ErrAmbiguousEdge = errors.New("node has more than one outgoing edge")
)
