//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric installs the OpenTelemetry meter provider behind the run,
// tool, chat and evaluation instruments.
package metric

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	asemconv "trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
)

// Start creates a meter provider, wires the shared instruments to it and
// returns a cleanup that flushes and shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	mp, err := NewMeterProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitMeterProvider(mp); err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	return func() error {
		return mp.Shutdown(context.Background())
	}, nil
}

// InitMeterProvider initializes the default instruments from mp.
func InitMeterProvider(mp metric.MeterProvider) error {
	return itelemetry.InitMeters(mp)
}

// GetMeterProvider returns the meter provider.
func GetMeterProvider() metric.MeterProvider {
	return itelemetry.MeterProvider
}

// NewMeterProvider creates a new meter provider with optional configuration.
// The environment variables described below can be used for Endpoint configuration.
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (default: "https://localhost:4317")
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		serviceName:      asemconv.ResourceServiceName,
		serviceVersion:   asemconv.ResourceServiceVersion,
		serviceNamespace: asemconv.ResourceServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metricsEndpoint == "" {
		o.metricsEndpoint = metricsEndpoint(o.protocol)
	}

	res, err := buildResource(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reader := o.reader
	if reader == nil {
		var exp sdkmetric.Exporter
		switch o.protocol {
		case itelemetry.ProtocolHTTP:
			exp, err = otlpmetrichttp.New(ctx,
				otlpmetrichttp.WithEndpoint(o.metricsEndpoint),
				otlpmetrichttp.WithInsecure())
		default:
			exp, err = otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(o.metricsEndpoint),
				otlpmetricgrpc.WithInsecure())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s metrics exporter: %w", o.protocol, err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	), nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	switch protocol {
	case itelemetry.ProtocolHTTP:
		return "localhost:4318"
	default:
		return "localhost:4317"
	}
}

// Option is a function that configures meter options.
type Option func(*options)

type options struct {
	metricsEndpoint    string
	serviceName        string
	serviceVersion     string
	serviceNamespace   string
	protocol           string
	resourceAttributes *[]attribute.KeyValue
	reader             sdkmetric.Reader
}

// WithEndpoint sets the metrics endpoint (host and port) the exporter connects to.
// It takes precedence over OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.metricsEndpoint = endpoint
	}
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) {
		o.protocol = protocol
	}
}

// WithReader replaces the OTLP periodic reader, e.g. with a manual reader.
func WithReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.reader = r
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(serviceName string) Option {
	return func(o *options) {
		o.serviceName = serviceName
	}
}

// WithResourceAttributes appends custom resource attributes.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		if len(attrs) == 0 {
			return
		}
		if o.resourceAttributes == nil {
			o.resourceAttributes = &[]attribute.KeyValue{}
		}
		*o.resourceAttributes = append(*o.resourceAttributes, attrs...)
	}
}

func buildResource(ctx context.Context, o *options) (*resource.Resource, error) {
	resourceOpts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNamespace(o.serviceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(o.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	}
	if o.resourceAttributes != nil && len(*o.resourceAttributes) > 0 {
		resourceOpts = append(resourceOpts, resource.WithAttributes(*o.resourceAttributes...))
	}
	return resource.New(ctx, resourceOpts...)
}
