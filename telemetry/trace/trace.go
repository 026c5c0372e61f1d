//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace installs the OpenTelemetry tracer provider used by the
// agent workflows. Spans go to the Application Insights track API when a
// connection string is given and no OTLP endpoint is configured, and to an
// OTLP collector otherwise.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	itelemetry "trpc.group/trpc-go/trpc-agent-foundry/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-foundry/telemetry/appinsights"
	asemconv "trpc.group/trpc-go/trpc-agent-foundry/telemetry/semconv"
)

// DefaultShutdownTimeout bounds the span flush on cleanup.
const DefaultShutdownTimeout = 30 * time.Second

var (
	// TracerProvider is the global tracer provider. No-op until Start.
	TracerProvider trace.TracerProvider = noop.NewTracerProvider()
	// Tracer is the global tracer of the workflows.
	Tracer trace.Tracer = TracerProvider.Tracer(itelemetry.InstrumentName)

	contentRecording atomic.Bool
)

// ContentRecordingEnabled reports whether prompt and response text may be
// attached to spans.
func ContentRecordingEnabled() bool {
	return contentRecording.Load()
}

// SetContentRecording toggles message content on spans.
func SetContentRecording(enabled bool) {
	contentRecording.Store(enabled)
}

// Start installs an OTLP backed tracer provider and returns its cleanup.
// The environment variables described below can be used for Endpoint configuration.
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_TRACES_ENDPOINT (default: "https://localhost:4317")
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	o := &options{
		serviceName:      asemconv.ResourceServiceName,
		serviceNamespace: asemconv.ResourceServiceNamespace,
		serviceVersion:   asemconv.ResourceServiceVersion,
		protocol:         itelemetry.ProtocolGRPC,
		shutdownTimeout:  DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.resolveEndpoint()

	res, err := buildResource(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var spanOpt sdktrace.TracerProviderOption
	switch {
	case o.exporter != nil:
		spanOpt = sdktrace.WithSyncer(o.exporter)
	case o.track:
		exp, err := appinsights.NewExporter(*o.connection)
		if err != nil {
			return nil, err
		}
		spanOpt = sdktrace.WithBatcher(exp)
	default:
		exp, err := newExporter(ctx, o)
		if err != nil {
			return nil, err
		}
		spanOpt = sdktrace.WithBatcher(exp)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		spanOpt,
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	TracerProvider = provider
	Tracer = provider.Tracer(itelemetry.InstrumentName)
	SetContentRecording(o.contentRecording)

	return func() error {
		TracerProvider = noop.NewTracerProvider()
		Tracer = TracerProvider.Tracer(itelemetry.InstrumentName)
		ctx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}

func newExporter(ctx context.Context, o *options) (sdktrace.SpanExporter, error) {
	switch o.protocol {
	case itelemetry.ProtocolHTTP:
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.tracesEndpoint)}
		if o.tracesEndpointURL != "" {
			endpoint, urlPath, err := parseEndpointURL(o.tracesEndpointURL)
			if err != nil {
				return nil, fmt.Errorf("invalid traces endpoint url %q: %w", o.tracesEndpointURL, err)
			}
			httpOpts = []otlptracehttp.Option{
				otlptracehttp.WithEndpoint(endpoint),
				otlptracehttp.WithURLPath(urlPath),
			}
			if !strings.HasPrefix(o.tracesEndpointURL, "https://") {
				httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
			}
		} else {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		if len(o.headers) > 0 {
			httpOpts = append(httpOpts, otlptracehttp.WithHeaders(o.headers))
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP trace exporter: %w", err)
		}
		return exp, nil
	default:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if o.tracesEndpointURL != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpointURL(o.tracesEndpointURL))
		} else {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(o.tracesEndpoint))
		}
		if len(o.headers) > 0 {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(o.headers))
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC trace exporter: %w", err)
		}
		return exp, nil
	}
}

// resolveEndpoint applies the precedence: explicit option, OTEL env,
// Application Insights track API, local collector.
func (o *options) resolveEndpoint() {
	o.track = o.connection != nil && o.tracesEndpoint == "" && o.tracesEndpointURL == "" && !endpointFromEnv()
	if o.tracesEndpoint == "" {
		o.tracesEndpoint = tracesEndpoint(o.protocol)
	}
}

func endpointFromEnv() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
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

// parseEndpointURL splits a full URL into the host:port endpoint and the path
// otlptracehttp expects. A missing scheme is tolerated.
func parseEndpointURL(in string) (endpoint, urlPath string, err error) {
	raw := in
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing host in %q", in)
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}

// Option configures Start.
type Option func(*options)

type options struct {
	tracesEndpoint     string
	tracesEndpointURL  string
	protocol           string
	headers            map[string]string
	serviceName        string
	serviceNamespace   string
	serviceVersion     string
	resourceAttributes *[]attribute.KeyValue
	exporter           sdktrace.SpanExporter
	contentRecording   bool
	connection         *appinsights.ConnectionString
	track              bool
	shutdownTimeout    time.Duration
}

// WithEndpoint sets the traces endpoint (host and port) the exporter connects to.
// It takes precedence over OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.tracesEndpoint = endpoint
	}
}

// WithEndpointURL sets a full traces URL, such as "http://localhost:3000/api/public/otel".
// It wins over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(o *options) {
		o.tracesEndpointURL = endpointURL
	}
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) {
		o.protocol = protocol
	}
}

// WithHeaders adds headers to every export request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(serviceName string) Option {
	return func(o *options) {
		o.serviceName = serviceName
	}
}

// WithServiceNamespace overrides the service.namespace resource attribute.
func WithServiceNamespace(serviceNamespace string) Option {
	return func(o *options) {
		o.serviceNamespace = serviceNamespace
	}
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(serviceVersion string) Option {
	return func(o *options) {
		o.serviceVersion = serviceVersion
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

// WithShutdownTimeout bounds the final flush done by the cleanup of Start.
// Non-positive values are ignored.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithExporter replaces the OTLP exporter. Spans are exported synchronously.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.exporter = exp
	}
}

// WithContentRecording allows prompt and response text on spans.
func WithContentRecording(enabled bool) Option {
	return func(o *options) {
		o.contentRecording = enabled
	}
}

// WithConnectionString routes spans to the track API of the Application
// Insights ingestion endpoint unless an OTLP endpoint is configured
// explicitly or in env, such as a collector running the Azure Monitor
// exporter.
func WithConnectionString(cs appinsights.ConnectionString) Option {
	return func(o *options) {
		o.connection = &cs
		WithResourceAttributes(attribute.String(appinsights.ResourceKeyApplicationID, cs.ApplicationID))(o)
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
