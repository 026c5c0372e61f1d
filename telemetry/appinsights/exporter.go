//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package appinsights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-foundry/errs"
)

// TrackPath is the ingestion path of the track API.
const TrackPath = "/v2.1/track"

// Envelope names and tag keys of the track API.
const (
	EnvelopeRequest    = "Microsoft.ApplicationInsights.Request"
	EnvelopeDependency = "Microsoft.ApplicationInsights.RemoteDependency"

	TagOperationID       = "ai.operation.id"
	TagOperationParentID = "ai.operation.parentId"
	TagOperationName     = "ai.operation.name"
	TagCloudRole         = "ai.cloud.role"
	TagSDKVersion        = "ai.internal.sdkVersion"

	// PropertyErrorMessage carries the span status description of failed spans.
	PropertyErrorMessage = "error.message"

	maxPropertyLength = 8192
	dependencyInProc  = "InProc"
)

// Exporter sends spans to the Application Insights track API.
// Server and consumer spans become requests, every other span a dependency.
type Exporter struct {
	cs       ConnectionString
	url      string
	pipeline runtime.Pipeline
	stopped  atomic.Bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*exporterOptions)

type exporterOptions struct {
	transport policy.Transporter
}

// WithExporterTransport sets the transport, usually an *http.Client.
func WithExporterTransport(t policy.Transporter) ExporterOption {
	return func(o *exporterOptions) { o.transport = t }
}

// NewExporter returns an exporter posting to the ingestion endpoint of cs.
// The instrumentation key travels inside every envelope.
func NewExporter(cs ConnectionString, opts ...ExporterOption) (*Exporter, error) {
	if cs.InstrumentationKey == "" {
		return nil, errors.New("appinsights exporter: connection string has no InstrumentationKey")
	}
	o := &exporterOptions{}
	for _, opt := range opts {
		opt(o)
	}
	clientOpts := &policy.ClientOptions{}
	if o.transport != nil {
		clientOpts.Transport = o.transport
	}
	return &Exporter{
		cs:       cs,
		url:      strings.TrimRight(cs.IngestionEndpoint, "/") + TrackPath,
		pipeline: runtime.NewPipeline(moduleName, version, runtime.PipelineOptions{}, clientOpts),
	}, nil
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() || len(spans) == 0 {
		return nil
	}
	envelopes := make([]envelope, 0, len(spans))
	for _, s := range spans {
		envelopes = append(envelopes, e.envelope(s))
	}
	body, err := json.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("appinsights exporter: encode: %w", err)
	}
	return e.post(ctx, body, len(envelopes))
}

// Shutdown implements sdktrace.SpanExporter. Later exports are dropped.
func (e *Exporter) Shutdown(context.Context) error {
	e.stopped.Store(true)
	return nil
}

func (e *Exporter) post(ctx context.Context, body []byte, sent int) error {
	const op = "post " + TrackPath
	req, err := runtime.NewRequest(ctx, http.MethodPost, e.url)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := req.SetBody(streaming.NopCloser(bytes.NewReader(body)), "application/json"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := e.pipeline.Do(req)
	if err != nil {
		return &errs.RemoteServiceError{Op: op, Err: err}
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusPartialContent:
		var tr trackResponse
		if err := runtime.UnmarshalAsJSON(resp, &tr); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
		return &errs.RemoteServiceError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%d of %d spans rejected: %s", len(tr.Errors), sent, tr.firstError())}
	}
	respErr := runtime.NewResponseError(resp)
	var azErr *azcore.ResponseError
	if errors.As(respErr, &azErr) {
		return &errs.RemoteServiceError{Op: op, StatusCode: azErr.StatusCode, Code: azErr.ErrorCode, Err: respErr}
	}
	return &errs.RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: respErr}
}

func (e *Exporter) envelope(s sdktrace.ReadOnlySpan) envelope {
	sc := s.SpanContext()
	tags := map[string]string{
		TagOperationID: sc.TraceID().String(),
		TagSDKVersion:  "go:" + moduleName + ":" + version,
	}
	if p := s.Parent(); p.IsValid() {
		tags[TagOperationParentID] = p.SpanID().String()
	}
	if role, ok := s.Resource().Set().Value(attribute.Key("service.name")); ok {
		tags[TagCloudRole] = role.Emit()
	}

	props := make(map[string]string, len(s.Attributes())+1)
	for _, kv := range s.Attributes() {
		props[string(kv.Key)] = truncate(kv.Value.Emit())
	}
	success := s.Status().Code != codes.Error
	code := "0"
	if !success {
		code = "1"
		if d := s.Status().Description; d != "" {
			props[PropertyErrorMessage] = truncate(d)
		}
	}
	if len(props) == 0 {
		props = nil
	}

	env := envelope{
		Time: s.StartTime().UTC().Format(time.RFC3339Nano),
		IKey: e.cs.InstrumentationKey,
		Tags: tags,
	}
	duration := formatDuration(s.EndTime().Sub(s.StartTime()))
	switch s.SpanKind() {
	case trace.SpanKindServer, trace.SpanKindConsumer:
		tags[TagOperationName] = s.Name()
		env.Name = EnvelopeRequest
		env.Data = envelopeData{BaseType: "RequestData", BaseData: requestData{
			Ver: 2, ID: sc.SpanID().String(), Name: s.Name(), Duration: duration,
			Success: success, ResponseCode: code, Properties: props,
		}}
	default:
		depType := dependencyInProc
		if k := s.SpanKind(); k != trace.SpanKindInternal && k != trace.SpanKindUnspecified {
			depType = k.String()
		}
		env.Name = EnvelopeDependency
		env.Data = envelopeData{BaseType: "RemoteDependencyData", BaseData: dependencyData{
			Ver: 2, ID: sc.SpanID().String(), Name: s.Name(), Duration: duration,
			Success: success, ResultCode: code, Type: depType, Properties: props,
		}}
	}
	return env
}

// formatDuration renders d as d.hh:mm:ss.ffffff.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	return fmt.Sprintf("%d.%02d:%02d:%02d.%06d", days, h, m, sec, d/time.Microsecond)
}

func truncate(s string) string {
	if len(s) <= maxPropertyLength {
		return s
	}
	return s[:maxPropertyLength]
}

type envelope struct {
	Name string            `json:"name"`
	Time string            `json:"time"`
	IKey string            `json:"iKey"`
	Tags map[string]string `json:"tags"`
	Data envelopeData      `json:"data"`
}

type envelopeData struct {
	BaseType string `json:"baseType"`
	BaseData any    `json:"baseData"`
}

type requestData struct {
	Ver          int               `json:"ver"`
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Duration     string            `json:"duration"`
	Success      bool              `json:"success"`
	ResponseCode string            `json:"responseCode"`
	Properties   map[string]string `json:"properties,omitempty"`
}

type dependencyData struct {
	Ver        int               `json:"ver"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Duration   string            `json:"duration"`
	Success    bool              `json:"success"`
	ResultCode string            `json:"resultCode"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

type trackResponse struct {
	ItemsReceived int `json:"itemsReceived"`
	ItemsAccepted int `json:"itemsAccepted"`
	Errors        []struct {
		Index      int    `json:"index"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
	} `json:"errors"`
}

func (r trackResponse) firstError() string {
	if len(r.Errors) == 0 {
		return "no detail"
	}
	return fmt.Sprintf("item %d: %d %s", r.Errors[0].Index, r.Errors[0].StatusCode, r.Errors[0].Message)
}
