//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package appinsights looks up the Application Insights resource attached to
// an Azure AI Foundry project and parses its connection string.
package appinsights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"trpc.group/trpc-go/trpc-agent-foundry/errs"
)

// Connection type and defaults of the project connections API.
const (
	ConnectionType    = "AppInsights"
	DefaultAPIVersion = "2025-05-15-preview"
	DefaultScope      = "https://ai.azure.com/.default"

	// ResourceKeyApplicationID tags exported resources with the App Insights application.
	ResourceKeyApplicationID = "azure.monitor.application_id"

	moduleName = "trpc-agent-foundry/appinsights"
	version    = "v0.1.0"
)

// ConnectionString is a parsed Application Insights connection string.
type ConnectionString struct {
	InstrumentationKey string
	IngestionEndpoint  string
	LiveEndpoint       string
	ApplicationID      string
	Raw                string
}

// Parse reads "Key=Value;Key=Value" pairs. Keys are case insensitive and
// an InstrumentationKey is required.
func Parse(raw string) (ConnectionString, error) {
	cs := ConnectionString{Raw: raw}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("malformed connection string segment %q", part)
		}
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "instrumentationkey":
			cs.InstrumentationKey = v
		case "ingestionendpoint":
			cs.IngestionEndpoint = v
		case "liveendpoint":
			cs.LiveEndpoint = v
		case "applicationid":
			cs.ApplicationID = v
		}
	}
	if cs.InstrumentationKey == "" {
		return ConnectionString{}, errors.New("connection string has no InstrumentationKey")
	}
	if cs.IngestionEndpoint == "" {
		cs.IngestionEndpoint = "https://dc.services.visualstudio.com/"
	}
	return cs, nil
}

// Client reads project connections.
type Client struct {
	endpoint   string
	apiVersion string
	pipeline   runtime.Pipeline
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	cred       azcore.TokenCredential
	apiVersion string
	scope      string
	transport  policy.Transporter
}

// WithCredential sets the Entra ID credential.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(o *clientOptions) { o.cred = cred }
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(o *clientOptions) { o.apiVersion = v }
}

// WithScope overrides the token scope.
func WithScope(scope string) Option {
	return func(o *clientOptions) { o.scope = scope }
}

// WithHTTPClient sets the transport, usually an *http.Client.
func WithHTTPClient(t policy.Transporter) Option {
	return func(o *clientOptions) { o.transport = t }
}

// New returns a connections client for the project endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errs.NewConfigurationError("AZURE_AI_FOUNDRY_PROJECT_ENDPOINT")
	}
	o := &clientOptions{apiVersion: DefaultAPIVersion, scope: DefaultScope}
	for _, opt := range opts {
		opt(o)
	}
	if o.cred == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("default azure credential: %w", err)
		}
		o.cred = cred
	}
	tokenPolicy := runtime.NewBearerTokenPolicy(o.cred, []string{o.scope}, &policy.BearerTokenOptions{
		InsecureAllowCredentialWithHTTP: true,
	})
	clientOpts := &policy.ClientOptions{PerRetryPolicies: []policy.Policy{tokenPolicy}}
	if o.transport != nil {
		clientOpts.Transport = o.transport
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: o.apiVersion,
		pipeline:   runtime.NewPipeline(moduleName, version, runtime.PipelineOptions{}, clientOpts),
	}, nil
}

type connection struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsDefault   bool   `json:"isDefault"`
	Credentials struct {
		Type string `json:"type"`
		Key  string `json:"key"`
	} `json:"credentials"`
}

type connectionList struct {
	Value []connection `json:"value"`
}

// ConnectionString returns the raw connection string of the project's
// Application Insights resource. A project without one yields
// *errs.TelemetryUnavailable.
func (c *Client) ConnectionString(ctx context.Context) (string, error) {
	var list connectionList
	q := url.Values{"connectionType": {ConnectionType}, "defaultConnection": {"true"}}
	if err := c.do(ctx, http.MethodGet, "/connections", q, &list); err != nil {
		return "", err
	}
	if len(list.Value) == 0 {
		return "", &errs.TelemetryUnavailable{Reason: "no Application Insights connection"}
	}
	name := list.Value[0].Name
	for _, conn := range list.Value {
		if conn.IsDefault {
			name = conn.Name
			break
		}
	}
	var withCreds connection
	if err := c.do(ctx, http.MethodPost, "/connections/"+url.PathEscape(name)+"/getConnectionWithCredentials",
		nil, &withCreds); err != nil {
		return "", err
	}
	if withCreds.Credentials.Key == "" {
		return "", &errs.TelemetryUnavailable{Reason: "connection " + name + " has no key"}
	}
	return withCreds.Credentials.Key, nil
}

// Resolve fetches and parses the connection string.
func (c *Client) Resolve(ctx context.Context) (ConnectionString, error) {
	raw, err := c.ConnectionString(ctx)
	if err != nil {
		return ConnectionString{}, err
	}
	cs, err := Parse(raw)
	if err != nil {
		return ConnectionString{}, &errs.TelemetryUnavailable{Reason: err.Error()}
	}
	return cs, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	op := strings.ToLower(method) + " " + path
	req, err := runtime.NewRequest(ctx, method, c.endpoint+path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	req.Raw().URL.RawQuery = query.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return &errs.RemoteServiceError{Op: op, Err: err}
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		respErr := runtime.NewResponseError(resp)
		var azErr *azcore.ResponseError
		if errors.As(respErr, &azErr) {
			return &errs.RemoteServiceError{Op: op, StatusCode: azErr.StatusCode, Code: azErr.ErrorCode, Err: respErr}
		}
		return &errs.RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: respErr}
	}
	if err := runtime.UnmarshalAsJSON(resp, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
