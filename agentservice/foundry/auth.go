//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package foundry

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/openai/openai-go/option"
)

// DefaultScope is the Entra ID scope of Azure AI Foundry data plane APIs.
const DefaultScope = "https://ai.azure.com/.default"

const moduleName = "trpc-agent-foundry"

// Version is reported in the azcore telemetry header.
const Version = "v0.1.0"

// bearerMiddleware routes every request through an azcore pipeline whose
// bearer token policy fetches and caches tokens from cred.
func bearerMiddleware(cred azcore.TokenCredential, scope string) option.Middleware {
	// Local proxies and test servers speak plain HTTP.
	tokenPolicy := runtime.NewBearerTokenPolicy(cred, []string{scope}, &policy.BearerTokenOptions{
		InsecureAllowCredentialWithHTTP: true,
	})
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		pipeline := runtime.NewPipeline(moduleName, Version, runtime.PipelineOptions{}, &policy.ClientOptions{
			Retry:            policy.RetryOptions{MaxRetries: -1},
			PerRetryPolicies: []policy.Policy{tokenPolicy, nextPolicy(next)},
		})
		azReq, err := runtime.NewRequestFromRequest(req)
		if err != nil {
			return nil, err
		}
		return pipeline.Do(azReq)
	}
}

// nextPolicy terminates the azcore pipeline by handing the request back to openai-go.
type nextPolicy option.MiddlewareNext

func (n nextPolicy) Do(req *policy.Request) (*http.Response, error) {
	return n(req.Raw())
}
