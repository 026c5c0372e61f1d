//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package userfunctions holds the sample function tools attached to the
// evaluated travel agent.
package userfunctions

import (
	"context"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-foundry/tool"
	"trpc.group/trpc-go/trpc-agent-foundry/tool/function"
)

// Tool names.
const (
	NameFetchCurrentDateTime = "fetch_current_datetime"
	NameFetchWeather         = "fetch_weather"
	NameConvertTemperature   = "convert_temperature"
	NameCalculateSum         = "calculate_sum"
)

// DefaultDateTimeLayout matches "2006-01-02 15:04:05".
const DefaultDateTimeLayout = time.DateTime

var mockWeather = map[string]string{
	"new york": "Sunny, 25°C",
	"london":   "Cloudy, 18°C",
	"tokyo":    "Rainy, 22°C",
	"seattle":  "Drizzle, 14°C",
}

// Option configures the tools.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source of fetch_current_datetime.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// DateTimeInput is the argument of fetch_current_datetime.
type DateTimeInput struct {
	Format string `json:"format,omitempty" jsonschema:"description=Go time layout; defaults to 2006-01-02 15:04:05"`
}

// DateTimeOutput is the result of fetch_current_datetime.
type DateTimeOutput struct {
	CurrentTime string `json:"current_time"`
}

// WeatherInput is the argument of fetch_weather.
type WeatherInput struct {
	Location string `json:"location" jsonschema:"description=The location to fetch weather for"`
}

// WeatherOutput is the result of fetch_weather.
type WeatherOutput struct {
	Weather string `json:"weather"`
}

// TemperatureInput is the argument of convert_temperature.
type TemperatureInput struct {
	Celsius float64 `json:"celsius" jsonschema:"description=Temperature in Celsius"`
}

// TemperatureOutput is the result of convert_temperature.
type TemperatureOutput struct {
	Fahrenheit float64 `json:"fahrenheit"`
}

// SumInput is the argument of calculate_sum.
type SumInput struct {
	A float64 `json:"a" jsonschema:"description=First number"`
	B float64 `json:"b" jsonschema:"description=Second number"`
}

// SumOutput is the result of calculate_sum.
type SumOutput struct {
	Result float64 `json:"result"`
}

// Tools returns the sample tools.
func Tools(opts ...Option) []tool.CallableTool {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return []tool.CallableTool{
		function.NewFunctionTool(
			func(_ context.Context, in DateTimeInput) (DateTimeOutput, error) {
				layout := in.Format
				if layout == "" {
					layout = DefaultDateTimeLayout
				}
				return DateTimeOutput{CurrentTime: o.now().Format(layout)}, nil
			},
			function.WithName(NameFetchCurrentDateTime),
			function.WithDescription("Get the current time as a formatted string."),
		),
		function.NewFunctionTool(FetchWeather,
			function.WithName(NameFetchWeather),
			function.WithDescription("Fetches the weather information for the specified location."),
		),
		function.NewFunctionTool(ConvertTemperature,
			function.WithName(NameConvertTemperature),
			function.WithDescription("Converts temperature from Celsius to Fahrenheit."),
		),
		function.NewFunctionTool(CalculateSum,
			function.WithName(NameCalculateSum),
			function.WithDescription("Calculates the sum of two numbers."),
		),
	}
}

// Set returns Tools as a tool.Set.
func Set(opts ...Option) *tool.Set {
	return tool.NewSet(Tools(opts...)...)
}

// FetchWeather returns mock weather for a handful of cities.
func FetchWeather(_ context.Context, in WeatherInput) (WeatherOutput, error) {
	w, ok := mockWeather[strings.ToLower(strings.TrimSpace(in.Location))]
	if !ok {
		w = "Weather data not available for this location."
	}
	return WeatherOutput{Weather: w}, nil
}

// ConvertTemperature converts Celsius to Fahrenheit.
func ConvertTemperature(_ context.Context, in TemperatureInput) (TemperatureOutput, error) {
	return TemperatureOutput{Fahrenheit: in.Celsius*9/5 + 32}, nil
}

// CalculateSum adds two numbers.
func CalculateSum(_ context.Context, in SumInput) (SumOutput, error) {
	return SumOutput{Result: in.A + in.B}, nil
}
