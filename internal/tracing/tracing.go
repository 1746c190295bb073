// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package tracing carries an OpenTelemetry tracer in the context and builds
// the optional file exporter behind --trace-file.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"ccos/internal/apierr"
)

const (
	AttrPlatform  = "ccos.platform"
	AttrAction    = "ccos.action"
	AttrErrorCode = "ccos.error.code"
	AttrHTTPCode  = "http.status_code"
)

type ctxKey struct{}

// TracerFromCtx returns the tracer set for ctx, or a no-op tracer.
func TracerFromCtx(ctx context.Context) trace.Tracer {
	tracer, ok := ctx.Value(ctxKey{}).(trace.Tracer)
	if !ok {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return tracer
}

// SetTracer returns a new context carrying tracer. A nil tracer stores a no-op one.
func SetTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("")
	}
	return context.WithValue(ctx, ctxKey{}, tracer)
}

// Start creates a span from the context tracer.
func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return TracerFromCtx(ctx).Start(ctx, spanName, opts...)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String(AttrErrorCode, apierr.Code(err)))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// fileSpanExporter closes its file during Shutdown.
type fileSpanExporter struct {
	sdktrace.SpanExporter
	io.Closer
}

func (e *fileSpanExporter) Shutdown(ctx context.Context) error {
	defer e.Closer.Close()
	return e.SpanExporter.Shutdown(ctx)
}

// NewFileProvider creates or truncates the named file and exports every span
// into it as pretty-printed JSON. The caller must Shutdown the provider to
// flush the batcher.
func NewFileProvider(name string) (*sdktrace.TracerProvider, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, apierr.IO("could not create trace file", name, err)
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		f.Close()
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("ccos"),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(&fileSpanExporter{exp, f}),
	), nil
}
