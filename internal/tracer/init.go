package tracer

import (
	"context"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitTracer installs the global tracer provider with an OTLP HTTP exporter
// (Jaeger accepts OTLP on :4318). Without cfg.Enabled the global no-op
// provider stays in place. The returned function flushes pending spans.
func InitTracer(cfg config.TracingConfig, environment string, log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		log.Info("TRACE", "Tracing disabled", nil)
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("TRACE", "Failed to create OTLP exporter, tracing disabled", map[string]interface{}{
			"endpoint": cfg.Endpoint,
			"error":    err.Error(),
		})
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(environment),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("TRACE", "Tracing enabled", map[string]interface{}{
		"endpoint":     cfg.Endpoint,
		"sample_ratio": cfg.SampleRatio,
	})

	return tp.Shutdown
}
