package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	fmtracing "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/tracing"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

const defaultCollectorEndpoint = "localhost:4317"

// OtelTracerProvider implements fmtracing.TracerProvider. It wraps either a
// real OpenTelemetry SDK provider or the official NoOp provider when tracing
// is disabled or misconfigured.
type OtelTracerProvider struct {
	provider trace.TracerProvider
	// exporter and sdkProvider are nil in NoOp mode; Shutdown needs both.
	exporter    sdktrace.SpanExporter
	sdkProvider *sdktrace.TracerProvider
}

// NewNoOpProvider creates a provider that records nothing.
func NewNoOpProvider() (*OtelTracerProvider, error) {
	return &OtelTracerProvider{provider: trace.NewNoopTracerProvider()}, nil
}

// NewProviderFromEnv builds a provider from the standard OTEL_* environment
// variables. Disabled or unconfigured tracing falls back to NoOp rather than
// failing startup. The global OTel provider is left untouched.
func NewProviderFromEnv(ctx context.Context) (*OtelTracerProvider, error) {
	if strings.ToLower(os.Getenv("OTEL_SDK_DISABLED")) == "true" {
		fmt.Println("Info: OpenTelemetry tracing disabled via OTEL_SDK_DISABLED.")
		return NewNoOpProvider()
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceNameKey.String(otelServiceName())),
		resource.WithProcess(), resource.WithOS(), resource.WithContainer(), resource.WithHost(),
	)
	if err != nil {
		res = resource.Default()
		fmt.Fprintf(os.Stderr, "Warning: Failed to create OTel resource: %v. Using default.\n", err)
	}

	exporter, err := createExporter(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to create OTLP exporter from environment: %v. Using NoOp tracer.\n", err)
		return NewNoOpProvider()
	}
	if exporter == nil {
		fmt.Println("Info: OpenTelemetry endpoint not configured. Using NoOp tracer.")
		return NewNoOpProvider()
	}

	sdkTP := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
	)

	fmt.Println("Info: OpenTelemetry SDK provider configured based on environment.")
	return &OtelTracerProvider{
		provider:    sdkTP,
		exporter:    exporter,
		sdkProvider: sdkTP,
	}, nil
}

// createExporter picks the OTLP protocol and endpoint from the environment.
// A nil, nil return means no exporter is wanted.
func createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	protocol := strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if protocol == "" {
		protocol = "grpc"
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	endpointSource := "environment"
	if endpoint == "" {
		endpointSource = "default"
		switch protocol {
		case "grpc":
			endpoint = defaultCollectorEndpoint
		case "http", "http/protobuf":
			endpoint = "localhost:4318"
		default:
			return nil, nil
		}
		fmt.Printf("Info: OTEL_EXPORTER_OTLP_ENDPOINT not set, using %s endpoint: %s\n", strings.ToUpper(protocol), endpoint)
	}

	headers := parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	timeout := parseTimeout(os.Getenv("OTEL_EXPORTER_OTLP_TIMEOUT"), 10*time.Second)
	compression := os.Getenv("OTEL_EXPORTER_OTLP_COMPRESSION")
	insecure := isInsecure(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"), os.Getenv("OTEL_EXPORTER_OTLP_TRACES_INSECURE"))

	switch protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithHeaders(headers),
			otlptracegrpc.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if strings.ToLower(compression) == "gzip" {
			opts = append(opts, otlptracegrpc.WithCompressor(gzip.Name))
		}
		fmt.Printf("Info: Configuring OTLP gRPC exporter (endpoint: %s [%s], insecure: %t, compression: %s)\n", endpoint, endpointSource, insecure, compression)
		return otlptracegrpc.New(ctx, opts...)

	case "http", "http/protobuf":
		httpPath := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		if httpPath == "" {
			httpPath = "/v1/traces"
		}

		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithURLPath(httpPath),
			otlptracehttp.WithHeaders(headers),
			otlptracehttp.WithTimeout(timeout),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if strings.ToLower(compression) == "gzip" {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		fmt.Printf("Info: Configuring OTLP HTTP exporter (endpoint: %s%s [%s], insecure: %t, compression: %s)\n", endpoint, httpPath, endpointSource, insecure, compression)
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

// GetTracer implements fmtracing.TracerProvider.
func (p *OtelTracerProvider) GetTracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return trace.NewNoopTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Shutdown flushes buffered spans and stops the SDK provider and exporter.
// No-op when tracing was never enabled.
func (p *OtelTracerProvider) Shutdown(ctx context.Context) error {
	var firstError error

	if p.sdkProvider != nil {
		if err := p.sdkProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down OTel tracer provider: %v\n", err)
			firstError = err
		}
	}

	if p.exporter != nil {
		if expErr := p.exporter.Shutdown(ctx); expErr != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down OTel exporter: %v\n", expErr)
			if firstError == nil {
				firstError = expErr
			}
		}
	}

	return firstError
}

// IsEffectivelyNoOp reports whether spans would be discarded; the engine uses
// this to skip span creation entirely.
func (p *OtelTracerProvider) IsEffectivelyNoOp() bool {
	return p.sdkProvider == nil
}

func otelServiceName() string {
	name := os.Getenv("OTEL_SERVICE_NAME")
	if name == "" {
		name = "flowmech"
	}
	return name
}

// parseHeaders converts the comma-separated key=value OTLP header string into a map.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}
	for _, pair := range strings.Split(headerStr, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) == 2 {
			key := strings.TrimSpace(kv[0])
			if key != "" {
				headers[key] = strings.TrimSpace(kv[1])
			}
		}
	}
	return headers
}

// parseTimeout accepts integer milliseconds (the OTLP convention) or a Go
// duration string.
func parseTimeout(timeoutStr string, defaultTimeout time.Duration) time.Duration {
	if timeoutStr == "" {
		return defaultTimeout
	}
	if timeoutMsInt, err := strconv.ParseInt(timeoutStr, 10, 64); err == nil {
		if timeoutMsInt < 0 {
			return defaultTimeout
		}
		return time.Duration(timeoutMsInt) * time.Millisecond
	}
	if duration, err := time.ParseDuration(timeoutStr); err == nil {
		if duration < 0 {
			return defaultTimeout
		}
		return duration
	}
	fmt.Fprintf(os.Stderr, "Warning: Invalid OTLP timeout format '%s', using default %v\n", timeoutStr, defaultTimeout)
	return defaultTimeout
}

func isInsecure(insecureFlag ...string) bool {
	for _, flag := range insecureFlag {
		if strings.ToLower(strings.TrimSpace(flag)) == "true" {
			return true
		}
	}
	return false
}

var _ fmtracing.TracerProvider = (*OtelTracerProvider)(nil)
