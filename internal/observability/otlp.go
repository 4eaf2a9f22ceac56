package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// OTLPConfig points spans and log records at an OTLP collector. An empty
// Endpoint disables export.
type OTLPConfig struct {
	Endpoint    string
	Protocol    string // grpc or http/protobuf
	Insecure    bool
	CAFile      string
	Headers     map[string]string
	Timeout     time.Duration
	Compression string // gzip or empty
}

// Enabled reports whether an endpoint is configured.
func (c OTLPConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

// ParseOTLPProtocol accepts grpc (the default), http and http/protobuf.
func ParseOTLPProtocol(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return string(otlpProtocolGRPC), nil
	case "http", string(otlpProtocolHTTP):
		return string(otlpProtocolHTTP), nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

func (c OTLPConfig) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read OTLP CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse OTLP CA file %s", c.CAFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

func isEndpointURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

func newSpanExporter(ctx context.Context, c OTLPConfig) (sdktrace.SpanExporter, error) {
	protocol, err := ParseOTLPProtocol(c.Protocol)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	if otlpProtocol(protocol) == otlpProtocolGRPC {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
		}
		if len(c.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(c.Headers))
		}
		if c.Timeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(c.Timeout))
		}
		if c.Compression == "gzip" {
			opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	var opts []otlptracehttp.Option
	if isEndpointURL(c.Endpoint) {
		opts = append(opts, otlptracehttp.WithEndpointURL(c.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(c.Endpoint))
	}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsCfg))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(c.Headers))
	}
	if c.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(c.Timeout))
	}
	if c.Compression == "gzip" {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return otlptracehttp.New(ctx, opts...)
}

func newLogExporter(ctx context.Context, c OTLPConfig) (sdklog.Exporter, error) {
	protocol, err := ParseOTLPProtocol(c.Protocol)
	if err != nil {
		return nil, err
	}
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	if otlpProtocol(protocol) == otlpProtocolGRPC {
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(c.Endpoint)}
		if c.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		} else {
			opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
		}
		if len(c.Headers) > 0 {
			opts = append(opts, otlploggrpc.WithHeaders(c.Headers))
		}
		if c.Timeout > 0 {
			opts = append(opts, otlploggrpc.WithTimeout(c.Timeout))
		}
		if c.Compression == "gzip" {
			opts = append(opts, otlploggrpc.WithCompressor("gzip"))
		}
		return otlploggrpc.New(ctx, opts...)
	}

	var opts []otlploghttp.Option
	if isEndpointURL(c.Endpoint) {
		opts = append(opts, otlploghttp.WithEndpointURL(c.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(c.Endpoint))
	}
	if c.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	} else {
		opts = append(opts, otlploghttp.WithTLSClientConfig(tlsCfg))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(c.Headers))
	}
	if c.Timeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(c.Timeout))
	}
	if c.Compression == "gzip" {
		opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
	}
	return otlploghttp.New(ctx, opts...)
}

// LoggerProvider exports log records to an OTLP collector.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
}

// InitLoggerProvider creates a batching OTLP log provider. It fails when no
// endpoint is configured.
func InitLoggerProvider(ctx context.Context, cfg Config) (*LoggerProvider, error) {
	if !cfg.OTLP.Enabled() {
		return nil, fmt.Errorf("log export requires an OTLP endpoint")
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	exporter, err := newLogExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return &LoggerProvider{
		provider: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		),
	}, nil
}

// Provider returns the SDK provider for the slog bridge.
func (lp *LoggerProvider) Provider() *sdklog.LoggerProvider {
	return lp.provider
}

// Shutdown flushes pending records.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown logger provider", slog.String("error", err.Error()))
		return err
	}
	logger.Debug("logger provider shutdown successfully")
	return nil
}
