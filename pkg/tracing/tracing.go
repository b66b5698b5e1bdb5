package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contrib.go.opencensus.io/exporter/aws"
	"contrib.go.opencensus.io/exporter/jaeger"
	"contrib.go.opencensus.io/exporter/prometheus"
	"contrib.go.opencensus.io/exporter/stackdriver"
	"contrib.go.opencensus.io/exporter/zipkin"
	"contrib.go.opencensus.io/integrations/ocsql"
	datadog "github.com/DataDog/opencensus-go-exporter-datadog"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"

	"github.com/Notifuse/emailbuilder/config"
	"github.com/Notifuse/emailbuilder/pkg/logger"
)

// Shutdown flushes and stops the exporters started by InitTracing
type Shutdown func(ctx context.Context) error

type traceExporterFactory func(cfg *config.TracingConfig) (trace.Exporter, error)

type metricsExporterFactory func(cfg *config.TracingConfig, log logger.Logger) (view.Exporter, error)

var traceExporters = map[string]traceExporterFactory{
	"jaeger":      newJaegerExporter,
	"zipkin":      newZipkinExporter,
	"stackdriver": newStackdriverTraceExporter,
	"datadog":     newDatadogExporter,
	"xray":        newXRayExporter,
}

var metricsExporters = map[string]metricsExporterFactory{
	"prometheus":  newPrometheusExporter,
	"stackdriver": newStackdriverMetricsExporter,
	"datadog":     newDatadogMetricsExporter,
}

// InitTracing configures sampling, registers the builder and database views
// and starts the configured exporters. It is a no-op when tracing is disabled.
func InitTracing(cfg *config.TracingConfig, log logger.Logger) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	trace.ApplyConfig(trace.Config{
		DefaultSampler: trace.ProbabilitySampler(cfg.SamplingProbability),
	})

	var flushers []func()

	if name := cfg.TraceExporter; name != "" && name != "none" {
		factory, ok := traceExporters[name]
		if !ok {
			return noop, fmt.Errorf("unsupported trace exporter: %s", name)
		}
		exporter, err := factory(cfg)
		if err != nil {
			return noop, fmt.Errorf("failed to create %s trace exporter: %w", name, err)
		}
		trace.RegisterExporter(exporter)
		flushers = append(flushers, flusherFor(exporter))
		log.WithField("exporter", name).Info("Trace exporter initialized")
	}

	names, err := parseMetricsExporters(cfg.MetricsExporter)
	if err != nil {
		return noop, err
	}
	for _, name := range names {
		exporter, err := metricsExporters[name](cfg, log)
		if err != nil {
			return noop, fmt.Errorf("failed to initialize %s metrics exporter: %w", name, err)
		}
		view.RegisterExporter(exporter)
		flushers = append(flushers, flusherFor(exporter))
		log.WithField("exporter", name).Info("Metrics exporter initialized")
	}

	if err := RegisterViews(); err != nil {
		return noop, err
	}
	if err := view.Register(ocsql.DefaultViews...); err != nil {
		return noop, fmt.Errorf("failed to register database views: %w", err)
	}

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for _, flush := range flushers {
				flush()
			}
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

// parseMetricsExporters splits the comma separated exporter list, ignoring "none"
func parseMetricsExporters(value string) ([]string, error) {
	var names []string
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" || name == "none" {
			continue
		}
		if _, ok := metricsExporters[name]; !ok {
			return nil, fmt.Errorf("unsupported metrics exporter: %s", name)
		}
		names = append(names, name)
	}
	return names, nil
}

func flusherFor(exporter interface{}) func() {
	switch e := exporter.(type) {
	case interface{ Flush() }:
		return e.Flush
	case interface{ Stop() }:
		return e.Stop
	default:
		return func() {}
	}
}

func newJaegerExporter(cfg *config.TracingConfig) (trace.Exporter, error) {
	if cfg.JaegerEndpoint == "" {
		return nil, errors.New("jaeger endpoint is required")
	}
	return jaeger.NewExporter(jaeger.Options{
		CollectorEndpoint: cfg.JaegerEndpoint,
		ServiceName:       cfg.ServiceName,
		Process: jaeger.Process{
			ServiceName: cfg.ServiceName,
		},
	})
}

func newZipkinExporter(cfg *config.TracingConfig) (trace.Exporter, error) {
	if cfg.ZipkinEndpoint == "" {
		return nil, errors.New("zipkin endpoint is required")
	}
	reporter := zipkinhttp.NewReporter(cfg.ZipkinEndpoint)
	return zipkin.NewExporter(reporter, nil), nil
}

func newStackdriverTraceExporter(cfg *config.TracingConfig) (trace.Exporter, error) {
	if cfg.StackdriverProjectID == "" {
		return nil, errors.New("stackdriver project ID is required")
	}
	return stackdriver.NewExporter(stackdriver.Options{
		ProjectID: cfg.StackdriverProjectID,
	})
}

func newDatadogExporter(cfg *config.TracingConfig) (trace.Exporter, error) {
	if cfg.DatadogAgentAddress == "" {
		return nil, errors.New("datadog agent address is required")
	}
	return datadog.NewExporter(datadog.Options{
		Service:   cfg.ServiceName,
		TraceAddr: cfg.DatadogAgentAddress,
		StatsAddr: cfg.DatadogAgentAddress,
	})
}

func newXRayExporter(cfg *config.TracingConfig) (trace.Exporter, error) {
	if cfg.XRayRegion == "" {
		return nil, errors.New("AWS region is required for X-Ray")
	}
	return aws.NewExporter(
		aws.WithRegion(cfg.XRayRegion),
		aws.WithVersion("latest"),
	)
}

func newPrometheusExporter(cfg *config.TracingConfig, log logger.Logger) (view.Exporter, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: strings.ReplaceAll(cfg.ServiceName, "-", "_"),
		OnError: func(err error) {
			log.WithField("error", err.Error()).Error("Prometheus exporter error")
		},
	})
	if err != nil {
		return nil, err
	}

	if cfg.PrometheusPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", pe)
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithField("error", err.Error()).Error("Prometheus metrics server stopped")
			}
		}()
	}
	return pe, nil
}

func newStackdriverMetricsExporter(cfg *config.TracingConfig, log logger.Logger) (view.Exporter, error) {
	if cfg.StackdriverProjectID == "" {
		return nil, errors.New("stackdriver project ID is required")
	}
	return stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.StackdriverProjectID,
		MetricPrefix: cfg.ServiceName,
		OnError: func(err error) {
			log.WithField("error", err.Error()).Error("Stackdriver metrics exporter error")
		},
	})
}

func newDatadogMetricsExporter(cfg *config.TracingConfig, log logger.Logger) (view.Exporter, error) {
	if cfg.DatadogAgentAddress == "" {
		return nil, errors.New("datadog agent address is required")
	}
	options := datadog.Options{
		Service:   cfg.ServiceName,
		TraceAddr: cfg.DatadogAgentAddress,
		StatsAddr: cfg.DatadogAgentAddress,
		OnError: func(err error) {
			log.WithField("error", err.Error()).Error("Datadog metrics exporter error")
		},
	}
	if cfg.DatadogAPIKey != "" {
		options.GlobalTags = map[string]interface{}{
			"api_key": cfg.DatadogAPIKey,
		}
	}
	return datadog.NewExporter(options)
}
