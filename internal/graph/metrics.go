package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for cache and search operations.
var (
	tracer = otel.Tracer("reachgraph.graph")
	meter  = otel.Meter("reachgraph.graph")
)

var (
	buildLatency  metric.Float64Histogram
	buildTotal    metric.Int64Counter
	cachedClasses metric.Int64Histogram
	searchLatency metric.Float64Histogram
	searchChains  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"reachgraph_cache_build_duration_seconds",
			metric.WithDescription("Duration of graph cache builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"reachgraph_cache_build_total",
			metric.WithDescription("Total number of graph cache builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cachedClasses, err = meter.Int64Histogram(
			"reachgraph_cache_classes",
			metric.WithDescription("Number of classes retained per cache build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchLatency, err = meter.Float64Histogram(
			"reachgraph_search_duration_seconds",
			metric.WithDescription("Duration of reachability searches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchChains, err = meter.Int64Counter(
			"reachgraph_search_chains_total",
			metric.WithDescription("Number of distinct chains returned by searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuildMetrics(ctx context.Context, duration time.Duration, classCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)
	if success {
		cachedClasses.Record(ctx, int64(classCount))
	}
}

func recordSearchMetrics(ctx context.Context, mode EdgeMode, duration time.Duration, chainCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("edge_mode", mode.String()))
	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchChains.Add(ctx, int64(chainCount), attrs)
}

func startBuildSpan(ctx context.Context, source string, scope string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Cache.Build",
		trace.WithAttributes(
			attribute.String("graph.source", source),
			attribute.String("graph.scope", scope),
		),
	)
}

func startSearchSpan(ctx context.Context, req SearchRequest) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Cache.Search",
		trace.WithAttributes(
			attribute.Int("search.roots", len(req.Roots)),
			attribute.Int("search.forward_depth", req.ForwardDepth),
			attribute.Int("search.backward_depth", req.BackwardDepth),
			attribute.String("search.edge_mode", req.EdgeMode.String()),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
