/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"context"
	"net/http"
	"sync"
	"time"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	// NumQueries counts resolved query fields.
	NumQueries = stats.Int64("num_queries_total",
		"Total number of queries", stats.UnitDimensionless)
	// NumMutations counts resolved mutation fields.
	NumMutations = stats.Int64("num_mutations_total",
		"Total number of mutations", stats.UnitDimensionless)
	// LatencyMs records how long each resolver took.
	LatencyMs = stats.Float64("latency",
		"Latency of the various methods", stats.UnitMilliseconds)

	// Tag keys here
	KeyStatus, _ = tag.NewKey("status")
	KeyMethod, _ = tag.NewKey("method")

	// Tag values here
	TagValueStatusOK    = "ok"
	TagValueStatusError = "error"

	defaultLatencyMsDistribution = view.Distribution(
		0, 0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16,
		20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500,
		650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

	allTagKeys = []tag.Key{
		KeyStatus, KeyMethod,
	}

	allViews = []*view.View{
		{
			Name:        LatencyMs.Name(),
			Measure:     LatencyMs,
			Description: LatencyMs.Description(),
			Aggregation: defaultLatencyMsDistribution,
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumQueries.Name(),
			Measure:     NumQueries,
			Description: NumQueries.Description(),
			Aggregation: view.Count(),
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumMutations.Name(),
			Measure:     NumMutations,
			Description: NumMutations.Description(),
			Aggregation: view.Count(),
			TagKeys:     allTagKeys,
		},
	}

	registerViews sync.Once
	viewsErr      error
)

// RegisterExporters registers the metric views and serves them, along with the
// Go runtime and process collectors, at /debug/prometheus_metrics on mux.
func RegisterExporters(mux *http.ServeMux, namespace string) error {
	registerViews.Do(func() {
		viewsErr = view.Register(allViews...)
	})
	if viewsErr != nil {
		return errors.Wrap(viewsErr, "while registering metric views")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pe, err := ocprom.NewExporter(ocprom.Options{
		Namespace: namespace,
		Registry:  registry,
		OnError:   func(err error) { glog.Errorf("%v", err) },
	})
	if err != nil {
		return errors.Wrap(err, "failed to create OpenCensus Prometheus exporter")
	}
	view.RegisterExporter(pe)

	mux.Handle("/debug/prometheus_metrics", pe)
	return nil
}

// WithMethod returns a new updated context with the tag KeyMethod set to the given value.
func WithMethod(parent context.Context, method string) context.Context {
	ctx, err := tag.New(parent, tag.Upsert(KeyMethod, method))
	if err != nil {
		glog.Warningf("unable to tag context with method %s: %v", method, err)
		return parent
	}
	return ctx
}

// SinceMs returns the time since startTime in milliseconds (as a float).
func SinceMs(startTime time.Time) float64 {
	return float64(time.Since(startTime)) / 1e6
}
