/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"
)

func TestRegisterExporters(t *testing.T) {
	mux := http.NewServeMux()
	require.NoError(t, RegisterExporters(mux, "usergraph_test"))

	ctx := WithMethod(context.Background(), "getUsers")
	require.NoError(t, stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyStatus, TagValueStatusOK)}, NumQueries.M(1)))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus_metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWithMethod(t *testing.T) {
	ctx := WithMethod(context.Background(), "createUser")
	v, ok := tag.FromContext(ctx).Value(KeyMethod)
	require.True(t, ok)
	require.Equal(t, "createUser", v)
}

func TestSinceMs(t *testing.T) {
	require.GreaterOrEqual(t, SinceMs(time.Now().Add(-time.Second)), 1000.0)
}

func TestSpanTimer(t *testing.T) {
	// A nil span is what callers get when tracing isn't sampled.
	SpanTimer(nil, "noop")()

	_, span := trace.StartSpan(context.Background(), "test",
		trace.WithSampler(trace.AlwaysSample()))
	defer span.End()
	SpanTimer(span, "timed")()
}

func TestCorsHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	AddCorsHeaders(rec)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
