package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safar/go-checkout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const (
	parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	traceparent   = "00-" + parentTraceID + "-00f067aa0ba902b7-01"
)

func serve(h http.Handler) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", traceparent)
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestSetupExportsRequestSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{ServiceName: "checkout-test", Exporter: "stdout", SampleRatio: 1}, &buf)
	require.NoError(t, err)

	var seen trace.SpanContext
	h := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), "checkout")
	serve(h)

	require.NoError(t, shutdown(context.Background()))

	assert.True(t, seen.IsValid())
	assert.Equal(t, parentTraceID, seen.TraceID().String())
	assert.Contains(t, buf.String(), parentTraceID)
	assert.Contains(t, buf.String(), "checkout-test")
}

func TestSetupWithoutExporterStillPropagates(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{ServiceName: "checkout-test", Exporter: "none", SampleRatio: 0}, &buf)
	require.NoError(t, err)

	var seen trace.SpanContext
	h := otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = trace.SpanContextFromContext(r.Context())
	}), "checkout")
	serve(h)

	require.NoError(t, shutdown(context.Background()))

	// the sampled parent wins over the zero ratio
	assert.True(t, seen.IsSampled())
	assert.Equal(t, parentTraceID, seen.TraceID().String())
	assert.Empty(t, buf.String())
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, err := Setup(config.TracingConfig{Exporter: "jaeger"}, nil)
	assert.ErrorContains(t, err, "jaeger")
}
