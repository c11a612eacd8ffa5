package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ChatChunk()
	m.RecordSkipped()
	m.ObserveStream(OutcomeCompleted)
	m.SearchResult("fast")
	m.PageSkipped(SkipPaywall)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCountersAreExported(t *testing.T) {
	m := New()
	m.RecordSkipped()
	m.RecordSkipped()
	m.SearchResult("enriched")

	require.Equal(t, float64(2), testutil.ToFloat64(m.recordsSkipped))
	require.Equal(t, float64(1), testutil.ToFloat64(m.searchResults.WithLabelValues("enriched")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "lumen_inference_records_skipped_total 2"))
}
