// Package metrics exposes the counters the streaming and search paths report.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lumen"

// Stream outcomes recorded by ObserveStream.
const (
	OutcomeCompleted   = "completed"
	OutcomeStartFailed = "start_failed"
	OutcomeInterrupted = "interrupted"
	OutcomeDetached    = "detached"
)

// Reasons a page is dropped from enriched results.
const (
	SkipFetchError = "fetch_error"
	SkipStatus     = "status"
	SkipPaywall    = "paywall"
	SkipExtract    = "extract_error"
)

type Metrics struct {
	registry *prometheus.Registry

	chatChunks     prometheus.Counter
	recordsSkipped prometheus.Counter
	streams        *prometheus.CounterVec
	searchResults  *prometheus.CounterVec
	pagesSkipped   *prometheus.CounterVec
}

// New builds a private registry holding the process and Go collectors plus
// the application counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_chunks_total",
			Help:      "Chat chunks delivered to the shell.",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_records_skipped_total",
			Help:      "Inference stream records dropped because they could not be decoded.",
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_streams_total",
			Help:      "Inference streams by outcome.",
		}, []string{"outcome"}),
		searchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Search results produced, by mode.",
		}, []string{"mode"}),
		pagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_pages_skipped_total",
			Help:      "Result pages left out of enriched search, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatChunks,
		m.recordsSkipped,
		m.streams,
		m.searchResults,
		m.pagesSkipped,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ChatChunk() {
	if m == nil {
		return
	}
	m.chatChunks.Inc()
}

func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.recordsSkipped.Inc()
}

func (m *Metrics) ObserveStream(outcome string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SearchResult(mode string) {
	if m == nil {
		return
	}
	m.searchResults.WithLabelValues(mode).Inc()
}

func (m *Metrics) PageSkipped(reason string) {
	if m == nil {
		return
	}
	m.pagesSkipped.WithLabelValues(reason).Inc()
}
