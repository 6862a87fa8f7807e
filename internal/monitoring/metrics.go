// Package monitoring exposes Prometheus metrics for crawls, embeddings,
// reductions and the HTTP API.
package monitoring

import (
	"net/http"
	"strconv"

	"github.com/nao1215/vectorize/internal/crawler"
	"github.com/nao1215/vectorize/internal/embedding"
	"github.com/nao1215/vectorize/internal/reduce"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vectorize"

// otherErrorKind labels page failures that are not fetch errors.
const otherErrorKind = "other"

// Metrics holds all Prometheus metrics for the application.
// It implements crawler.Observer, embedding.Recorder and reduce.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched   prometheus.Counter
	PagesCrawled   prometheus.Counter
	FetchErrors    *prometheus.CounterVec
	Crawls         prometheus.Counter
	Embeddings     *prometheus.CounterVec
	Reductions     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

var (
	_ crawler.Observer   = (*Metrics)(nil)
	_ embedding.Recorder = (*Metrics)(nil)
	_ reduce.Recorder    = (*Metrics)(nil)
)

// NewMetrics registers all metrics on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "The total number of page fetches attempted",
		}),
		PagesCrawled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_crawled_total",
			Help:      "The total number of pages turned into records",
		}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "The total number of skipped pages by reason",
		}, []string{"kind"}),
		Crawls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "The total number of finished crawls",
		}),
		Embeddings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "The total number of embedded records by provider and outcome",
		}, []string{"provider", "outcome"}),
		Reductions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reductions_total",
			Help:      "The total number of reductions by requested and used method",
		}, []string{"requested", "used", "fallback"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of API requests by route and status",
		}, []string{"method", "route", "status"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "The number of live API sessions",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PageStarted implements crawler.Observer.
func (m *Metrics) PageStarted(string, int) {
	m.PagesFetched.Inc()
}

// PageFailed implements crawler.Observer.
func (m *Metrics) PageFailed(_ string, err error) {
	kind, ok := crawler.IsFetchError(err)
	if !ok {
		m.FetchErrors.WithLabelValues(otherErrorKind).Inc()
		return
	}
	m.FetchErrors.WithLabelValues(string(kind)).Inc()
}

// CrawlFinished implements crawler.Observer.
func (m *Metrics) CrawlFinished(pages int) {
	m.Crawls.Inc()
	m.PagesCrawled.Add(float64(pages))
}

// EmbeddingDone implements embedding.Recorder.
func (m *Metrics) EmbeddingDone(provider string, outcome embedding.Outcome) {
	m.Embeddings.WithLabelValues(provider, string(outcome)).Inc()
}

// ReductionDone implements reduce.Recorder.
func (m *Metrics) ReductionDone(requested, used reduce.Method) {
	m.Reductions.WithLabelValues(string(requested), string(used), strconv.FormatBool(requested != used)).Inc()
}

// SessionOpened and SessionClosed track live API sessions.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Inc() }

func (m *Metrics) SessionClosed() { m.ActiveSessions.Dec() }

// RequestServed counts one API request.
func (m *Metrics) RequestServed(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
