package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers document action resolution and execution.
type Metrics struct {
	// Resolved actions by kind, one per rendered document row
	ActionsResolved *prometheus.CounterVec

	// Executed actions by kind and result ("ok" or an error code)
	ActionsExecuted *prometheus.CounterVec

	DownloadSize prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActionsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esign_document_actions_resolved_total",
			Help: "Document actions resolved for a viewer, by action kind",
		}, []string{"action"}),

		ActionsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esign_document_actions_executed_total",
			Help: "Document actions executed, by action kind and result",
		}, []string{"action", "result"}),

		DownloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "esign_document_download_bytes",
			Help:    "Size of downloaded signed documents",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
	}
}

func (m *Metrics) IncResolved(action string) {
	if m != nil {
		m.ActionsResolved.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncExecuted(action, result string) {
	if m != nil {
		m.ActionsExecuted.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) ObserveDownload(size int) {
	if m != nil {
		m.DownloadSize.Observe(float64(size))
	}
}
