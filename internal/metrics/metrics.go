// Package metrics exposes Prometheus counters for the answer pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline counters.
type Metrics struct {
	registry *prometheus.Registry

	QuestionsTotal     *prometheus.CounterVec
	BlockedTotal       *prometheus.CounterVec
	LiteratureSearches prometheus.Counter
	SectionsStored     prometheus.Counter
	DocumentsIngested  prometheus.Counter
}

// New creates and registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		QuestionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medassist_questions_total",
			Help: "User questions handled, labeled by terminal outcome (answered, blocked, no_result).",
		}, []string{"outcome"}),
		BlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medassist_moderation_blocked_total",
			Help: "Questions blocked by the moderation gate, labeled by category.",
		}, []string{"category"}),
		LiteratureSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medassist_literature_searches_total",
			Help: "Literature search requests issued.",
		}),
		SectionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medassist_sections_stored_total",
			Help: "Article section texts stored into similarity memory.",
		}),
		DocumentsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medassist_documents_ingested_total",
			Help: "User documents ingested.",
		}),
	}

	registry.MustRegister(
		m.QuestionsTotal,
		m.BlockedTotal,
		m.LiteratureSearches,
		m.SectionsStored,
		m.DocumentsIngested,
	)
	return m
}

// Registry returns the backing registry for scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
