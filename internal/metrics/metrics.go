package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Import holds the collectors for the import pipeline.
type Import struct {
	AnalyzeTotal   *prometheus.CounterVec
	StatementLines *prometheus.CounterVec
	Confirmed      *prometheus.CounterVec
	Attachments    prometheus.Counter
}

// NewImport creates the collectors and registers them with reg when it is non-nil.
func NewImport(reg prometheus.Registerer) *Import {
	m := &Import{
		AnalyzeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsync_import_analyze_total",
				Help: "Analyze calls by outcome",
			},
			[]string{"outcome"}, // ok, reauthorize, search_failed, unreadable, error
		),
		StatementLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsync_statement_lines_total",
				Help: "Statement lines seen by the parser",
			},
			[]string{"result"}, // parsed, skipped
		),
		Confirmed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsync_import_confirmed_records_total",
				Help: "Records submitted for confirmation",
			},
			[]string{"result"}, // inserted, duplicate
		),
		Attachments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "finsync_csv_attachments_total",
			Help: "CSV attachments downloaded from the mailbox",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.AnalyzeTotal, m.StatementLines, m.Confirmed, m.Attachments)
	}
	return m
}

// ObserveAnalyze records the outcome label for one analyze call.
func (m *Import) ObserveAnalyze(outcome string) {
	if m == nil {
		return
	}
	m.AnalyzeTotal.WithLabelValues(outcome).Inc()
}

// ObserveStatement records per-statement parse counts.
func (m *Import) ObserveStatement(parsed, skipped int) {
	if m == nil {
		return
	}
	m.Attachments.Inc()
	m.StatementLines.WithLabelValues("parsed").Add(float64(parsed))
	m.StatementLines.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveConfirm records inserted and duplicate record counts.
func (m *Import) ObserveConfirm(inserted, duplicate int) {
	if m == nil {
		return
	}
	m.Confirmed.WithLabelValues("inserted").Add(float64(inserted))
	m.Confirmed.WithLabelValues("duplicate").Add(float64(duplicate))
}
