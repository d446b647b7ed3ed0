package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RefreshMetrics records per-warehouse refresh pipeline activity.
type RefreshMetrics struct {
	duration     *prometheus.HistogramVec
	success      *prometheus.CounterVec
	failure      *prometheus.CounterVec
	daysSkipped  *prometheus.CounterVec
	rowsUpserted *prometheus.CounterVec
	rowsSkipped  *prometheus.CounterVec
}

// NewRefreshMetrics registers the refresh metrics on the provided registerer.
func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	if reg == nil {
		return &RefreshMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refresh_duration_seconds",
		Help:    "Duration of warehouse refresh runs in seconds.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"warehouse"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_success",
		Help: "Completed warehouse refresh runs.",
	}, []string{"warehouse"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_failure",
		Help: "Aborted warehouse refresh runs.",
	}, []string{"warehouse"})
	daysSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_days_skipped",
		Help: "Days skipped inside a refresh because extraction or load failed.",
	}, []string{"warehouse"})
	rowsUpserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_rows_upserted",
		Help: "Fact rows written by refresh runs.",
	}, []string{"warehouse", "table"})
	rowsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_rows_skipped",
		Help: "Raw records dropped for missing required identifiers.",
	}, []string{"warehouse", "table"})
	reg.MustRegister(duration, success, failure, daysSkipped, rowsUpserted, rowsSkipped)
	return &RefreshMetrics{
		duration:     duration,
		success:      success,
		failure:      failure,
		daysSkipped:  daysSkipped,
		rowsUpserted: rowsUpserted,
		rowsSkipped:  rowsSkipped,
	}
}

// ObserveDuration records the total runtime for one refresh of a warehouse.
func (m *RefreshMetrics) ObserveDuration(warehouse string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(warehouse)).Observe(duration.Seconds())
}

// IncSuccess increments the completed-run counter for the warehouse.
func (m *RefreshMetrics) IncSuccess(warehouse string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(warehouse)).Inc()
}

// IncFailure increments the aborted-run counter for the warehouse.
func (m *RefreshMetrics) IncFailure(warehouse string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(warehouse)).Inc()
}

// IncDaySkipped increments the skipped-day counter for the warehouse.
func (m *RefreshMetrics) IncDaySkipped(warehouse string) {
	if m == nil || m.daysSkipped == nil {
		return
	}
	m.daysSkipped.WithLabelValues(normalizeLabel(warehouse)).Inc()
}

// AddRowsUpserted accumulates fact rows written into a table.
func (m *RefreshMetrics) AddRowsUpserted(warehouse, table string, n int) {
	if m == nil || m.rowsUpserted == nil || n <= 0 {
		return
	}
	m.rowsUpserted.WithLabelValues(normalizeLabel(warehouse), normalizeLabel(table)).Add(float64(n))
}

// AddRowsSkipped accumulates records dropped during transformation.
func (m *RefreshMetrics) AddRowsSkipped(warehouse, table string, n int) {
	if m == nil || m.rowsSkipped == nil || n <= 0 {
		return
	}
	m.rowsSkipped.WithLabelValues(normalizeLabel(warehouse), normalizeLabel(table)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
