package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExportsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boardcast_exports_processed_total",
		Help: "Total number of export jobs processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boardcast_stage_duration_seconds",
		Help:    "Duration of export pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	SegmentsPlannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardcast_segments_planned_total",
		Help: "Total number of overlay segments planned across all exports",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boardcast_active_workers",
		Help: "Number of currently active workers processing exports",
	})
)
