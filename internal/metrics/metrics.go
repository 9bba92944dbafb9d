package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Clock and render graph metrics
var (
	ClockTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidcanvas_clock_ticks_total",
			Help: "Total number of playback clock ticks processed",
		},
	)

	RebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidcanvas_rebuilds_total",
			Help: "Total number of render graph rebuilds",
		},
	)

	RenderTargetsMissingTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidcanvas_render_targets_missing_total",
			Help: "Elements skipped during rebuild because their media source was not registered",
		},
	)

	RenderObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidcanvas_render_objects",
			Help: "Number of live objects on the drawing surface after the last rebuild",
		},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcanvas_export_total",
			Help: "Total number of export runs by result",
		},
		[]string{"result"},
	)

	ExportStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidcanvas_export_stage_duration_seconds",
			Help:    "Duration of each export pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcanvas_capture_frames_total",
			Help: "Frames written to the recorder, split into rendered and duplicated",
		},
		[]string{"kind"},
	)

	ExportOutputBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidcanvas_export_output_bytes",
			Help: "Size of the last delivered export artifact",
		},
	)
)

// ObserveStage records the duration of an export stage.
func ObserveStage(stage string, d time.Duration) {
	ExportStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile dumps the default registry in text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
