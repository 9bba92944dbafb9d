package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleCount returns the histogram sample count for one stage label.
func sampleCount(t *testing.T, stage string) uint64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "vidcanvas_export_stage_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "stage" && lp.GetValue() == stage {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"ClockTicksTotal", ClockTicksTotal},
		{"RebuildsTotal", RebuildsTotal},
		{"RenderTargetsMissingTotal", RenderTargetsMissingTotal},
		{"RenderObjects", RenderObjects},
		{"ExportsTotal", ExportsTotal},
		{"ExportStageDuration", ExportStageDuration},
		{"CaptureFramesTotal", CaptureFramesTotal},
		{"ExportOutputBytes", ExportOutputBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.metric)
		})
	}
}

func TestObserveStage(t *testing.T) {
	before := sampleCount(t, "test_stage")
	ObserveStage("test_stage", 120*time.Millisecond)
	assert.Equal(t, before+1, sampleCount(t, "test_stage"))
}

func TestWriteTextfile(t *testing.T) {
	ClockTicksTotal.Inc()
	path := filepath.Join(t.TempDir(), "vidcanvas.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vidcanvas_clock_ticks_total")
}
