package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveStage("gapfill", 12, 20*time.Millisecond)
	m.ObserveStage("gapfill", 3, 10*time.Millisecond)
	m.SetMissingObservations(7)
	m.AddFusionRule("prodes", 5)

	assert.Equal(t, 15.0, promtest.ToFloat64(m.stagePixels.WithLabelValues("gapfill")))
	assert.Equal(t, 7.0, promtest.ToFloat64(m.missing))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.fusionPixels.WithLabelValues("prodes")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.stageDuration))
}

func TestMetricsWriteTextfile(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveStage("spatial", 4, time.Second)
	path := filepath.Join(t.TempDir(), "landcover.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `landcover_stage_pixels_changed_total{stage="spatial"} 4`))
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveStage("x", 1, time.Second)
	m.SetMissingObservations(1)
	m.AddFusionRule("x", 1)
	assert.NoError(t, m.WriteTextfile("/nonexistent/never-written.prom"))
}
