package telemetry

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tandem/pkg/core"
)

func newTestRecorder(t *testing.T) (*Recorder, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRecorder(reg), reg
}

func TestRecorderCounts(t *testing.T) {
	r, _ := newTestRecorder(t)

	r.VersionCreated(core.DecisionsType)
	r.VersionCreated(core.DecisionsType)
	r.ConflictChecked(core.SharedContextType, true)
	r.ConflictChecked(core.SharedContextType, false)
	r.ConflictChecked(core.SharedContextType, false)
	r.LockAttempt(core.ProgressType, false)
	r.MergePerformed(core.QualityType, true)
	r.HandoffCreated("qa", "A")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.VersionsTotal.WithLabelValues("decisions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ConflictChecksTotal.WithLabelValues("shared-context", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.ConflictChecksTotal.WithLabelValues("shared-context", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LockAttemptsTotal.WithLabelValues("progress", "false")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.LockAttemptsTotal.WithLabelValues("progress", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.MergesTotal.WithLabelValues("quality", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HandoffsTotal.WithLabelValues("qa", "A")))
}

func TestRecordersAreIsolated(t *testing.T) {
	a, _ := newTestRecorder(t)
	b, _ := newTestRecorder(t)

	a.HandoffCreated("dev", "B")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HandoffsTotal.WithLabelValues("dev", "B")))
}

func TestDump(t *testing.T) {
	r, reg := newTestRecorder(t)
	r.VersionCreated(core.ProgressType)

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, reg))
	assert.Contains(t, buf.String(), `tandem_versions_created_total{type="progress"} 1`)
	assert.Contains(t, buf.String(), "# TYPE tandem_versions_created_total counter")
}
