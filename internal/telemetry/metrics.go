// Package telemetry exports coordination measurements as Prometheus metrics.
//
// The metrics are registered on the registry passed to NewRecorder. The CLI
// registers them on a private registry and dumps it on exit when asked, so a
// short-lived process never touches the global default registry.
package telemetry

import (
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/aretw0/tandem/pkg/core"
)

const namespace = "tandem"

// Recorder implements core.Recorder on top of Prometheus counters.
type Recorder struct {
	// VersionsTotal counts snapshots by context type.
	VersionsTotal *prometheus.CounterVec

	// ConflictChecksTotal counts conflict checks by context type and outcome.
	// Labels: type, conflict (true, false)
	ConflictChecksTotal *prometheus.CounterVec

	// LockAttemptsTotal counts lock acquisitions by context type and outcome.
	// Labels: type, acquired (true, false)
	LockAttemptsTotal *prometheus.CounterVec

	// MergesTotal counts merges by context type; degraded merges fell back to
	// last-writer-wins.
	MergesTotal *prometheus.CounterVec

	// HandoffsTotal counts created handoffs by resolved role and grade.
	HandoffsTotal *prometheus.CounterVec
}

var _ core.Recorder = (*Recorder)(nil)

// NewRecorder creates the metrics and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		VersionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_created_total",
			Help:      "Document snapshots written to the version ledger.",
		}, []string{"type"}),
		ConflictChecksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_checks_total",
			Help:      "Conflict checks by outcome.",
		}, []string{"type", "conflict"}),
		LockAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_attempts_total",
			Help:      "Lock acquisition attempts by outcome.",
		}, []string{"type", "acquired"}),
		MergesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Merges performed, degraded ones fell back to last-writer-wins.",
		}, []string{"type", "degraded"}),
		HandoffsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_created_total",
			Help:      "Handoffs created by target role and grade.",
		}, []string{"role", "grade"}),
	}
}

func (r *Recorder) VersionCreated(t core.ContextType) {
	r.VersionsTotal.WithLabelValues(string(t)).Inc()
}

func (r *Recorder) ConflictChecked(t core.ContextType, conflict bool) {
	r.ConflictChecksTotal.WithLabelValues(string(t), strconv.FormatBool(conflict)).Inc()
}

func (r *Recorder) LockAttempt(t core.ContextType, acquired bool) {
	r.LockAttemptsTotal.WithLabelValues(string(t), strconv.FormatBool(acquired)).Inc()
}

func (r *Recorder) MergePerformed(t core.ContextType, degraded bool) {
	r.MergesTotal.WithLabelValues(string(t), strconv.FormatBool(degraded)).Inc()
}

func (r *Recorder) HandoffCreated(role, grade string) {
	r.HandoffsTotal.WithLabelValues(role, grade).Inc()
}

// Dump writes every metric family gathered from g in the Prometheus text
// exposition format.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
