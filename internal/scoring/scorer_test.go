package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/numintel/internal/evidence"
	"github.com/lvonguyen/numintel/internal/fusion"
)

func ingest(t *testing.T, e *fusion.Engine, source string, kind evidence.Kind, raw string, weight float64, group string) {
	t.Helper()
	ok := e.Ingest(evidence.Record{
		SourceID:    source,
		Kind:        kind,
		RawValue:    raw,
		Weight:      weight,
		CoGroup:     group,
		CollectedAt: time.Now(),
	})
	require.True(t, ok)
}

// TestOverallConfidenceUndefined checks that overall confidence stays
// nil until name, email and address all have at least one aggregate.
func TestOverallConfidenceUndefined(t *testing.T) {
	e := fusion.NewEngine(fusion.DefaultConfig())
	s := NewScorer(e)

	assert.Nil(t, s.OverallConfidence())

	ingest(t, e, "breachindex", evidence.KindName, "Jane Doe", 0.8, "")
	ingest(t, e, "breachindex", evidence.KindEmail, "jdoe@example.com", 0.8, "")
	assert.Nil(t, s.OverallConfidence(), "address still missing")

	ingest(t, e, "peoplefinder", evidence.KindAddress, "12 Main St", 0.6, "")
	got := s.OverallConfidence()
	require.NotNil(t, got)
	assert.InDelta(t, (0.8+0.8+0.6)/3, *got, 1e-9)
}

func TestCountVerified(t *testing.T) {
	e := fusion.NewEngine(fusion.DefaultConfig())
	s := NewScorer(e)

	// Two breach rows, each pairing a distinct email with a name.
	ingest(t, e, "breachindex", evidence.KindName, "Jane Doe", 0.85, "b:0")
	ingest(t, e, "breachindex", evidence.KindEmail, "jdoe@example.com", 0.85, "b:0")
	ingest(t, e, "breachindex", evidence.KindName, "Jane Doe", 0.85, "b:1")
	ingest(t, e, "breachindex", evidence.KindEmail, "jane.doe@work.example", 0.85, "b:1")

	// A pattern guess with no co-occurrence group stays unverified.
	ingest(t, e, "mailpattern", evidence.KindEmail, "j.doe@gmail.com", 0.3, "")

	assert.Equal(t, 2, s.CountVerified(evidence.KindEmail))
	assert.Equal(t, 1, s.CountVerified(evidence.KindName))
	assert.Equal(t, 0, s.CountVerified(evidence.KindUsername))
}
