package fusion

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/numintel/internal/evidence"
)

func rec(source string, kind evidence.Kind, raw string, weight float64, group string) evidence.Record {
	return evidence.Record{
		SourceID:    source,
		Kind:        kind,
		RawValue:    raw,
		Weight:      weight,
		CoGroup:     group,
		CollectedAt: time.Now(),
	}
}

func TestCombinedConfidenceFormula(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// A phone+name co-occurrence record plus an independent validation
	// match on the same normalized name.
	require.True(t, e.Ingest(rec("breachindex", evidence.KindName, "Jane Doe", 0.85, "b:0")))
	require.True(t, e.Ingest(rec("breachindex", evidence.KindEmail, "jdoe@example.com", 0.85, "b:0")))
	require.True(t, e.Ingest(rec("carrierlookup", evidence.KindName, "JANE DOE", 0.9, "")))

	top, ok := e.Top(evidence.KindName)
	require.True(t, ok)
	assert.InDelta(t, 0.985, top.Confidence, 1e-9, "1-(1-0.85)(1-0.9)")
	assert.Equal(t, []string{"breachindex", "carrierlookup"}, top.Sources)
}

func TestDedupNormalizedEqualValues(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Ingest(rec("a", evidence.KindEmail, "JDoe@Example.COM", 0.5, ""))
	e.Ingest(rec("b", evidence.KindEmail, "JDoe@example.com", 0.5, ""))

	aggs := e.Aggregates(evidence.KindEmail)
	require.Len(t, aggs, 1, "normalized-equal values must share one aggregate")
	assert.Len(t, aggs[0].Sources, 2)
}

func TestMonotonicity(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Ingest(rec("a", evidence.KindName, "Jane Doe", 0.3, ""))
	before, _ := e.Top(evidence.KindName)

	e.Ingest(rec("b", evidence.KindName, "jane doe", 0.1, ""))
	after, _ := e.Top(evidence.KindName)

	assert.GreaterOrEqual(t, after.Confidence, before.Confidence,
		"an independent corroborating source must never lower confidence")
}

func TestConfidenceCap(t *testing.T) {
	e := NewEngine(DefaultConfig())
	for _, src := range []string{"a", "b", "c", "d", "e"} {
		e.Ingest(rec(src, evidence.KindName, "Jane Doe", 0.95, ""))
	}
	top, _ := e.Top(evidence.KindName)
	assert.LessOrEqual(t, top.Confidence, 0.99)
}

func TestRepeatedSourceDoesNotInflate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Ingest(rec("a", evidence.KindName, "Jane Doe", 0.6, ""))
	e.Ingest(rec("a", evidence.KindName, "jane doe", 0.6, ""))

	top, _ := e.Top(evidence.KindName)
	assert.InDelta(t, 0.6, top.Confidence, 1e-9,
		"a source repeating itself is not corroboration")
}

func TestVerifiedRequiresMultiKindGroup(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Lone email in a group: unverified.
	e.Ingest(rec("breachindex", evidence.KindEmail, "solo@example.com", 0.85, "g:solo"))
	top, _ := e.Top(evidence.KindEmail)
	assert.False(t, top.Verified)

	// Name joins the same group: verified, even though the email record
	// was ingested first.
	e.Ingest(rec("breachindex", evidence.KindName, "Jane Doe", 0.85, "g:solo"))
	top, _ = e.Top(evidence.KindEmail)
	assert.True(t, top.Verified, "multi-kind co-occurrence group marks the aggregate verified")
}

func TestCommutativity(t *testing.T) {
	records := []evidence.Record{
		rec("carrierlookup", evidence.KindName, "Jane Doe", 0.9, ""),
		rec("breachindex", evidence.KindName, "jane doe", 0.85, "b:0"),
		rec("breachindex", evidence.KindEmail, "jdoe@example.com", 0.85, "b:0"),
		rec("peoplefinder", evidence.KindName, "JANE DOE", 0.7, "p:0"),
		rec("peoplefinder", evidence.KindAddress, "12 Main St Springfield IL", 0.7, "p:0"),
		rec("mailpattern", evidence.KindEmail, "jane.doe@gmail.com", 0.3, ""),
	}

	reference := NewEngine(DefaultConfig())
	for _, r := range records {
		reference.Ingest(r)
	}
	want := reference.Aggregates(evidence.KindName)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]evidence.Record, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		e := NewEngine(DefaultConfig())
		for _, r := range shuffled {
			e.Ingest(r)
		}
		assert.Equal(t, want, e.Aggregates(evidence.KindName),
			"aggregates must not depend on arrival order")
	}
}

// TestIndependentBreachRowsCorroborate folds a 0.7 people-search name
// with two breach rows from distinct databases. Each database is its
// own source, so both 0.85 factors apply: 1-(0.3)(0.15)(0.15).
func TestIndependentBreachRowsCorroborate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceCap = 0.999
	e := NewEngine(cfg)

	e.Ingest(rec("peoplefinder", evidence.KindName, "Jane Doe", 0.7, "p:0"))
	e.Ingest(rec("breachindex:alpha-leak", evidence.KindName, "Jane Doe", 0.85, "breachindex:alpha-leak:0"))
	e.Ingest(rec("breachindex:alpha-leak", evidence.KindEmail, "jdoe@example.com", 0.85, "breachindex:alpha-leak:0"))
	e.Ingest(rec("breachindex:beta-leak", evidence.KindName, "jane doe", 0.85, "breachindex:beta-leak:0"))
	e.Ingest(rec("breachindex:beta-leak", evidence.KindEmail, "jane.doe@work.example", 0.85, "breachindex:beta-leak:0"))

	top, ok := e.Top(evidence.KindName)
	require.True(t, ok)
	assert.InDelta(t, 0.99325, top.Confidence, 1e-9)
	assert.Equal(t, []string{"breachindex:alpha-leak", "breachindex:beta-leak", "peoplefinder"}, top.Sources)

	// Under the default cap the same fold reports 0.99.
	capped := NewEngine(DefaultConfig())
	capped.Ingest(rec("peoplefinder", evidence.KindName, "Jane Doe", 0.7, ""))
	capped.Ingest(rec("breachindex:alpha-leak", evidence.KindName, "Jane Doe", 0.85, ""))
	capped.Ingest(rec("breachindex:beta-leak", evidence.KindName, "Jane Doe", 0.85, ""))
	top, _ = capped.Top(evidence.KindName)
	assert.InDelta(t, 0.99, top.Confidence, 1e-9)
}

func TestSimilarityMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.6
	e := NewEngine(cfg)

	e.Ingest(rec("a", evidence.KindName, "Jane Marie Doe", 0.5, ""))
	e.Ingest(rec("b", evidence.KindName, "jane doe", 0.5, ""))

	assert.Len(t, e.Aggregates(evidence.KindName), 1,
		"values above the threshold merge")
}

func TestBelowThresholdStaysDistinct(t *testing.T) {
	e := NewEngine(DefaultConfig())

	e.Ingest(rec("a", evidence.KindName, "Jane Marie Doe", 0.5, ""))
	e.Ingest(rec("b", evidence.KindName, "jane doe", 0.5, ""))

	assert.Len(t, e.Aggregates(evidence.KindName), 2,
		"merging is conservative: 2/3 token overlap is below 0.85")
}

func TestDeterministicTieBreaks(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Same confidence, same source count: the lexically lowest source id
	// ranks first.
	e.Ingest(rec("zeta", evidence.KindEmail, "one@example.com", 0.5, ""))
	e.Ingest(rec("alpha", evidence.KindEmail, "two@example.com", 0.5, ""))

	aggs := e.Aggregates(evidence.KindEmail)
	require.Len(t, aggs, 2)
	assert.Equal(t, "two@example.com", aggs[0].Value)
	assert.Equal(t, "one@example.com", aggs[1].Value)
}

func TestRebuildMatchesLiveFold(t *testing.T) {
	records := []evidence.Record{
		rec("carrierlookup", evidence.KindName, "Jane Doe", 0.9, ""),
		rec("breachindex", evidence.KindName, "jane doe", 0.85, "b:0"),
		rec("breachindex", evidence.KindEmail, "jdoe@example.com", 0.85, "b:0"),
	}

	live := NewEngine(DefaultConfig())
	for _, r := range records {
		live.Ingest(r)
	}

	rebuilt := NewEngine(DefaultConfig())
	rebuilt.Rebuild(records)

	for _, kind := range evidence.Kinds() {
		assert.Equal(t, live.Aggregates(kind), rebuilt.Aggregates(kind))
	}
}

func TestDisplayValueDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Ingest(rec("a", evidence.KindName, "jane doe", 0.3, ""))
	e.Ingest(rec("b", evidence.KindName, "Jane Doe", 0.9, ""))

	top, _ := e.Top(evidence.KindName)
	assert.Equal(t, "Jane Doe", top.Value, "display follows the highest-weight record")
}
