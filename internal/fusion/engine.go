// Package fusion merges typed evidence records into per-kind attribute
// aggregates with combined confidence scores. The fold is a pure function
// of the evidence set: aggregates can be recomputed from scratch at any
// time and the outcome does not depend on arrival order.
package fusion

import (
	"math"
	"sort"

	"github.com/lvonguyen/numintel/internal/evidence"
	"github.com/lvonguyen/numintel/internal/normalize"
)

// Config holds fusion tuning values.
type Config struct {
	// SimilarityThreshold is the minimum token-set similarity at which
	// two normalized values merge into one aggregate. Below it, values
	// stay distinct candidates even when intuitively related.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// ConfidenceCap bounds combined confidence away from certainty.
	ConfidenceCap float64 `yaml:"confidence_cap"`
}

// DefaultConfig returns the fusion defaults. The 0.85 threshold is an
// empirical constant, deliberately exposed as configuration.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.85,
		ConfidenceCap:       0.99,
	}
}

// Aggregate is the fused, read-only view of all evidence supporting one
// candidate value of one kind.
type Aggregate struct {
	Kind       evidence.Kind `json:"kind"`
	Value      string        `json:"value"`
	Normalized string        `json:"normalized_value"`
	Confidence float64       `json:"confidence"`
	Verified   bool          `json:"verified"`
	Sources    []string      `json:"supporting_sources"`
}

// aggregate is the internal accumulator behind an Aggregate.
type aggregate struct {
	key           string
	kind          evidence.Kind
	sourceWeights map[string]float64
	groups        map[string]bool
	displayRaw    string
	displayWeight float64
}

// Engine folds evidence records into aggregates. It is synchronous and
// not safe for concurrent use; callers serialize ingestion (the
// investigation state owns that lock).
type Engine struct {
	cfg        Config
	norm       *normalize.Normalizer
	byKind     map[evidence.Kind]map[string]*aggregate
	groupKinds map[string]map[evidence.Kind]bool
}

// NewEngine creates an engine with the given tuning values.
func NewEngine(cfg Config) *Engine {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.ConfidenceCap <= 0 || cfg.ConfidenceCap >= 1 {
		cfg.ConfidenceCap = DefaultConfig().ConfidenceCap
	}
	return &Engine{
		cfg:        cfg,
		norm:       normalize.New(),
		byKind:     make(map[evidence.Kind]map[string]*aggregate),
		groupKinds: make(map[string]map[evidence.Kind]bool),
	}
}

// Ingest folds one record into the aggregates. Records whose value
// normalizes to nothing are reported as not ingested.
func (e *Engine) Ingest(rec evidence.Record) bool {
	normalized := rec.Normalized
	if normalized == "" {
		normalized = e.norm.Normalize(rec.Kind, rec.RawValue)
	}
	if normalized == "" {
		return false
	}

	if rec.CoGroup != "" {
		kinds := e.groupKinds[rec.CoGroup]
		if kinds == nil {
			kinds = make(map[evidence.Kind]bool)
			e.groupKinds[rec.CoGroup] = kinds
		}
		kinds[rec.Kind] = true
	}

	agg := e.locate(rec.Kind, normalized)
	if agg == nil {
		agg = &aggregate{
			key:           normalized,
			kind:          rec.Kind,
			sourceWeights: make(map[string]float64),
			groups:        make(map[string]bool),
		}
		kinded := e.byKind[rec.Kind]
		if kinded == nil {
			kinded = make(map[string]*aggregate)
			e.byKind[rec.Kind] = kinded
		}
		kinded[normalized] = agg
	}

	// Per-source contribution is the strongest weight that source ever
	// reported for this value, so repeated records never inflate it.
	if w, ok := agg.sourceWeights[rec.SourceID]; !ok || rec.Weight > w {
		agg.sourceWeights[rec.SourceID] = rec.Weight
	}
	if rec.CoGroup != "" {
		agg.groups[rec.CoGroup] = true
	}
	agg.updateDisplay(rec)
	return true
}

// updateDisplay keeps the raw value of the highest-weight record as the
// display form, with lexical order as the tie break so the choice does
// not depend on ingestion order.
func (a *aggregate) updateDisplay(rec evidence.Record) {
	if a.displayRaw == "" ||
		rec.Weight > a.displayWeight ||
		(rec.Weight == a.displayWeight && rec.RawValue < a.displayRaw) {
		a.displayRaw = rec.RawValue
		a.displayWeight = rec.Weight
	}
}

// locate finds the aggregate a normalized value folds into: exact key
// first, then the most similar existing aggregate at or above the
// threshold. Ties resolve to the lexically smallest key.
func (e *Engine) locate(kind evidence.Kind, normalized string) *aggregate {
	kinded := e.byKind[kind]
	if kinded == nil {
		return nil
	}
	if agg, ok := kinded[normalized]; ok {
		return agg
	}

	keys := make([]string, 0, len(kinded))
	for k := range kinded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best *aggregate
	bestScore := 0.0
	for _, k := range keys {
		score := normalize.Similarity(normalized, k)
		if score >= e.cfg.SimilarityThreshold && score > bestScore {
			best = kinded[k]
			bestScore = score
		}
	}
	return best
}

// Rebuild recomputes all aggregates from scratch out of a full evidence
// list. Fusion is idempotent, so rebuilding from a persisted ledger
// yields the same aggregates the live fold produced.
func (e *Engine) Rebuild(records []evidence.Record) {
	e.byKind = make(map[evidence.Kind]map[string]*aggregate)
	e.groupKinds = make(map[string]map[evidence.Kind]bool)
	for _, rec := range records {
		e.Ingest(rec)
	}
}

// Aggregates returns the fused view for one kind, ranked by confidence,
// then by distinct supporting-source count, then by the lexically lowest
// source id. The ordering is fully deterministic.
func (e *Engine) Aggregates(kind evidence.Kind) []Aggregate {
	kinded := e.byKind[kind]
	if len(kinded) == 0 {
		return nil
	}
	out := make([]Aggregate, 0, len(kinded))
	for _, agg := range kinded {
		out = append(out, e.view(agg))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if len(out[i].Sources) != len(out[j].Sources) {
			return len(out[i].Sources) > len(out[j].Sources)
		}
		if out[i].Sources[0] != out[j].Sources[0] {
			return out[i].Sources[0] < out[j].Sources[0]
		}
		return out[i].Normalized < out[j].Normalized
	})
	return out
}

// Top returns the primary value for a kind, if any evidence exists.
func (e *Engine) Top(kind evidence.Kind) (Aggregate, bool) {
	aggs := e.Aggregates(kind)
	if len(aggs) == 0 {
		return Aggregate{}, false
	}
	return aggs[0], true
}

// view materializes the read model for one accumulator.
func (e *Engine) view(agg *aggregate) Aggregate {
	sources := make([]string, 0, len(agg.sourceWeights))
	for id := range agg.sourceWeights {
		sources = append(sources, id)
	}
	sort.Strings(sources)

	// Probabilistic OR of independent source reliabilities. Folding in
	// sorted source order keeps the rounding, and thus the confidence,
	// identical no matter when each source arrived.
	miss := 1.0
	for _, id := range sources {
		miss *= 1 - agg.sourceWeights[id]
	}
	confidence := math.Min(1-miss, e.cfg.ConfidenceCap)

	verified := false
	for g := range agg.groups {
		if len(e.groupKinds[g]) >= 2 {
			verified = true
			break
		}
	}

	return Aggregate{
		Kind:       agg.kind,
		Value:      agg.displayRaw,
		Normalized: agg.key,
		Confidence: confidence,
		Verified:   verified,
		Sources:    sources,
	}
}
