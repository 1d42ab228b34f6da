// Package scoring derives verification counts and overall profile
// confidence from the fused aggregates. The mode decision and the final
// result both read through it.
package scoring

import (
	"github.com/lvonguyen/numintel/internal/evidence"
	"github.com/lvonguyen/numintel/internal/fusion"
)

// profileKinds are the kinds that define overall profile confidence.
var profileKinds = []evidence.Kind{
	evidence.KindName,
	evidence.KindEmail,
	evidence.KindAddress,
}

// Scorer reads fused aggregates and exposes the verification gate.
type Scorer struct {
	engine *fusion.Engine
}

// NewScorer wraps a fusion engine.
func NewScorer(engine *fusion.Engine) *Scorer {
	return &Scorer{engine: engine}
}

// CountVerified returns the number of distinct verified aggregates of a
// kind. Verified means at least one contributing co-occurrence group
// spans two or more attribute kinds.
func (s *Scorer) CountVerified(kind evidence.Kind) int {
	n := 0
	for _, agg := range s.engine.Aggregates(kind) {
		if agg.Verified {
			n++
		}
	}
	return n
}

// OverallConfidence is the mean of the top aggregate's confidence across
// name, email and address. It is undefined, reported as nil rather than
// zero, when any of those kinds has no evidence at all.
func (s *Scorer) OverallConfidence() *float64 {
	total := 0.0
	for _, kind := range profileKinds {
		top, ok := s.engine.Top(kind)
		if !ok {
			return nil
		}
		total += top.Confidence
	}
	mean := total / float64(len(profileKinds))
	return &mean
}
