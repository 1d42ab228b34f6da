package investigation

import (
	"time"

	"github.com/lvonguyen/numintel/internal/evidence"
)

// Attribute is one ranked candidate value in the final profile.
type Attribute struct {
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Verified   bool     `json:"verified"`
	Sources    []string `json:"supporting_sources"`
}

// RiskSummary is a coarse exposure assessment derived purely from the
// evidence ledger and the fused aggregates.
type RiskSummary struct {
	VerifiedAttributes int `json:"verified_attributes"`

	// CorroboratedRecords counts ledger records that belong to a
	// co-occurrence group spanning two or more kinds, i.e. leaked or
	// listed records that tie attributes together.
	CorroboratedRecords int     `json:"corroborated_records"`
	Score               float64 `json:"score"`
	Level               string  `json:"level"`
}

// Result is the finalized, read-only outcome of an investigation. It is
// always produced, even when every stage failed or the deadline fired.
type Result struct {
	ID                string                         `json:"id"`
	Target            string                         `json:"target"`
	Mode              Mode                           `json:"mode"`
	StartedAt         time.Time                      `json:"started_at"`
	CompletedAt       time.Time                      `json:"completed_at"`
	Stages            map[StageID]Status             `json:"stage_statuses"`
	Attributes        map[evidence.Kind][]Attribute  `json:"attributes"`
	OverallConfidence *float64                       `json:"overall_confidence"`
	EvidenceCount     int                            `json:"evidence_count"`
	Faults            []FaultEntry                   `json:"faults,omitempty"`
	Risk              RiskSummary                    `json:"risk"`
}

// Finalize freezes the state and assembles the result from the current
// aggregates. After finalization the state rejects further mutation.
func (s *State) Finalize() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true

	stages := make(map[StageID]Status, len(s.statuses))
	for id, status := range s.statuses {
		stages[id] = status
	}

	attributes := make(map[evidence.Kind][]Attribute)
	verifiedTotal := 0
	for _, kind := range evidence.Kinds() {
		aggs := s.engine.Aggregates(kind)
		if len(aggs) == 0 {
			continue
		}
		ranked := make([]Attribute, 0, len(aggs))
		for _, agg := range aggs {
			if agg.Verified {
				verifiedTotal++
			}
			ranked = append(ranked, Attribute{
				Value:      agg.Value,
				Confidence: agg.Confidence,
				Verified:   agg.Verified,
				Sources:    agg.Sources,
			})
		}
		attributes[kind] = ranked
	}

	records := s.ledger.Records()
	corroborated := countCorroborated(records)

	faults := make([]FaultEntry, len(s.faults))
	copy(faults, s.faults)

	return &Result{
		ID:                s.id,
		Target:            s.target,
		Mode:              s.mode,
		StartedAt:         s.startedAt,
		CompletedAt:       time.Now().UTC(),
		Stages:            stages,
		Attributes:        attributes,
		OverallConfidence: s.scorer.OverallConfidence(),
		EvidenceCount:     len(records),
		Faults:            faults,
		Risk:              buildRisk(verifiedTotal, corroborated),
	}
}

// countCorroborated counts records whose co-occurrence group spans at
// least two attribute kinds.
func countCorroborated(records []evidence.Record) int {
	groupKinds := make(map[string]map[evidence.Kind]bool)
	for _, rec := range records {
		if rec.CoGroup == "" {
			continue
		}
		kinds := groupKinds[rec.CoGroup]
		if kinds == nil {
			kinds = make(map[evidence.Kind]bool)
			groupKinds[rec.CoGroup] = kinds
		}
		kinds[rec.Kind] = true
	}
	n := 0
	for _, rec := range records {
		if rec.CoGroup != "" && len(groupKinds[rec.CoGroup]) >= 2 {
			n++
		}
	}
	return n
}

// buildRisk scores exposure from the verified attribute count and the
// number of corroborated records. The weights mirror how much each
// class of finding narrows down a real person.
func buildRisk(verified, corroborated int) RiskSummary {
	score := 0.15*float64(verified) + 0.05*float64(corroborated)
	if score > 1 {
		score = 1
	}
	level := "low"
	switch {
	case score >= 0.75:
		level = "critical"
	case score >= 0.5:
		level = "high"
	case score >= 0.25:
		level = "medium"
	}
	return RiskSummary{
		VerifiedAttributes:  verified,
		CorroboratedRecords: corroborated,
		Score:               score,
		Level:               level,
	}
}
