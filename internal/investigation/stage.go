// Package investigation owns the per-target investigation state machine:
// the tiered stage pipeline, the one-shot smart/full mode decision, the
// serialized evidence ingestion path and the final result assembly.
package investigation

// Status is the lifecycle state of one pipeline stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether a stage has finished, one way or another.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// StageID identifies one pipeline stage.
type StageID string

const (
	StageValidation    StageID = "validation"
	StageNameDiscovery StageID = "name_discovery"
	StageBreachSearch  StageID = "breach_search"
	StageEmailPatterns StageID = "email_patterns"
	StagePublicRecords StageID = "public_records"
	StageProfNetwork   StageID = "professional_network"
	StageCodeHosting   StageID = "code_hosting"
	StageUsernameEnum  StageID = "username_enum"
)

// decisionTier is the first tier gated by the mode decision. Tiers
// below it are mandatory and always run before the decision fires.
const decisionTier = 3

// Stage describes one pipeline stage: its tier, its data dependencies
// and whether smart mode skips it as low-yield.
type Stage struct {
	ID        StageID
	Tier      int
	DependsOn []StageID
	SmartSkip bool
}

// Stages returns the canonical pipeline table in tier order.
//
// Tier 0-2 are mandatory. The mode decision fires once after tier 2,
// then tier 3 runs only in full mode while tier 4 always runs.
func Stages() []Stage {
	return []Stage{
		{ID: StageValidation, Tier: 0},
		{ID: StageNameDiscovery, Tier: 1, DependsOn: []StageID{StageValidation}},
		{ID: StageBreachSearch, Tier: 2, DependsOn: []StageID{StageNameDiscovery}},
		{ID: StageEmailPatterns, Tier: 3, DependsOn: []StageID{StageNameDiscovery}, SmartSkip: true},
		{ID: StagePublicRecords, Tier: 3, DependsOn: []StageID{StageNameDiscovery}, SmartSkip: true},
		{ID: StageProfNetwork, Tier: 4, DependsOn: []StageID{StageBreachSearch}},
		{ID: StageCodeHosting, Tier: 4, DependsOn: []StageID{StageBreachSearch}},
		{ID: StageUsernameEnum, Tier: 4, DependsOn: []StageID{StageBreachSearch}},
	}
}

// tiers groups the stage table by tier, ascending.
func tiers() [][]Stage {
	byTier := make(map[int][]Stage)
	maxTier := 0
	for _, st := range Stages() {
		byTier[st.Tier] = append(byTier[st.Tier], st)
		if st.Tier > maxTier {
			maxTier = st.Tier
		}
	}
	out := make([][]Stage, 0, maxTier+1)
	for t := 0; t <= maxTier; t++ {
		if group := byTier[t]; len(group) > 0 {
			out = append(out, group)
		}
	}
	return out
}
