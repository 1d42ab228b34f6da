package investigation

import (
	"time"

	"go.uber.org/zap"

	"github.com/lvonguyen/numintel/internal/evidence"
	"github.com/lvonguyen/numintel/internal/fusion"
)

// Snapshot is the serialized form of an investigation: the full evidence
// ledger plus stage statuses and faults. It is sufficient to resume or
// audit an investigation without replaying any collaborator call.
type Snapshot struct {
	ID        string             `json:"id"`
	Target    string             `json:"target_phone"`
	StartedAt time.Time          `json:"started_at"`
	Mode      Mode               `json:"mode"`
	Stages    map[StageID]Status `json:"stage_statuses"`
	Evidence  []evidence.Record  `json:"evidence"`
	Faults    []FaultEntry       `json:"faults,omitempty"`
	Finalized bool               `json:"finalized"`
}

// Snapshot captures the current state for persistence.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	stages := make(map[StageID]Status, len(s.statuses))
	for id, status := range s.statuses {
		stages[id] = status
	}
	faults := make([]FaultEntry, len(s.faults))
	copy(faults, s.faults)

	return Snapshot{
		ID:        s.id,
		Target:    s.target,
		StartedAt: s.startedAt,
		Mode:      s.mode,
		Stages:    stages,
		Evidence:  s.ledger.Records(),
		Faults:    faults,
		Finalized: s.finalized,
	}
}

// Restore rebuilds a state from a snapshot, re-fusing the full evidence
// list from scratch. Fusion is idempotent, so the restored aggregates
// match the ones the live fold produced.
func Restore(snap Snapshot, fusionCfg fusion.Config, logger *zap.Logger) *State {
	s := NewState(snap.Target, fusionCfg, logger)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = snap.ID
	s.startedAt = snap.StartedAt
	s.mode = snap.Mode
	if s.mode == "" {
		s.mode = ModeUndetermined
	}
	for id, status := range snap.Stages {
		s.statuses[id] = status
	}
	s.faults = append(s.faults, snap.Faults...)
	s.finalized = snap.Finalized

	for _, rec := range snap.Evidence {
		if err := s.ledger.Append(rec); err != nil {
			continue
		}
		s.engine.Ingest(rec)
	}
	return s
}
