package investigation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
	"github.com/lvonguyen/numintel/internal/fusion"
	"github.com/lvonguyen/numintel/internal/normalize"
	"github.com/lvonguyen/numintel/internal/scoring"
)

// seed limits keep downstream queries focused on the strongest
// candidates instead of flooding scrape-prone sources.
const (
	maxSeedNames     = 3
	maxSeedEmails    = 5
	maxSeedUsernames = 5
)

// FaultEntry records one collaborator failure against its stage.
type FaultEntry struct {
	Stage StageID       `json:"stage"`
	Fault collect.Fault `json:"fault"`
	At    time.Time     `json:"at"`
}

// State is the mutable per-investigation object. It is owned by the
// orchestrator; stage handlers never touch it directly. All mutation
// goes through the serialized methods below, so aggregate recomputation
// stays race-free while stages complete concurrently.
type State struct {
	id        string
	target    string
	startedAt time.Time

	mu        sync.Mutex
	ledger    *evidence.Ledger
	engine    *fusion.Engine
	scorer    *scoring.Scorer
	norm      *normalize.Normalizer
	statuses  map[StageID]Status
	faults    []FaultEntry
	mode      Mode
	dropped   int
	finalized bool

	logger *zap.Logger
}

// NewState starts a fresh investigation for one phone number.
func NewState(target string, fusionCfg fusion.Config, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := fusion.NewEngine(fusionCfg)
	statuses := make(map[StageID]Status, len(Stages()))
	for _, st := range Stages() {
		statuses[st.ID] = StatusPending
	}
	return &State{
		id:        uuid.NewString(),
		target:    target,
		startedAt: time.Now().UTC(),
		ledger:    evidence.NewLedger(),
		engine:    engine,
		scorer:    scoring.NewScorer(engine),
		norm:      normalize.New(),
		statuses:  statuses,
		mode:      ModeUndetermined,
		logger:    logger,
	}
}

// ID returns the investigation id.
func (s *State) ID() string { return s.id }

// Target returns the phone number under investigation.
func (s *State) Target() string { return s.target }

// StartedAt returns the investigation start time.
func (s *State) StartedAt() time.Time { return s.startedAt }

// IngestBatch validates, normalizes and folds a batch of records from
// one stage. Malformed records are dropped with a logged fault, never
// merged. Returns accepted and dropped counts.
func (s *State) IngestBatch(stage StageID, batch evidence.Batch) (accepted, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return 0, len(batch)
	}
	for _, rec := range batch {
		if err := rec.Validate(); err != nil {
			s.dropped++
			dropped++
			s.logger.Warn("dropping malformed evidence",
				zap.String("stage", string(stage)),
				zap.String("source", rec.SourceID),
				zap.Error(err))
			continue
		}
		rec.Normalized = s.norm.Normalize(rec.Kind, rec.RawValue)
		if rec.Normalized == "" {
			s.dropped++
			dropped++
			s.logger.Warn("dropping evidence with empty normalized value",
				zap.String("stage", string(stage)),
				zap.String("source", rec.SourceID),
				zap.String("kind", string(rec.Kind)))
			continue
		}
		if err := s.ledger.Append(rec); err != nil {
			s.dropped++
			dropped++
			continue
		}
		s.engine.Ingest(rec)
		accepted++
	}
	return accepted, dropped
}

// Status returns the current status of a stage.
func (s *State) Status(id StageID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

// SetStatus transitions a stage and logs the move.
func (s *State) SetStatus(id StageID, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	prev := s.statuses[id]
	if prev == status {
		return
	}
	s.statuses[id] = status
	s.logger.Info("stage transition",
		zap.String("investigation", s.id),
		zap.String("stage", string(id)),
		zap.String("from", string(prev)),
		zap.String("to", string(status)))
}

// RecordFault marks a stage FAILED and appends the fault entry. Faults
// are recorded, never raised; the pipeline always proceeds.
func (s *State) RecordFault(id StageID, fault *collect.Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized || fault == nil {
		return
	}
	s.statuses[id] = StatusFailed
	s.faults = append(s.faults, FaultEntry{Stage: id, Fault: *fault, At: time.Now().UTC()})
	s.logger.Warn("stage failed",
		zap.String("investigation", s.id),
		zap.String("stage", string(id)),
		zap.String("fault", string(fault.Kind)),
		zap.String("message", fault.Message))
}

// SkipPending moves every still-pending stage to SKIPPED. This is the
// deadline/cancellation path; the mode decision is the only other way a
// stage ends up skipped.
func (s *State) SkipPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, status := range s.statuses {
		if status == StatusPending {
			s.statuses[id] = StatusSkipped
		}
	}
}

// Mode returns the current mode.
func (s *State) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// DecideMode fixes the mode exactly once from the verified-email count.
// Later calls, and later evidence, never change it.
func (s *State) DecideMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeUndetermined {
		return s.mode
	}
	verified := s.scorer.CountVerified(evidence.KindEmail)
	s.mode = decideMode(verified)
	s.logger.Info("mode decided",
		zap.String("investigation", s.id),
		zap.Int("verified_emails", verified),
		zap.String("mode", string(s.mode)))
	return s.mode
}

// CountVerified exposes the verification gate for one kind.
func (s *State) CountVerified(kind evidence.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.CountVerified(kind)
}

// Seeds builds the collaborator query from the current aggregates:
// the target phone plus the strongest discovered names, emails and
// usernames.
func (s *State) Seeds() collect.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect.Query{
		Phone:          s.target,
		KnownNames:     s.topValues(evidence.KindName, maxSeedNames),
		KnownEmails:    s.topValues(evidence.KindEmail, maxSeedEmails),
		KnownUsernames: s.topValues(evidence.KindUsername, maxSeedUsernames),
	}
}

// topValues returns up to n display values for a kind, best first.
// Caller holds s.mu.
func (s *State) topValues(kind evidence.Kind, n int) []string {
	aggs := s.engine.Aggregates(kind)
	if len(aggs) > n {
		aggs = aggs[:n]
	}
	out := make([]string, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, agg.Value)
	}
	return out
}
