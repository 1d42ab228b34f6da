package investigation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/fusion"
)

// ErrNoTarget is returned when Run is called without a phone number.
var ErrNoTarget = errors.New("investigation: no target phone")

// Config holds orchestrator scheduling settings.
type Config struct {
	// PoolSize bounds how many stages of one tier run concurrently.
	PoolSize int `yaml:"pool_size"`

	// GlobalDeadline bounds the whole investigation. When it fires,
	// every still-pending stage is skipped and the result is built from
	// whatever evidence exists.
	GlobalDeadline time.Duration `yaml:"global_deadline"`

	// StageTimeout bounds a single collector call, retries included.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:       4,
		GlobalDeadline: 10 * time.Minute,
		StageTimeout:   90 * time.Second,
	}
}

// Store persists investigation snapshots. Satisfied by the redis-backed
// repository; nil disables persistence.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
}

// registration binds one stage to its collector and retry policy.
type registration struct {
	collector collect.Collector
	policy    collect.RetryPolicy
}

// Orchestrator drives the tiered pipeline for one target at a time:
// it schedules stages, applies timeouts and cancellation, funnels every
// collector result through the serialized ingestion path, fires the mode
// decision at the tier 2/3 boundary and assembles the final result.
type Orchestrator struct {
	cfg       Config
	fusionCfg fusion.Config
	stages    map[StageID]registration
	store     Store
	logger    *zap.Logger
}

// New creates an orchestrator. Collectors are attached with Register.
func New(cfg Config, fusionCfg fusion.Config, store Store, logger *zap.Logger) *Orchestrator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fusionCfg: fusionCfg,
		stages:    make(map[StageID]registration),
		store:     store,
		logger:    logger,
	}
}

// Register binds a collector and its retry policy to a stage.
func (o *Orchestrator) Register(id StageID, c collect.Collector, policy collect.RetryPolicy) {
	o.stages[id] = registration{collector: c, policy: policy}
}

// Run executes the full pipeline for one phone number and always
// returns a finalized result; collaborator failures never surface as
// errors. The error return covers only an unusable request.
func (o *Orchestrator) Run(ctx context.Context, phone string) (*Result, error) {
	if phone == "" {
		return nil, ErrNoTarget
	}
	return o.RunState(ctx, NewState(phone, o.fusionCfg, o.logger)), nil
}

// NewState creates a fresh state with the orchestrator's fusion
// settings, for callers that need the investigation id before the run
// completes.
func (o *Orchestrator) NewState(phone string) *State {
	return NewState(phone, o.fusionCfg, o.logger)
}

// RunState drives an existing state through the pipeline.
func (o *Orchestrator) RunState(ctx context.Context, state *State) *Result {
	o.logger.Info("investigation started",
		zap.String("investigation", state.ID()),
		zap.String("target", state.Target()))

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.cfg.GlobalDeadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.GlobalDeadline)
	}
	defer cancel()

	for _, tier := range tiers() {
		if runCtx.Err() != nil {
			break
		}
		if tier[0].Tier >= decisionTier && state.Mode() == ModeUndetermined {
			o.applyMode(state)
		}
		o.runTier(runCtx, state, tier)
	}

	// Deadline or abort: whatever never started is skipped, never failed.
	state.SkipPending()

	result := state.Finalize()
	o.persist(state)
	o.logger.Info("investigation finalized",
		zap.String("investigation", result.ID),
		zap.String("mode", string(result.Mode)),
		zap.Int("evidence", result.EvidenceCount),
		zap.Int("faults", len(result.Faults)))
	return result
}

// applyMode fires the one-shot mode decision and pre-skips the
// low-yield stages when smart mode wins.
func (o *Orchestrator) applyMode(state *State) {
	if state.DecideMode() != ModeSmart {
		return
	}
	for _, st := range Stages() {
		if st.SmartSkip && state.Status(st.ID) == StatusPending {
			state.SetStatus(st.ID, StatusSkipped)
		}
	}
}

// runTier runs every still-pending stage of one tier on the bounded
// worker pool and waits for the tier to drain.
func (o *Orchestrator) runTier(ctx context.Context, state *State, tier []Stage) {
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.PoolSize)
	for _, st := range tier {
		if state.Status(st.ID) != StatusPending {
			continue
		}
		st := st
		g.Go(func() error {
			o.runStage(ctx, state, st)
			return nil
		})
	}
	_ = g.Wait()
}

// runStage executes one collector call and records the outcome. A fault
// marks the stage failed; cancellation marks it skipped; anything else
// ingests the batch and marks it done. A failed dependency does not
// block the stage, it just runs with whatever seeds exist.
func (o *Orchestrator) runStage(ctx context.Context, state *State, st Stage) {
	reg, ok := o.stages[st.ID]
	if !ok {
		state.RecordFault(st.ID, &collect.Fault{
			Kind:    collect.FaultUnknown,
			Message: "no collector configured for stage",
		})
		return
	}

	state.SetStatus(st.ID, StatusRunning)
	query := state.Seeds()

	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.cfg.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
	}
	defer cancel()

	runner := collect.NewRunner(reg.policy, o.logger)
	batch, fault := runner.Collect(stageCtx, reg.collector, query)

	if fault != nil {
		// Faults caused by the investigation being torn down count as
		// skipped work, not as a collaborator failure.
		if ctx.Err() != nil {
			state.SetStatus(st.ID, StatusSkipped)
			return
		}
		state.RecordFault(st.ID, fault)
		return
	}

	accepted, dropped := state.IngestBatch(st.ID, batch)
	o.logger.Info("stage collected",
		zap.String("investigation", state.ID()),
		zap.String("stage", string(st.ID)),
		zap.Int("accepted", accepted),
		zap.Int("dropped", dropped))
	state.SetStatus(st.ID, StatusDone)
}

// persist saves a snapshot if a store is attached. Persistence failures
// are logged, never fatal.
func (o *Orchestrator) persist(state *State) {
	if o.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.Save(saveCtx, state.Snapshot()); err != nil {
		o.logger.Warn("persisting investigation failed",
			zap.String("investigation", state.ID()),
			zap.Error(err))
	}
}
