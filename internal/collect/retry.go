package collect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lvonguyen/numintel/internal/evidence"
)

// RetryPolicy is a declarative per-collector retry description,
// interpreted uniformly by the Runner. A collector's retry behavior
// never blocks other collectors' stages.
type RetryPolicy struct {
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	Multiplier     float64       `yaml:"backoff_multiplier"`
	RetriableKinds []FaultKind   `yaml:"retriable_fault_kinds"`
}

// DefaultRetryPolicy retries transient faults a few times with doubling
// delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		Multiplier:     2.0,
		RetriableKinds: []FaultKind{FaultTimeout, FaultBlocked, FaultUnknown},
	}
}

// retriable reports whether the policy allows another attempt for a
// fault of this kind.
func (p RetryPolicy) retriable(f *Fault) bool {
	if f == nil || !f.Retriable {
		return false
	}
	for _, k := range p.RetriableKinds {
		if k == f.Kind {
			return true
		}
	}
	return false
}

// delay returns the backoff before retry attempt n (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Runner applies a retry policy around collector calls.
type Runner struct {
	policy RetryPolicy
	logger *zap.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a runner for one collector's policy.
func NewRunner(policy RetryPolicy, logger *zap.Logger) *Runner {
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Collect calls the collector, retrying per policy. It returns the first
// successful batch, or the last fault once attempts are exhausted or the
// fault is not retriable. Context cancellation stops retrying
// immediately with a timeout fault.
func (r *Runner) Collect(ctx context.Context, c Collector, q Query) (evidence.Batch, *Fault) {
	var last *Fault
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, r.policy.delay(attempt)); err != nil {
				return nil, &Fault{Kind: FaultTimeout, Message: err.Error()}
			}
			r.logger.Debug("retrying collector",
				zap.String("collector", c.Name()),
				zap.Int("attempt", attempt),
				zap.String("last_fault", string(last.Kind)))
		}

		batch, fault := c.Submit(ctx, q)
		if fault == nil {
			return batch, nil
		}
		last = fault
		if !r.policy.retriable(fault) {
			break
		}
	}
	return nil, last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
