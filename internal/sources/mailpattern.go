package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// SourceMailPattern is the stable id of the pattern-generation source.
const SourceMailPattern = "mailpattern"

// patternDomains are the providers speculative addresses are generated
// against.
var patternDomains = []string{"gmail.com", "outlook.com", "yahoo.com", "proton.me"}

// MailPattern generates speculative email candidates from discovered
// names. The candidates are guesses, so they carry a low weight and no
// co-occurrence group. This stage performs no network I/O and is skipped
// entirely in smart mode.
type MailPattern struct {
	cfg ClientConfig
}

// NewMailPattern builds the pattern-generation collector.
func NewMailPattern(cfg ClientConfig) *MailPattern {
	return &MailPattern{cfg: cfg}
}

// Name implements collect.Collector.
func (m *MailPattern) Name() string { return SourceMailPattern }

// Submit implements collect.Collector.
func (m *MailPattern) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	if err := ctx.Err(); err != nil {
		return nil, &collect.Fault{Kind: collect.FaultTimeout, Message: err.Error()}
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	seen := make(map[string]bool)
	for _, name := range q.KnownNames {
		for _, local := range localParts(name) {
			for _, domain := range patternDomains {
				candidate := local + "@" + domain
				if seen[candidate] {
					continue
				}
				seen[candidate] = true
				batch = append(batch, evidence.Record{
					SourceID:    SourceMailPattern,
					Kind:        evidence.KindEmail,
					RawValue:    candidate,
					Weight:      m.cfg.Weight,
					CollectedAt: now,
				})
			}
		}
	}
	return batch, nil
}

// localParts derives the usual corporate and personal address shapes
// from a full name: first.last, flast, firstlast, first_last.
func localParts(name string) []string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) < 2 {
		return nil
	}
	first, last := fields[0], fields[len(fields)-1]
	return []string{
		first + "." + last,
		first[:1] + last,
		first + last,
		fmt.Sprintf("%s_%s", first, last),
	}
}
