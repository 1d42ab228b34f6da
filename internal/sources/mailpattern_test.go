package sources

import (
	"context"
	"testing"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// TestMailPatternGeneration checks the candidate shapes produced from a
// two-part name.
func TestMailPatternGeneration(t *testing.T) {
	m := NewMailPattern(ClientConfig{Weight: 0.3})
	batch, fault := m.Submit(context.Background(), collect.Query{
		Phone:      "+15551234567",
		KnownNames: []string{"Jane Doe"},
	})
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}

	// 4 local-part shapes times 4 domains.
	if len(batch) != 16 {
		t.Fatalf("batch = %d candidates, want 16", len(batch))
	}

	got := map[string]bool{}
	for _, rec := range batch {
		if rec.Kind != evidence.KindEmail {
			t.Errorf("kind = %s, want email", rec.Kind)
		}
		if rec.CoGroup != "" {
			t.Error("speculative candidates must not claim co-occurrence")
		}
		if rec.Weight != 0.3 {
			t.Errorf("weight = %v, want 0.3", rec.Weight)
		}
		got[rec.RawValue] = true
	}
	for _, want := range []string{
		"jane.doe@gmail.com", "jdoe@outlook.com",
		"janedoe@yahoo.com", "jane_doe@proton.me",
	} {
		if !got[want] {
			t.Errorf("missing candidate %q", want)
		}
	}
}

// TestMailPatternSkipsMononyms checks that single-token names generate
// nothing rather than junk.
func TestMailPatternSkipsMononyms(t *testing.T) {
	m := NewMailPattern(ClientConfig{Weight: 0.3})
	batch, fault := m.Submit(context.Background(), collect.Query{KnownNames: []string{"Cher"}})
	if fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
	if len(batch) != 0 {
		t.Fatalf("batch = %d, want 0 for a mononym", len(batch))
	}
}

// TestMailPatternDeduplicates checks that overlapping names do not emit
// the same candidate twice.
func TestMailPatternDeduplicates(t *testing.T) {
	m := NewMailPattern(ClientConfig{Weight: 0.3})
	batch, _ := m.Submit(context.Background(), collect.Query{
		KnownNames: []string{"Jane Doe", "jane doe"},
	})
	seen := map[string]int{}
	for _, rec := range batch {
		seen[rec.RawValue]++
		if seen[rec.RawValue] > 1 {
			t.Fatalf("candidate %q emitted twice", rec.RawValue)
		}
	}
}

// TestMailPatternCancelled checks that an already-cancelled context is
// honored even though this stage does no I/O.
func TestMailPatternCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMailPattern(ClientConfig{Weight: 0.3})
	_, fault := m.Submit(ctx, collect.Query{KnownNames: []string{"Jane Doe"}})
	if fault == nil || fault.Kind != collect.FaultTimeout {
		t.Fatalf("fault = %+v, want timeout", fault)
	}
}
