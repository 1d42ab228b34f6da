package evidence

import "sync"

// Ledger is the append-only evidence store for one investigation.
// Appends are serialized so that aggregate recomputation downstream is
// race-free even when several stages complete concurrently. The ledger
// never removes or reorders records.
type Ledger struct {
	mu      sync.Mutex
	records []Record
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append validates and stores a record. Invalid records are rejected
// and the ledger is left unchanged.
func (l *Ledger) Append(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// Records returns a copy of the ledger contents in append order.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of stored records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
