package evidence

import (
	"errors"
	"testing"
	"time"
)

func validRecord() Record {
	return Record{
		SourceID:    "breachindex",
		Kind:        KindEmail,
		RawValue:    "jdoe@example.com",
		Weight:      0.85,
		CoGroup:     "breachindex:leak:0",
		CollectedAt: time.Now(),
	}
}

// TestRecordValidate covers the ingestion-boundary schema checks.
func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{"valid", func(r *Record) {}, nil},
		{"missing source", func(r *Record) { r.SourceID = "" }, ErrMissingSource},
		{"unknown kind", func(r *Record) { r.Kind = "ssn" }, ErrUnknownKind},
		{"empty value", func(r *Record) { r.RawValue = "" }, ErrEmptyValue},
		{"negative weight", func(r *Record) { r.Weight = -0.1 }, ErrBadWeight},
		{"weight above one", func(r *Record) { r.Weight = 1.1 }, ErrBadWeight},
		{"boundary weights ok", func(r *Record) { r.Weight = 1.0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestLedgerAppendOnly verifies the ledger stores records in order,
// rejects invalid ones and hands out copies.
func TestLedgerAppendOnly(t *testing.T) {
	l := NewLedger()

	if err := l.Append(Record{}); err == nil {
		t.Fatal("Append of invalid record should fail")
	}
	if l.Len() != 0 {
		t.Fatalf("Len() = %d after rejected append, want 0", l.Len())
	}

	first := validRecord()
	second := validRecord()
	second.RawValue = "other@example.com"
	if err := l.Append(first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records := l.Records()
	if len(records) != 2 {
		t.Fatalf("Records() returned %d records, want 2", len(records))
	}
	if records[0].RawValue != first.RawValue || records[1].RawValue != second.RawValue {
		t.Error("Records() not in append order")
	}

	// Mutating the returned slice must not affect the ledger.
	records[0].RawValue = "tampered"
	if l.Records()[0].RawValue != first.RawValue {
		t.Error("Records() exposes internal storage")
	}
}
