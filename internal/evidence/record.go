// Package evidence defines the typed evidence model shared by all
// collectors and the fusion engine: immutable source-attributed records,
// validated at the ingestion boundary, and the append-only ledger that
// holds them for one investigation.
package evidence

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the attribute a record describes.
type Kind string

const (
	KindName      Kind = "name"
	KindEmail     Kind = "email"
	KindUsername  Kind = "username"
	KindAddress   Kind = "address"
	KindPhoneMeta Kind = "phone_meta"
)

// Kinds lists every valid attribute kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindName, KindEmail, KindUsername, KindAddress, KindPhoneMeta}
}

// Valid reports whether k is a known attribute kind.
func (k Kind) Valid() bool {
	switch k {
	case KindName, KindEmail, KindUsername, KindAddress, KindPhoneMeta:
		return true
	}
	return false
}

// Validation errors returned by Record.Validate.
var (
	ErrMissingSource = errors.New("evidence: missing source id")
	ErrUnknownKind   = errors.New("evidence: unknown attribute kind")
	ErrEmptyValue    = errors.New("evidence: empty raw value")
	ErrBadWeight     = errors.New("evidence: source weight outside [0,1]")
)

// Record is one atomic, source-attributed fact about the target.
// Records are immutable once stored; Normalized is filled in at ingestion
// and is the key used for deduplication and merging.
type Record struct {
	SourceID    string    `json:"source_id"`
	Kind        Kind      `json:"attribute_kind"`
	RawValue    string    `json:"raw_value"`
	Normalized  string    `json:"normalized_value,omitempty"`
	Weight      float64   `json:"source_weight"`
	CoGroup     string    `json:"co_occurrence_group,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// Validate checks the record against the ingestion schema. Records that
// fail validation are dropped as faults, never coerced into aggregates.
func (r Record) Validate() error {
	if r.SourceID == "" {
		return ErrMissingSource
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	if r.RawValue == "" {
		return ErrEmptyValue
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("%w: %v", ErrBadWeight, r.Weight)
	}
	return nil
}

// Batch is an ordered list of records returned by one collector call.
type Batch []Record
