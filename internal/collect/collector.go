// Package collect defines the contract between the investigation core
// and the external evidence collectors, plus the retry layer that shields
// the core from their unreliability. Collector faults are values, not Go
// errors: no fault ever aborts the investigation.
package collect

import (
	"context"

	"github.com/lvonguyen/numintel/internal/evidence"
)

// FaultKind classifies a collector failure.
type FaultKind string

const (
	FaultTimeout FaultKind = "timeout"
	FaultBlocked FaultKind = "blocked"
	FaultAuth    FaultKind = "auth"
	FaultUnknown FaultKind = "unknown"
)

// Fault describes a failed collector call.
type Fault struct {
	Kind      FaultKind `json:"kind"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
}

// Query is the investigation context handed to a collector. Seed slices
// grow as earlier tiers discover attributes; collectors that need seeds
// tolerate empty ones.
type Query struct {
	Phone          string   `json:"phone"`
	KnownNames     []string `json:"known_names,omitempty"`
	KnownEmails    []string `json:"known_emails,omitempty"`
	KnownUsernames []string `json:"known_usernames,omitempty"`
}

// Collector is one external evidence source. Submit performs the
// source's I/O and returns either a batch of evidence-shaped payloads or
// a fault, never both.
type Collector interface {
	// Name returns the stable source identifier used in evidence records.
	Name() string
	// Submit queries the source for the given investigation context.
	Submit(ctx context.Context, q Query) (evidence.Batch, *Fault)
}
