package model

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced to callers as typed statuses, never raw panics.
var (
	// ErrNotEnabled is returned when an operation's feature flag is off.
	ErrNotEnabled = errors.New("operation not enabled")

	// ErrEmbeddingUnavailable means the upstream embedding capability is
	// down. The artifact is marked queued for indexing and retried by the
	// background scheduler; it is never silently dropped.
	ErrEmbeddingUnavailable = errors.New("embedding capability unavailable")
)

// ParseError means a standards source could not be decomposed into nodes.
// Fatal to that ingestion run; the previous version stays authoritative.
type ParseError struct {
	SetID  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse standards source for %s: %s", e.SetID, e.Reason)
}

// CycleError means a subsumes edge would break the forest invariant,
// either by creating a cycle or by giving a node a second parent.
type CycleError struct {
	SetID  string
	NodeID string
	Reason string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("subsumption forest violated at %s in %s: %s", e.NodeID, e.SetID, e.Reason)
}

// IncompatibleGraphsError means a crosswalk was requested before both
// StandardSets completed ingestion. Surfaced to the caller, not retried.
type IncompatibleGraphsError struct {
	FromSet string
	ToSet   string
}

func (e *IncompatibleGraphsError) Error() string {
	return fmt.Sprintf("crosswalk %s -> %s: both sets must be ingested and published", e.FromSet, e.ToSet)
}

// RateLimitedError is returned when an account exceeds its Map ceiling.
// Retryable by the caller; requests are rejected, never queued indefinitely.
type RateLimitedError struct {
	AccountID  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited for account %s, retry after %s", e.AccountID, e.RetryAfter)
}
