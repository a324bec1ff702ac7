/*
store.go - Persistence interfaces for leave requests and requester profiles

PURPOSE:
  Defines the boundary between the engine and the document store.
  The engine never reads or writes legacy role names through this
  boundary; implementations that need legacy mirrors produce them with
  LegacyView (records.go).

KEY INTERFACES:
  Store:     Create, Get, Query, conditional Update
  Directory: Requester profile lookup

CONDITIONAL WRITES:
  Update(ctx, req, expectedVersion) succeeds only if the stored version
  still equals expectedVersion, and stores req with Version+1. Two
  approvers deciding different slots at the same time therefore cannot
  lose each other's record: the loser gets ErrConcurrentModification,
  re-reads and re-applies.

IMPLEMENTATIONS:
  - workflow/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go:   SQLite with a version column

SEE ALSO:
  - service.go: The retry loop around Update
*/
package workflow

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists leave requests.
type Store interface {
	// Create persists a new request. Version is set to 1.
	Create(ctx context.Context, req *LeaveRequest) error

	// Get returns the request or a *NotFoundError.
	Get(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// Query returns requests matching f, newest first.
	Query(ctx context.Context, f Filter) ([]*LeaveRequest, error)

	// Update replaces the request if the stored version equals
	// expectedVersion, and sets req.Version to expectedVersion+1.
	// Returns ErrConcurrentModification otherwise.
	Update(ctx context.Context, req *LeaveRequest, expectedVersion int64) error
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	RequesterID string
	Statuses    []Status

	// Slot matches requests whose record for Slot has one of SlotDecisions.
	Slot          Role
	SlotDecisions []Decision

	// Supervisor and Institution apply the Guard's scope rules: requesters
	// without an assigned supervisor or institution match any value.
	SupervisorID   string
	SupervisorName string
	Institution    string

	CheckedOut *bool
	Used       *bool

	Since time.Time
	Limit int
}

// Matches is the reference semantics of Filter, used by the memory store
// and by tests of other implementations.
func (f Filter) Matches(req *LeaveRequest) bool {
	if f.RequesterID != "" && req.RequesterID != f.RequesterID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, req.Status) {
		return false
	}
	if f.Slot != "" {
		rec, ok := req.Records[f.Slot]
		if !ok {
			return false
		}
		if len(f.SlotDecisions) > 0 && !containsDecision(f.SlotDecisions, rec.Decision) {
			return false
		}
	}
	if f.SupervisorID != "" || f.SupervisorName != "" {
		if !assignedSupervisor(req.Requester.Residence, Approver{ID: f.SupervisorID, Name: f.SupervisorName}) {
			return false
		}
	}
	if f.Institution != "" && !sameInstitution(req.Requester.Institution, f.Institution) {
		return false
	}
	if f.CheckedOut != nil && req.CheckedOut != *f.CheckedOut {
		return false
	}
	if f.Used != nil && req.Used != *f.Used {
		return false
	}
	if !f.Since.IsZero() && req.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsDecision(list []Decision, d Decision) bool {
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory resolves requester profiles. The import collaborator fills it.
type Directory interface {
	GetRequester(ctx context.Context, id string) (*Requester, error)
}

// Scope narrows pending and history views to the approver's responsibility.
type Scope struct {
	ApproverID   string // warden: only requesters supervised by this approver
	ApproverName string
	Institution  string // os: only requesters of this institution
	Limit        int
}
