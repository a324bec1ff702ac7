/*
machine.go - Approval state machine

PURPOSE:
  Applies one role's decision to a request and recomputes the overall
  status. Apply is pure: it returns a new request value and the events
  describing the transition; persisting both is the caller's job.

STATES:
  Request:  pending ──▶ approved (terminal)
                   └──▶ rejected (terminal)
  Slot:     pending ──▶ approved | rejected
            auto_approved (set at creation, never changes)

STATUS FUNCTION:
  ComputeStatus(flow, records):
    any slot rejected                     -> rejected
    every flow role approved|auto_approved -> approved
    otherwise                             -> pending

  Status is never stored as a counter that could drift: it is always
  recomputed from the records it summarizes.

SEE ALSO:
  - guard.go: Runs before Apply and resolves which slot is decided
  - service.go: Persists Apply's result with a conditional write
*/
package workflow

import (
	"time"
)

// ComputeStatus derives the overall status from the canonical flow and
// records. It is pure and idempotent.
func ComputeStatus(flow []Role, records Records) Status {
	for _, rec := range records {
		if rec.Decision == DecisionRejected {
			return StatusRejected
		}
	}
	for _, role := range flow {
		if !records[role].Decision.Satisfied() {
			return StatusPending
		}
	}
	return StatusApproved
}

// DecisionEvent is one role's decision on one request.
type DecisionEvent struct {
	Role     Role     // canonical slot being decided
	Outcome  Decision // DecisionApproved or DecisionRejected
	Comments string
	Approver Approver
}

// Machine applies decisions. The zero value is ready to use.
type Machine struct{}

// Apply validates the transition and returns the updated request.
func (Machine) Apply(req *LeaveRequest, ev DecisionEvent, now time.Time) (*LeaveRequest, []Event, error) {
	if ev.Outcome != DecisionApproved && ev.Outcome != DecisionRejected {
		return nil, nil, &ValidationError{Field: "decision", Reason: "decision must be either approved or rejected"}
	}
	if req.IsTerminal() {
		return nil, nil, &InvalidStateError{
			RequestID: req.ID,
			Status:    req.Status,
			Role:      ev.Role,
			Message:   "request is already " + string(req.Status),
		}
	}
	current, ok := req.Records[ev.Role]
	if !ok {
		return nil, nil, &InvalidStateError{
			RequestID: req.ID,
			Status:    req.Status,
			Role:      ev.Role,
			Message:   "no approval slot for role " + string(ev.Role),
		}
	}
	if current.Decision != DecisionPending {
		return nil, nil, &InvalidStateError{
			RequestID: req.ID,
			Status:    req.Status,
			Role:      ev.Role,
			Message:   string(ev.Role) + " has already decided (" + string(current.Decision) + ")",
		}
	}

	next := req.Clone()
	at := now
	next.Records[ev.Role] = ApprovalRecord{
		Role:         ev.Role,
		Decision:     ev.Outcome,
		Timestamp:    &at,
		ApproverID:   ev.Approver.ID,
		ApproverName: ev.Approver.DisplayName(),
		Comments:     ev.Comments,
	}
	next.Status = ComputeStatus(next.Flow, next.Records)
	next.UpdatedAt = now

	roleCause := CauseRoleApproved
	if ev.Outcome == DecisionRejected {
		roleCause = CauseRoleRejected
	}
	events := []Event{withActor(newEvent(next, roleCause, ev.Role, now), ev.Approver)}

	switch next.Status {
	case StatusApproved:
		events = append(events, withActor(newEvent(next, CauseApproved, "", now), ev.Approver))
	case StatusRejected:
		e := withActor(newEvent(next, CauseRejected, "", now), ev.Approver)
		e.Role = ev.Role
		events = append(events, e)
	}
	return next, events, nil
}

func withActor(e Event, a Approver) Event {
	e.ActorID = a.ID
	e.ActorName = a.DisplayName()
	return e
}
