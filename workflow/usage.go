package workflow

import "time"

// UsageTracker records gate check-out and check-in on approved requests.
// Stamps are append-only: each is set once and never cleared.
type UsageTracker struct {
	Policy Policy
}

// CheckOut marks the requester as having left.
func (u UsageTracker) CheckOut(req *LeaveRequest, actor Approver, now time.Time) (*LeaveRequest, []Event, error) {
	if err := requireApproved(req); err != nil {
		return nil, nil, err
	}
	if req.CheckedOut {
		return nil, nil, &InvalidStateError{RequestID: req.ID, Status: req.Status, Message: "already checked out"}
	}
	if req.Used {
		return nil, nil, &InvalidStateError{RequestID: req.ID, Status: req.Status, Message: "outpass already completed"}
	}

	next := req.Clone()
	next.CheckedOut = true
	next.CheckOut = &Stamp{ActorID: actor.ID, ActorName: actor.DisplayName(), At: now}
	next.UpdatedAt = now
	return next, []Event{withActor(newEvent(next, CauseCheckedOut, "", now), actor)}, nil
}

// CheckIn marks the requester as returned, completing the outpass.
func (u UsageTracker) CheckIn(req *LeaveRequest, actor Approver, now time.Time) (*LeaveRequest, []Event, error) {
	if err := requireApproved(req); err != nil {
		return nil, nil, err
	}
	if req.Used {
		return nil, nil, &InvalidStateError{RequestID: req.ID, Status: req.Status, Message: "already checked in"}
	}
	if u.Policy.RequireCheckOutBeforeCheckIn && !req.CheckedOut {
		return nil, nil, &InvalidStateError{RequestID: req.ID, Status: req.Status, Message: "cannot check in before checking out"}
	}

	next := req.Clone()
	next.Used = true
	next.CheckIn = &Stamp{ActorID: actor.ID, ActorName: actor.DisplayName(), At: now}
	next.UpdatedAt = now
	return next, []Event{withActor(newEvent(next, CauseCheckedIn, "", now), actor)}, nil
}

func requireApproved(req *LeaveRequest) error {
	if req == nil {
		return &NotFoundError{Kind: "request"}
	}
	if req.Status != StatusApproved {
		return &InvalidStateError{RequestID: req.ID, Status: req.Status, Message: "outpass is not approved"}
	}
	return nil
}
