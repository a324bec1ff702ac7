package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cause names the transition an Event reports.
type Cause string

const (
	CauseCreated      Cause = "created"
	CauseRoleApproved Cause = "role_approved"
	CauseRoleRejected Cause = "role_rejected"
	CauseApproved     Cause = "approved"
	CauseRejected     Cause = "rejected"
	CauseCheckedOut   Cause = "checked_out"
	CauseCheckedIn    Cause = "checked_in"
)

// Event is emitted once per actual transition. Consumers deduplicate on
// DedupKey, so re-publishing the same transition is harmless.
type Event struct {
	ID            string    `json:"id"`
	RequestID     RequestID `json:"requestId"`
	Cause         Cause     `json:"cause"`
	Role          Role      `json:"role,omitempty"`
	Status        Status    `json:"status"`
	LeaveType     LeaveType `json:"leaveType"`
	RequesterID   string    `json:"requesterId"`
	RequesterName string    `json:"requesterName"`
	ActorID       string    `json:"actorId,omitempty"`
	ActorName     string    `json:"actorName,omitempty"`

	// Set on CauseCreated so the consumer can target the right approvers.
	PendingRoles   []Role `json:"pendingRoles,omitempty"`
	SupervisorID   string `json:"supervisorId,omitempty"`
	SupervisorName string `json:"supervisorName,omitempty"`
	Institution    string `json:"institution,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// DedupKey identifies the transition independent of how often it is emitted.
func (e Event) DedupKey() string {
	key := string(e.RequestID) + ":" + string(e.Cause)
	if e.Role != "" {
		key += ":" + string(e.Role)
	}
	return key
}

// Publisher hands events to the notification side. Delivery is at least once.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, events ...Event) error

func (f PublisherFunc) Publish(ctx context.Context, events ...Event) error {
	return f(ctx, events...)
}

// Discard drops all events.
var Discard Publisher = PublisherFunc(func(context.Context, ...Event) error { return nil })

func newEvent(req *LeaveRequest, cause Cause, role Role, now time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		RequestID:     req.ID,
		Cause:         cause,
		Role:          role,
		Status:        req.Status,
		LeaveType:     req.LeaveType,
		RequesterID:   req.RequesterID,
		RequesterName: req.Requester.Name,
		OccurredAt:    now,
	}
}

func createdEvent(req *LeaveRequest) Event {
	e := newEvent(req, CauseCreated, "", req.CreatedAt)
	for _, r := range req.Flow {
		if req.Records[r].Decision == DecisionPending {
			e.PendingRoles = append(e.PendingRoles, r)
		}
	}
	if res := req.Requester.Residence; res != nil {
		e.SupervisorID = res.SupervisorID
		e.SupervisorName = res.SupervisorName
	}
	e.Institution = req.Requester.Institution
	return e
}
