package notify

import (
	"fmt"

	"github.com/warp/outpass-engine/workflow"
)

// Notification is one message to one target: a user or every holder of a role.
type Notification struct {
	UserID string        `json:"userId,omitempty"`
	Role   workflow.Role `json:"role,omitempty"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
}

// Render turns an event into the notifications it should produce. Events
// that notify nobody return nil.
func Render(e workflow.Event) []Notification {
	switch e.Cause {
	case workflow.CauseCreated:
		return renderCreated(e)

	case workflow.CauseRoleApproved:
		// The final approval has its own message.
		if e.Status != workflow.StatusPending {
			return nil
		}
		return []Notification{{
			UserID: e.RequesterID,
			Title:  "Outpass Update",
			Body:   "Your outpass has been approved by " + e.Role.DisplayName(),
		}}

	case workflow.CauseApproved:
		return []Notification{{
			UserID: e.RequesterID,
			Title:  "Outpass Approved",
			Body:   "Your outpass has been approved by all approvers!",
		}}

	case workflow.CauseRejected:
		return []Notification{{
			UserID: e.RequesterID,
			Title:  "Outpass Rejected",
			Body:   "Your outpass was rejected by " + e.Role.DisplayName(),
		}}

	case workflow.CauseCheckedIn:
		return []Notification{{
			UserID: e.RequesterID,
			Title:  "Check-in Complete",
			Body:   "You have been checked back in. Your outpass is now complete.",
		}}
	}
	return nil
}

func renderCreated(e workflow.Event) []Notification {
	label := e.LeaveType.Label()
	body := fmt.Sprintf("New %s request from %s", label, e.RequesterName)
	roleTitle := fmt.Sprintf("New %s Request", label)

	var out []Notification
	for _, role := range e.PendingRoles {
		if role == workflow.RoleWarden && e.SupervisorID != "" {
			out = append(out, Notification{UserID: e.SupervisorID, Title: "New Outpass Request", Body: body})
			continue
		}
		out = append(out, Notification{Role: role, Title: roleTitle, Body: body})
	}
	return out
}
