package workflow

import (
	"fmt"
	"strings"
)

// Guard decides whether an approver may decide a given slot on a given
// request. It only reads.
type Guard struct {
	Roles *RoleTable
}

// Authorize returns the canonical slot the approver decides for.
//
// Checks run in order: request exists and is not terminal, the claimed role
// is in the flow (admins bypass this and act for actingFor), the slot is not
// auto-approved, and the approver is within the slot's institutional scope.
func (g Guard) Authorize(req *LeaveRequest, approver Approver, actingFor string) (Role, error) {
	if req == nil {
		return "", &NotFoundError{Kind: "request"}
	}
	if req.IsTerminal() {
		return "", &InvalidStateError{
			RequestID: req.ID,
			Status:    req.Status,
			Message:   "request is already " + string(req.Status),
		}
	}

	claimed, err := g.Roles.Canonicalize(approver.Role)
	if err != nil {
		return "", err
	}

	isAdmin := claimed == RoleAdmin
	slot := claimed
	if isAdmin {
		slot, err = g.adminSlot(req, actingFor)
		if err != nil {
			return "", err
		}
	} else if !req.Requires(claimed) {
		return "", &AuthorizationError{
			Role:    claimed,
			Reason:  ReasonNotInFlow,
			Message: fmt.Sprintf("You (%s) are not authorized to approve/reject this type of leave", claimed),
		}
	}

	if req.Records[slot].Decision == DecisionAutoApproved {
		return "", &AuthorizationError{
			Role:    slot,
			Reason:  ReasonAutoApprovedSlot,
			Message: fmt.Sprintf("The %s step for this outpass was auto-approved and cannot be decided manually", slot.DisplayName()),
		}
	}

	if isAdmin {
		return slot, nil
	}

	switch slot {
	case RoleWarden:
		if !assignedSupervisor(req.Requester.Residence, approver) {
			return "", &AuthorizationError{
				Role:    slot,
				Reason:  ReasonNotAssignedWarden,
				Message: "You are not authorized to approve/reject this outpass as you are not the assigned warden for this student",
			}
		}
	case RoleOS:
		if !sameInstitution(req.Requester.Institution, approver.Affiliation) {
			return "", &AuthorizationError{
				Role:    slot,
				Reason:  ReasonWrongInstitution,
				Message: "You are not authorized to approve/reject this outpass as you are not the assigned office staff for this school",
			}
		}
	}
	return slot, nil
}

// adminSlot resolves the slot an admin decides: the named one, or the first
// pending role of the flow.
func (g Guard) adminSlot(req *LeaveRequest, actingFor string) (Role, error) {
	if strings.TrimSpace(actingFor) == "" {
		for _, r := range req.Flow {
			if req.Records[r].Decision == DecisionPending {
				return r, nil
			}
		}
		return "", &InvalidStateError{
			RequestID: req.ID,
			Status:    req.Status,
			Message:   "no pending approval slot left",
		}
	}
	slot, err := g.Roles.Canonicalize(actingFor)
	if err != nil {
		return "", err
	}
	if !IsApprovalRole(slot) {
		return "", &AuthorizationError{
			Role:    slot,
			Reason:  ReasonNotApprovalRole,
			Message: fmt.Sprintf("%s does not own an approval step", slot),
		}
	}
	return slot, nil
}

// assignedSupervisor matches by ID when the residence unit carries one and by
// display name for units imported with names only. A requester without an
// assigned supervisor can be decided by any warden.
func assignedSupervisor(res *ResidenceUnit, approver Approver) bool {
	if res == nil {
		return true
	}
	if res.SupervisorID != "" {
		return res.SupervisorID == approver.ID
	}
	if res.SupervisorName != "" {
		return strings.EqualFold(strings.TrimSpace(res.SupervisorName), strings.TrimSpace(approver.Name))
	}
	return true
}

// sameInstitution: requesters without an institution are open to any office
// staff; otherwise the approver's affiliation must match.
func sameInstitution(requester, approver string) bool {
	requester = strings.TrimSpace(requester)
	if requester == "" {
		return true
	}
	return strings.EqualFold(requester, strings.TrimSpace(approver))
}
