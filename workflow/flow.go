/*
flow.go - Approval flow resolution

PURPOSE:
  Maps a leave type (and the requester's institution) to the ordered set
  of roles that must sign off, and builds the initial approval records.

FLOW TABLE (default):
  academic       warden, os
  non_academic   warden, campus_admin
  short_leave    warden, campus_admin, os
  long_leave     warden, campus_admin, os
  vacation       warden, campus_admin, os

  Unknown leave types fall back to the long_leave flow.

INITIAL RECORDS:
  Every role in ApprovalRoles gets a record:
  - required by the flow          -> pending, no timestamp
  - not required by the flow      -> auto_approved, timestamped
  - os for a partner institution  -> auto_approved, timestamped
  - warden, only when Policy.AutoApproveResidenceSupervisor is on
                                  -> auto_approved, timestamped

  The flow itself is not shortened by auto-approval: an auto-approved
  slot still counts as a required slot that happens to be satisfied.

SEE ALSO:
  - machine.go: ComputeStatus consumes Flow + Records
  - guard.go: Refuses manual decisions on auto-approved slots
*/
package workflow

import (
	"strings"
	"time"
)

// Auto-approval reasons recorded in ApprovalRecord.Comments.
const (
	ReasonNotRequired      = "Auto-approved (not required for this leave type)"
	ReasonPartnerInstitute = "Auto-approved for partner institution"
	ReasonSupervisorPolicy = "Auto-approved (residence supervisor bypass policy)"
)

// FlowTable maps leave type to its ordered required roles.
type FlowTable map[LeaveType][]Role

// DefaultFlowTable returns the standard flows.
func DefaultFlowTable() FlowTable {
	all := []Role{RoleWarden, RoleCampusAdmin, RoleOS}
	return FlowTable{
		LeaveAcademic:    {RoleWarden, RoleOS},
		LeaveNonAcademic: {RoleWarden, RoleCampusAdmin},
		LeaveShort:       all,
		LeaveLong:        all,
		LeaveVacation:    all,
	}
}

// Policy holds the institution-specific switches of the engine. Each
// bypass is named and independently toggleable.
type Policy struct {
	// PartnerInstitutions are institution codes whose office-staff sign-off
	// is handled outside the engine.
	PartnerInstitutions []string

	// AutoApproveResidenceSupervisor pre-resolves the warden slot on every
	// request. Off by default.
	AutoApproveResidenceSupervisor bool

	// RequireCheckOutBeforeCheckIn rejects a check-in that was never
	// preceded by a check-out.
	RequireCheckOutBeforeCheckIn bool
}

// DefaultPolicy has no partner institutions, no supervisor bypass and
// enforces check-out before check-in.
func DefaultPolicy() Policy {
	return Policy{RequireCheckOutBeforeCheckIn: true}
}

// IsPartner reports whether institution is a configured partner.
func (p Policy) IsPartner(institution string) bool {
	institution = strings.TrimSpace(institution)
	if institution == "" {
		return false
	}
	for _, code := range p.PartnerInstitutions {
		if strings.EqualFold(strings.TrimSpace(code), institution) {
			return true
		}
	}
	return false
}

// FlowResolver builds flows and initial records.
type FlowResolver struct {
	table  FlowTable
	policy Policy
}

// NewFlowResolver copies table so later mutation by the caller has no effect.
func NewFlowResolver(table FlowTable, policy Policy) *FlowResolver {
	copied := make(FlowTable, len(table))
	for k, v := range table {
		copied[k] = append([]Role(nil), v...)
	}
	return &FlowResolver{table: copied, policy: policy}
}

// Flow returns the ordered roles required for leaveType.
func (fr *FlowResolver) Flow(leaveType LeaveType) []Role {
	flow, ok := fr.table[leaveType]
	if !ok {
		flow = fr.table[LeaveLong]
	}
	return append([]Role(nil), flow...)
}

// Resolve returns the flow and the full initial record set.
func (fr *FlowResolver) Resolve(leaveType LeaveType, requester Requester, now time.Time) ([]Role, Records) {
	flow := fr.Flow(leaveType)
	partner := fr.policy.IsPartner(requester.Institution)

	required := make(map[Role]bool, len(flow))
	for _, r := range flow {
		required[r] = true
	}

	records := make(Records, len(ApprovalRoles))
	for _, role := range ApprovalRoles {
		switch {
		case role == RoleOS && partner:
			records[role] = autoApproved(role, ReasonPartnerInstitute, now)
		case role == RoleWarden && fr.policy.AutoApproveResidenceSupervisor:
			records[role] = autoApproved(role, ReasonSupervisorPolicy, now)
		case !required[role]:
			records[role] = autoApproved(role, ReasonNotRequired, now)
		default:
			records[role] = ApprovalRecord{Role: role, Decision: DecisionPending}
		}
	}
	return flow, records
}

func autoApproved(role Role, reason string, now time.Time) ApprovalRecord {
	t := now
	return ApprovalRecord{
		Role:      role,
		Decision:  DecisionAutoApproved,
		Timestamp: &t,
		Comments:  reason,
	}
}
