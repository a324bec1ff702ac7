package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRequest builds a pending request the way the service does.
func newTestRequest(leaveType LeaveType, requester Requester, policy Policy) *LeaveRequest {
	flow, records := NewFlowResolver(DefaultFlowTable(), policy).Resolve(leaveType, requester, t0)
	return &LeaveRequest{
		ID:          "req-1",
		RequesterID: requester.ID,
		Requester:   requester,
		LeaveType:   leaveType,
		Flow:        flow,
		Records:     records,
		Status:      ComputeStatus(flow, records),
		Version:     1,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

var testStudent = Requester{
	ID:          "stu-1",
	Name:        "Asha Rao",
	Institution: "SIT",
	Residence:   &ResidenceUnit{Name: "Hostel A", SupervisorID: "w-1", SupervisorName: "Meera Iyer"},
}

func authReason(t *testing.T, err error) string {
	t.Helper()
	var aerr *AuthorizationError
	require.True(t, errors.As(err, &aerr), "expected AuthorizationError, got %v", err)
	return aerr.Reason
}

func TestGuard_AssignedWarden(t *testing.T) {
	g := Guard{Roles: DefaultRoleTable()}
	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())

	slot, err := g.Authorize(req, Approver{ID: "w-1", Role: "warden"}, "")
	require.NoError(t, err)
	assert.Equal(t, RoleWarden, slot)

	_, err = g.Authorize(req, Approver{ID: "w-2", Name: "Someone Else", Role: "warden"}, "")
	assert.Equal(t, ReasonNotAssignedWarden, authReason(t, err))
}

func TestGuard_WardenMatchedByNameWithoutSupervisorID(t *testing.T) {
	// GIVEN: A residence unit imported with a supervisor name only
	student := testStudent
	student.Residence = &ResidenceUnit{Name: "Hostel B", SupervisorName: "Meera Iyer"}
	req := newTestRequest(LeaveShort, student, DefaultPolicy())
	g := Guard{Roles: DefaultRoleTable()}

	// WHEN/THEN: The display name decides, ignoring case
	_, err := g.Authorize(req, Approver{ID: "w-9", Name: "meera iyer", Role: "warden"}, "")
	assert.NoError(t, err)

	_, err = g.Authorize(req, Approver{ID: "w-9", Name: "Ravi", Role: "warden"}, "")
	assert.Equal(t, ReasonNotAssignedWarden, authReason(t, err))
}

func TestGuard_OfficeStaffInstitutionScope(t *testing.T) {
	g := Guard{Roles: DefaultRoleTable()}
	req := newTestRequest(LeaveAcademic, testStudent, DefaultPolicy())

	// Legacy alias claim, matching affiliation
	slot, err := g.Authorize(req, Approver{ID: "os-1", Role: "ao", Affiliation: "sit"}, "")
	require.NoError(t, err)
	assert.Equal(t, RoleOS, slot)

	_, err = g.Authorize(req, Approver{ID: "os-2", Role: "os", Affiliation: "SIBM"}, "")
	assert.Equal(t, ReasonWrongInstitution, authReason(t, err))
}

func TestGuard_RoleNotInFlow(t *testing.T) {
	// GIVEN: An academic leave, which campus_admin does not sign
	g := Guard{Roles: DefaultRoleTable()}
	req := newTestRequest(LeaveAcademic, testStudent, DefaultPolicy())

	// WHEN: A campus admin (legacy name) tries to decide
	_, err := g.Authorize(req, Approver{ID: "ca-1", Role: "director"}, "")

	// THEN: Not in flow
	assert.Equal(t, ReasonNotInFlow, authReason(t, err))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuard_AutoApprovedSlotCannotBeDecided(t *testing.T) {
	// GIVEN: A partner requester, so os is auto-approved
	policy := DefaultPolicy()
	policy.PartnerInstitutions = []string{"SIT"}
	req := newTestRequest(LeaveShort, testStudent, policy)
	g := Guard{Roles: DefaultRoleTable()}

	// WHEN/THEN: Office staff and admin acting for os are both refused
	_, err := g.Authorize(req, Approver{ID: "os-1", Role: "os", Affiliation: "SIT"}, "")
	assert.Equal(t, ReasonAutoApprovedSlot, authReason(t, err))

	_, err = g.Authorize(req, Approver{ID: "adm", Role: "admin"}, "ao")
	assert.Equal(t, ReasonAutoApprovedSlot, authReason(t, err))
}

func TestGuard_AdminActsForSlot(t *testing.T) {
	g := Guard{Roles: DefaultRoleTable()}
	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())
	admin := Approver{ID: "adm", Role: "admin"}

	// Explicit slot, scope checks skipped
	slot, err := g.Authorize(req, admin, "os")
	require.NoError(t, err)
	assert.Equal(t, RoleOS, slot)

	// Default: first pending role of the flow
	slot, err = g.Authorize(req, admin, "")
	require.NoError(t, err)
	assert.Equal(t, RoleWarden, slot)

	// Slot must be an approval role
	_, err = g.Authorize(req, admin, "student")
	assert.Equal(t, ReasonNotApprovalRole, authReason(t, err))

	// Slot name must be known
	_, err = g.Authorize(req, admin, "principal")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestGuard_TerminalAndMissing(t *testing.T) {
	g := Guard{Roles: DefaultRoleTable()}

	_, err := g.Authorize(nil, Approver{ID: "w-1", Role: "warden"}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())
	req.Status = StatusRejected
	_, err = g.Authorize(req, Approver{ID: "w-1", Role: "warden"}, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGuard_UnknownClaimedRole(t *testing.T) {
	g := Guard{Roles: DefaultRoleTable()}
	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())

	_, err := g.Authorize(req, Approver{ID: "x", Role: "dean"}, "")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestGuard_NoSupervisorAssigned(t *testing.T) {
	// GIVEN: A requester without a residence unit
	student := testStudent
	student.Residence = nil
	req := newTestRequest(LeaveShort, student, DefaultPolicy())
	g := Guard{Roles: DefaultRoleTable()}

	// THEN: Any warden may decide
	_, err := g.Authorize(req, Approver{ID: "w-7", Role: "warden"}, "")
	assert.NoError(t, err)
}
