package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyView_Mirror(t *testing.T) {
	table := DefaultRoleTable()
	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())

	// Mirrored: aliases carry copies of the canonical record
	view := LegacyView(table, req.Records, true)
	assert.Contains(t, view, "campus_admin")
	assert.Contains(t, view, "director")
	assert.Contains(t, view, "os")
	assert.Contains(t, view, "ao")
	assert.Equal(t, view["campus_admin"], view["director"])

	// Not mirrored: canonical keys only
	view = LegacyView(table, req.Records, false)
	assert.Len(t, view, len(ApprovalRoles))
	assert.NotContains(t, view, "director")
}

func TestCanonicalRecords_RoundTrip(t *testing.T) {
	// GIVEN: A mirrored view
	table := DefaultRoleTable()
	req := newTestRequest(LeaveShort, testStudent, DefaultPolicy())
	req, _ = decide(t, req, RoleCampusAdmin, DecisionApproved)

	// WHEN: It is folded back
	got, err := CanonicalRecords(table, LegacyView(table, req.Records, true))

	// THEN: Identical to the canonical records
	require.NoError(t, err)
	assert.Equal(t, req.Records, got)
}

func TestCanonicalRecords_PrefersDecidedRecord(t *testing.T) {
	// GIVEN: An old writer that only updated the "director" key
	table := DefaultRoleTable()
	ts := t0
	raw := map[string]ApprovalRecord{
		"campus_admin": {Decision: DecisionPending},
		"director":     {Decision: DecisionApproved, Timestamp: &ts, ApproverID: "d-1"},
		"ao":           {Decision: DecisionRejected, Timestamp: &ts, ApproverID: "a-1"},
		"os":           {Decision: DecisionApproved, Timestamp: &ts, ApproverID: "o-1"},
	}

	// WHEN: Folded onto canonical roles
	got, err := CanonicalRecords(table, raw)
	require.NoError(t, err)

	// THEN: Decided beats pending; canonical beats alias between decided ones
	assert.Equal(t, DecisionApproved, got[RoleCampusAdmin].Decision)
	assert.Equal(t, "d-1", got[RoleCampusAdmin].ApproverID)
	assert.Equal(t, RoleCampusAdmin, got[RoleCampusAdmin].Role)
	assert.Equal(t, "o-1", got[RoleOS].ApproverID)
	assert.Len(t, got, 2)
}

func TestCanonicalRecords_UnknownKey(t *testing.T) {
	_, err := CanonicalRecords(DefaultRoleTable(), map[string]ApprovalRecord{"principal": {}})
	assert.ErrorIs(t, err, ErrUnknownRole)
}
