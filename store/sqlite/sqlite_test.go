package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/outpass-engine/workflow"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRequest(id string, requester workflow.Requester, created time.Time) *workflow.LeaveRequest {
	flow, records := workflow.NewFlowResolver(workflow.DefaultFlowTable(), workflow.DefaultPolicy()).
		Resolve(workflow.LeaveAcademic, requester, created)
	return &workflow.LeaveRequest{
		ID:            workflow.RequestID(id),
		RequesterID:   requester.ID,
		Requester:     requester,
		Father:        workflow.Contact{Name: "R Rao", Email: "f@example.com", Phone: "1"},
		Mother:        workflow.Contact{Name: "S Rao", Email: "m@example.com", Phone: "2"},
		Window:        workflow.Window{From: created, To: created.Add(48 * time.Hour), OutTime: "09:00", InTime: "18:00"},
		Destination:   "Pune",
		Purpose:       "Conference",
		LeaveType:     workflow.LeaveAcademic,
		LeaveCategory: workflow.CategoryAcademic,
		Flow:          flow,
		Records:       records,
		Status:        workflow.ComputeStatus(flow, records),
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

var asha = workflow.Requester{
	ID:          "stu-1",
	Name:        "Asha Rao",
	Institution: "SIT",
	Residence:   &workflow.ResidenceUnit{Name: "Hostel A", SupervisorID: "w-1", SupervisorName: "Meera Iyer"},
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	// GIVEN: A new request
	s := newTestStore(t)
	ctx := context.Background()
	req := sampleRequest("r1", asha, base)

	// WHEN: Stored and loaded
	require.NoError(t, s.Create(ctx, req))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)

	// THEN: Every field survives
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, req, got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	assert.ErrorIs(t, s.Create(ctx, sampleRequest("r1", asha, base)), workflow.ErrDuplicateRequest)
}

func TestStore_UpdateIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))

	// Two readers at version 1
	a, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	b, err := s.Get(ctx, "r1")
	require.NoError(t, err)

	a, _, err = workflow.Machine{}.Apply(a, workflow.DecisionEvent{
		Role: workflow.RoleWarden, Outcome: workflow.DecisionApproved,
		Approver: workflow.Approver{ID: "w-1", Name: "Meera Iyer"},
	}, base.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, a, 1))
	assert.Equal(t, int64(2), a.Version)

	b.Status = workflow.StatusRejected
	err = s.Update(ctx, b, 1)
	assert.ErrorIs(t, err, workflow.ErrConcurrentModification)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, workflow.DecisionApproved, got.Records[workflow.RoleWarden].Decision)
	assert.Equal(t, "Meera Iyer", got.Records[workflow.RoleWarden].ApproverName)
	assert.Equal(t, workflow.StatusPending, got.Status)

	assert.ErrorIs(t, s.Update(ctx, sampleRequest("ghost", asha, base), 1), workflow.ErrNotFound)
}

func TestStore_LegacyMirrorRows(t *testing.T) {
	// GIVEN: A store writing legacy mirrors
	s := newTestStore(t, WithLegacyMirror(true))
	ctx := context.Background()
	req := sampleRequest("r1", asha, base)
	require.NoError(t, s.Create(ctx, req))

	// THEN: Alias rows exist next to canonical ones
	var n int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM approval_records WHERE request_id = 'r1' AND role IN ('director', 'ao')").Scan(&n))
	assert.Equal(t, 2, n)

	// AND: They fold back onto canonical roles
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.Records, len(workflow.ApprovalRoles))
	assert.Equal(t, req.Records, got.Records)
}

func TestStore_LoadsLegacyOnlyRows(t *testing.T) {
	// GIVEN: A row an older writer decided under the legacy name only
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))
	_, err := s.db.Exec(`INSERT INTO approval_records (request_id, role, status, decided_at, approver_id, approver_name, comments)
		VALUES ('r1', 'ao', 'approved', ?, 'ao-7', 'Old Office', '')`, formatTime(base))
	require.NoError(t, err)

	// WHEN: Loaded
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)

	// THEN: The decided legacy row wins over the pending canonical one
	rec := got.Records[workflow.RoleOS]
	assert.Equal(t, workflow.DecisionApproved, rec.Decision)
	assert.Equal(t, "ao-7", rec.ApproverID)
	assert.Equal(t, workflow.RoleOS, rec.Role)
}

func TestStore_LegacyFlowLoadsCanonicalAndCompletes(t *testing.T) {
	// GIVEN: A short leave an older writer stored with legacy flow and record names
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))
	_, err := s.db.Exec(`UPDATE leave_requests SET flow_json = '["Warden","director","ao"]', leave_type = 'short_leave' WHERE id = 'r1'`)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE approval_records SET role = 'director', status = 'pending', decided_at = NULL, comments = ''
		WHERE request_id = 'r1' AND role = 'campus_admin'`)
	require.NoError(t, err)

	// WHEN: Loaded
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)

	// THEN: Flow and records use canonical names
	assert.Equal(t, []workflow.Role{workflow.RoleWarden, workflow.RoleCampusAdmin, workflow.RoleOS}, got.Flow)
	assert.Equal(t, workflow.DecisionPending, got.Records[workflow.RoleCampusAdmin].Decision)

	// AND: Every role in the flow can decide it to completion
	logger, _ := test.NewNullLogger()
	svc := workflow.NewService(s, s, workflow.Options{Policy: workflow.DefaultPolicy(), Logger: logger})
	for _, who := range []workflow.Approver{
		{ID: "w-1", Name: "Meera Iyer", Role: "warden"},
		{ID: "ca-1", Name: "Dr. Shah", Role: "director"},
		{ID: "os-1", Name: "Office", Role: "ao", Affiliation: "SIT"},
	} {
		_, err := svc.Decide(ctx, "r1", who, workflow.DecideInput{Decision: "approved"})
		require.NoError(t, err, who.Role)
	}

	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, got.Status)
}

func TestStore_StatusRecomputedFromRecords(t *testing.T) {
	// GIVEN: A stored status that disagrees with the records
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))
	_, err := s.db.Exec(`UPDATE leave_requests SET status = 'approved' WHERE id = 'r1'`)
	require.NoError(t, err)

	// WHEN/THEN: Loading derives the status from the records
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, got.Status)
}

func TestStore_QuerySlotUsesFoldedDecision(t *testing.T) {
	// GIVEN: r1 pending for os, and a newer r2 whose os slot is pending
	// canonically but approved under the legacy name
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))
	require.NoError(t, s.Create(ctx, sampleRequest("r2", asha, base.Add(time.Hour))))
	_, err := s.db.Exec(`INSERT INTO approval_records (request_id, role, status, decided_at, approver_id, approver_name, comments)
		VALUES ('r2', 'ao', 'approved', ?, 'ao-7', 'Old Office', '')`, formatTime(base))
	require.NoError(t, err)

	// WHEN: The pending view for os is queried with a limit
	pending, err := s.Query(ctx, workflow.Filter{
		Slot:          workflow.RoleOS,
		SlotDecisions: []workflow.Decision{workflow.DecisionPending},
		Limit:         1,
	})
	require.NoError(t, err)

	// THEN: r2 is excluded and the limit still yields r1
	require.Len(t, pending, 1)
	assert.Equal(t, workflow.RequestID("r1"), pending[0].ID)

	// AND: r2 shows up among the approved ones
	approved, err := s.Query(ctx, workflow.Filter{
		Slot:          workflow.RoleOS,
		SlotDecisions: []workflow.Decision{workflow.DecisionApproved},
	})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, workflow.RequestID("r2"), approved[0].ID)
}

func TestStore_CorruptTimestampIsAnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleRequest("r1", asha, base)))
	_, err := s.db.Exec(`UPDATE approval_records SET decided_at = 'yesterday' WHERE request_id = 'r1' AND role = 'campus_admin'`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "r1")
	assert.ErrorContains(t, err, "invalid timestamp")
}

func TestStore_SupervisorNameScopeWithoutID(t *testing.T) {
	// GIVEN: A requester whose unit has a supervisor name but no ID
	s := newTestStore(t)
	ctx := context.Background()
	ravi := workflow.Requester{ID: "stu-2", Name: "Kiran", Institution: "SCMS",
		Residence: &workflow.ResidenceUnit{Name: "Hostel B", SupervisorName: "Ravi Kumar"}}
	require.NoError(t, s.Create(ctx, sampleRequest("r1", ravi, base)))

	// WHEN/THEN: A name-only scope for someone else does not match
	got, err := s.Query(ctx, workflow.Filter{SupervisorName: "Meera Iyer"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Query(ctx, workflow.Filter{SupervisorName: "ravi kumar"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_QueryFilters(t *testing.T) {
	s := newTestStore(t, WithLegacyMirror(true))
	ctx := context.Background()

	nameOnly := workflow.Requester{ID: "stu-2", Name: "Kiran", Institution: "SCMS",
		Residence: &workflow.ResidenceUnit{Name: "Hostel B", SupervisorName: "Ravi Kumar"}}
	noInstitution := workflow.Requester{ID: "stu-3", Name: "Dev"}

	r1 := sampleRequest("r1", asha, base)
	r2 := sampleRequest("r2", nameOnly, base.Add(time.Hour))
	r3 := sampleRequest("r3", noInstitution, base.Add(2*time.Hour))
	for _, r := range []*workflow.LeaveRequest{r1, r2, r3} {
		require.NoError(t, s.Create(ctx, r))
	}

	ids := func(f workflow.Filter) []workflow.RequestID {
		t.Helper()
		got, err := s.Query(ctx, f)
		require.NoError(t, err)
		var out []workflow.RequestID
		for _, r := range got {
			out = append(out, r.ID)
		}
		// Every SQL result must agree with the reference semantics
		for _, r := range got {
			assert.True(t, f.Matches(r), r.ID)
		}
		return out
	}

	assert.Equal(t, []workflow.RequestID{"r3", "r2", "r1"}, ids(workflow.Filter{}))
	assert.Equal(t, []workflow.RequestID{"r1"}, ids(workflow.Filter{RequesterID: "stu-1"}))
	assert.Equal(t, []workflow.RequestID{"r3", "r2"}, ids(workflow.Filter{Limit: 2}))
	assert.Equal(t, []workflow.RequestID{"r3", "r2"}, ids(workflow.Filter{Since: base.Add(30 * time.Minute)}))

	// Warden scope: ID match, name fallback, unassigned open to all
	assert.Equal(t, []workflow.RequestID{"r3", "r1"}, ids(workflow.Filter{SupervisorID: "w-1", SupervisorName: "Meera Iyer"}))
	assert.Equal(t, []workflow.RequestID{"r3", "r2"}, ids(workflow.Filter{SupervisorID: "w-9", SupervisorName: "ravi kumar"}))

	// Institution scope
	assert.Equal(t, []workflow.RequestID{"r3", "r1"}, ids(workflow.Filter{Institution: "sit"}))

	// Slot filters, campus_admin is auto-approved on academic leave
	pending := []workflow.Decision{workflow.DecisionPending}
	assert.Len(t, ids(workflow.Filter{Slot: workflow.RoleOS, SlotDecisions: pending}), 3)
	assert.Empty(t, ids(workflow.Filter{Slot: workflow.RoleCampusAdmin, SlotDecisions: pending}))

	// Usage flags
	used := false
	assert.Len(t, ids(workflow.Filter{Used: &used, Statuses: []workflow.Status{workflow.StatusPending}}), 3)
	assert.Empty(t, ids(workflow.Filter{Statuses: []workflow.Status{workflow.StatusApproved}}))
}

func TestStore_UsageStampsPersist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	req := sampleRequest("r1", asha, base)
	require.NoError(t, s.Create(ctx, req))

	req.Status = workflow.StatusApproved
	req.CheckedOut = true
	req.CheckOut = &workflow.Stamp{ActorID: "g-1", ActorName: "Gate", At: base.Add(time.Hour)}
	require.NoError(t, s.Update(ctx, req, 1))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.CheckedOut)
	require.NotNil(t, got.CheckOut)
	assert.Equal(t, "Gate", got.CheckOut.ActorName)
	assert.True(t, base.Add(time.Hour).Equal(got.CheckOut.At))
	assert.Nil(t, got.CheckIn)

	checkedOut := true
	found, err := s.Query(ctx, workflow.Filter{CheckedOut: &checkedOut})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestStore_Requesters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRequester(ctx, asha))
	require.NoError(t, s.SaveRequester(ctx, workflow.Requester{ID: "stu-0", Name: "Aaron"}))

	got, err := s.GetRequester(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, asha, *got)

	// Replace
	updated := asha
	updated.Name = "Asha R."
	require.NoError(t, s.SaveRequester(ctx, updated))
	got, err = s.GetRequester(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", got.Name)

	all, err := s.ListRequesters(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Aaron", all[0].Name)
	assert.Nil(t, all[0].Residence)

	_, err = s.GetRequester(ctx, "ghost")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
