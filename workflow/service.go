/*
service.go - Engine facade exposing the outpass operations

PURPOSE:
  Wires the pure components (classifier, flow resolver, guard, machine,
  usage tracker) to a Store, a Directory and a Publisher. This is the
  only place that performs I/O.

OPERATIONS:
  CreateRequest   validate -> profile -> classify -> resolve -> Create -> publish
  Decide          Get -> Authorize -> Apply -> Update(expectedVersion) -> publish
  CheckOut/In     Get -> UsageTracker -> Update(expectedVersion) -> publish
  GetPending      requests whose slot for the role is still pending
  GetHistory      requests the role decided by hand, newest decision first
  ListGate        approved and unused, or completed
  GetRequest, ListByRequester

RETRY:
  Every mutation is a read-modify-conditional-write. When Update reports
  ErrConcurrentModification the whole cycle (re-read, re-authorize,
  re-apply) runs again under exponential backoff, at most
  DecideMaxAttempts times; then *TransientStoreError is returned. Domain
  errors are permanent and never retried. A retry that finds the slot
  already decided by the winning writer fails with InvalidStateError.

EVENTS:
  Published only after the write succeeded. Publish failures are logged
  and do not fail the operation: the state change is already durable and
  consumers are idempotent.

SEE ALSO:
  - store.go: The conditional write contract
  - notify/worker.go: Event consumer
*/
package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultDecideMaxAttempts bounds the optimistic write loop.
const DefaultDecideMaxAttempts = 5

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Roles     *RoleTable
	Flows     FlowTable
	Policy    Policy
	Publisher Publisher
	Logger    logrus.FieldLogger

	DecideMaxAttempts int
	// NewBackOff builds the backoff for one mutation. Tests pass a zero
	// backoff to keep retries instant.
	NewBackOff func() backoff.BackOff
	Now        func() time.Time
}

// Service is the engine facade.
type Service struct {
	store     Store
	directory Directory

	roles     *RoleTable
	resolver  *FlowResolver
	guard     Guard
	machine   Machine
	usage     UsageTracker
	publisher Publisher
	log       logrus.FieldLogger

	maxAttempts int
	newBackOff  func() backoff.BackOff
	now         func() time.Time
}

// NewService builds a Service over store and directory.
func NewService(store Store, directory Directory, opts Options) *Service {
	if opts.Roles == nil {
		opts.Roles = DefaultRoleTable()
	}
	if opts.Flows == nil {
		opts.Flows = DefaultFlowTable()
	}
	if opts.Publisher == nil {
		opts.Publisher = Discard
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.DecideMaxAttempts <= 0 {
		opts.DecideMaxAttempts = DefaultDecideMaxAttempts
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:       store,
		directory:   directory,
		roles:       opts.Roles,
		resolver:    NewFlowResolver(opts.Flows, opts.Policy),
		guard:       Guard{Roles: opts.Roles},
		usage:       UsageTracker{Policy: opts.Policy},
		publisher:   opts.Publisher,
		log:         opts.Logger,
		maxAttempts: opts.DecideMaxAttempts,
		newBackOff:  opts.NewBackOff,
		now:         opts.Now,
	}
}

// Roles returns the role table the service canonicalizes with.
func (s *Service) Roles() *RoleTable {
	return s.roles
}

// =============================================================================
// CREATE
// =============================================================================

// CreateRequest validates the payload, snapshots the requester profile and
// persists a new request with its initial records.
func (s *Service) CreateRequest(ctx context.Context, requesterID string, payload CreatePayload) (*LeaveRequest, error) {
	window, err := payload.Validate()
	if err != nil {
		return nil, err
	}
	profile, err := s.directory.GetRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	category := LeaveCategory(payload.LeaveCategory)
	leaveType, err := Classify(window.From, window.To, category)
	if err != nil {
		return nil, err
	}

	requester := *profile
	if requester.ID == "" {
		requester.ID = requesterID
	}
	requester.PRN = firstNonEmpty(payload.PRN, requester.PRN)
	requester.Email = firstNonEmpty(payload.StudentEmail, requester.Email)
	requester.Phone = firstNonEmpty(payload.StudentPhone, requester.Phone)
	if requester.Residence != nil {
		res := *requester.Residence
		requester.Residence = &res
	}

	now := s.now()
	flow, records := s.resolver.Resolve(leaveType, requester, now)
	req := &LeaveRequest{
		ID:            RequestID(uuid.NewString()),
		RequesterID:   requesterID,
		Requester:     requester,
		Father:        Contact{Name: payload.FatherName, Email: payload.FatherEmail, Phone: payload.FatherPhone},
		Mother:        Contact{Name: payload.MotherName, Email: payload.MotherEmail, Phone: payload.MotherPhone},
		Window:        window,
		Destination:   payload.Destination,
		Purpose:       payload.Purpose,
		LeaveType:     leaveType,
		LeaveCategory: category,
		Flow:          flow,
		Records:       records,
		Status:        ComputeStatus(flow, records),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	RequestsCreated.WithLabelValues(string(leaveType)).Inc()
	s.log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"leave_type": leaveType,
		"status":     req.Status,
	}).Info("leave request created")

	events := []Event{createdEvent(req)}
	if req.Status == StatusApproved {
		events = append(events, newEvent(req, CauseApproved, "", now))
	}
	s.publish(ctx, events)
	return req.Clone(), nil
}

// =============================================================================
// DECIDE
// =============================================================================

// DecideResult reports the applied decision.
type DecideResult struct {
	Request  *LeaveRequest
	Role     Role // canonical slot that was decided
	Status   Status
	Attempts int
}

// Decide applies one approver's decision. It is safe to call concurrently
// for different roles of the same request.
func (s *Service) Decide(ctx context.Context, id RequestID, approver Approver, in DecideInput) (*DecideResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var slot Role
	next, events, attempts, err := s.mutate(ctx, id, func(req *LeaveRequest, now time.Time) (*LeaveRequest, []Event, error) {
		var err error
		slot, err = s.guard.Authorize(req, approver, in.ActingFor)
		if err != nil {
			return nil, nil, err
		}
		return s.machine.Apply(req, DecisionEvent{
			Role:     slot,
			Outcome:  in.Outcome(),
			Comments: in.Comments,
			Approver: approver,
		}, now)
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"role":       approver.Role,
			"decision":   in.Decision,
			"attempt":    attempts,
		}).WithError(err).Warn("decision refused")
		return nil, err
	}

	Decisions.WithLabelValues(string(slot), in.Decision).Inc()
	s.log.WithFields(logrus.Fields{
		"request_id": id,
		"role":       slot,
		"decision":   in.Decision,
		"status":     next.Status,
		"attempt":    attempts,
	}).Info("decision applied")

	s.publish(ctx, events)
	return &DecideResult{Request: next.Clone(), Role: slot, Status: next.Status, Attempts: attempts}, nil
}

// =============================================================================
// USAGE
// =============================================================================

// CheckOut records the requester leaving through the gate.
func (s *Service) CheckOut(ctx context.Context, id RequestID, actor Approver) (*LeaveRequest, error) {
	return s.gate(ctx, id, actor, CauseCheckedOut, s.usage.CheckOut)
}

// CheckIn records the requester returning and completes the outpass.
func (s *Service) CheckIn(ctx context.Context, id RequestID, actor Approver) (*LeaveRequest, error) {
	return s.gate(ctx, id, actor, CauseCheckedIn, s.usage.CheckIn)
}

func (s *Service) gate(ctx context.Context, id RequestID, actor Approver, cause Cause,
	step func(*LeaveRequest, Approver, time.Time) (*LeaveRequest, []Event, error)) (*LeaveRequest, error) {
	next, events, _, err := s.mutate(ctx, id, func(req *LeaveRequest, now time.Time) (*LeaveRequest, []Event, error) {
		return step(req, actor, now)
	})
	if err != nil {
		return nil, err
	}
	GateTransitions.WithLabelValues(string(cause)).Inc()
	s.log.WithFields(logrus.Fields{"request_id": id, "cause": cause, "actor": actor.ID}).Info("gate transition")
	s.publish(ctx, events)
	return next.Clone(), nil
}

// mutate runs read, transition and conditional write until the write wins,
// a permanent error occurs or the attempt budget is spent.
func (s *Service) mutate(ctx context.Context, id RequestID,
	transition func(*LeaveRequest, time.Time) (*LeaveRequest, []Event, error)) (*LeaveRequest, []Event, int, error) {
	type outcome struct {
		req    *LeaveRequest
		events []Event
	}

	attempts := 0
	op := func() (outcome, error) {
		attempts++
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return outcome{}, backoff.Permanent(err)
		}
		next, events, err := transition(current, s.now())
		if err != nil {
			return outcome{}, backoff.Permanent(err)
		}
		if err := s.store.Update(ctx, next, current.Version); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				DecideConflicts.Inc()
				s.log.WithFields(logrus.Fields{"request_id": id, "attempt": attempts}).Debug("concurrent modification, retrying")
				return outcome{}, err
			}
			return outcome{}, backoff.Permanent(err)
		}
		return outcome{req: next, events: events}, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.maxAttempts)),
	)
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return nil, nil, attempts, &TransientStoreError{RequestID: id, Attempts: attempts, Err: err}
		}
		return nil, nil, attempts, err
	}
	return res.req, res.events, attempts, nil
}

func (s *Service) publish(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": events[0].RequestID,
			"cause":      events[0].Cause,
		}).WithError(err).Error("publish events")
	}
}

// =============================================================================
// READS
// =============================================================================

// GetRequest returns one request.
func (s *Service) GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	return s.store.Get(ctx, id)
}

// ListByRequester returns a requester's own requests, newest first.
func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]*LeaveRequest, error) {
	return s.store.Query(ctx, Filter{RequesterID: requesterID})
}

// GetPending returns open requests awaiting role's decision. role may be a
// legacy alias. Admins see every open request.
func (s *Service) GetPending(ctx context.Context, role string, scope Scope) ([]*LeaveRequest, error) {
	r, err := s.roles.Canonicalize(role)
	if err != nil {
		return nil, err
	}
	f := Filter{Statuses: []Status{StatusPending}, Limit: scope.Limit}
	switch {
	case r == RoleAdmin:
	case IsApprovalRole(r):
		f.Slot = r
		f.SlotDecisions = []Decision{DecisionPending}
		s.applyScope(&f, r, scope)
	default:
		return nil, &AuthorizationError{Role: r, Reason: ReasonNotApprovalRole, Message: string(r) + " has no pending approvals"}
	}
	return s.store.Query(ctx, f)
}

// GetHistory returns requests role decided by hand, ordered by that role's
// decision time, most recent first. Auto-approved slots are not history.
func (s *Service) GetHistory(ctx context.Context, role string, scope Scope) ([]*LeaveRequest, error) {
	r, err := s.roles.Canonicalize(role)
	if err != nil {
		return nil, err
	}
	if r == RoleAdmin {
		out, err := s.store.Query(ctx, Filter{Statuses: []Status{StatusApproved, StatusRejected}, Limit: scope.Limit})
		if err != nil {
			return nil, err
		}
		sortByLatestDecision(out)
		return out, nil
	}
	if !IsApprovalRole(r) {
		return nil, &AuthorizationError{Role: r, Reason: ReasonNotApprovalRole, Message: string(r) + " has no approval history"}
	}

	f := Filter{Slot: r, SlotDecisions: []Decision{DecisionApproved, DecisionRejected}}
	s.applyScope(&f, r, scope)
	out, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return decidedAt(out[i].Records[r]).After(decidedAt(out[j].Records[r]))
	})
	if scope.Limit > 0 && len(out) > scope.Limit {
		out = out[:scope.Limit]
	}
	return out, nil
}

// ListGate returns approved outpasses not yet used, or completed ones.
func (s *Service) ListGate(ctx context.Context, completed bool) ([]*LeaveRequest, error) {
	used := completed
	f := Filter{Used: &used}
	if !completed {
		f.Statuses = []Status{StatusApproved}
	}
	return s.store.Query(ctx, f)
}

func (s *Service) applyScope(f *Filter, r Role, scope Scope) {
	switch r {
	case RoleWarden:
		f.SupervisorID = scope.ApproverID
		f.SupervisorName = scope.ApproverName
	case RoleOS:
		f.Institution = scope.Institution
	}
}

func sortByLatestDecision(reqs []*LeaveRequest) {
	latest := func(req *LeaveRequest) time.Time {
		var t time.Time
		for _, rec := range req.Records {
			if rec.Decision == DecisionAutoApproved {
				continue
			}
			if at := decidedAt(rec); at.After(t) {
				t = at
			}
		}
		return t
	}
	sort.SliceStable(reqs, func(i, j int) bool { return latest(reqs[i]).After(latest(reqs[j])) })
}

func decidedAt(rec ApprovalRecord) time.Time {
	if rec.Timestamp == nil {
		return time.Time{}
	}
	return *rec.Timestamp
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
