/*
types.go - Core domain types for the outpass approval workflow

PURPOSE:
  Defines the vocabulary shared by every component of the engine:
  roles, leave types, per-role approval records and the leave request
  itself. Types here carry no persistence or transport concerns.

KEY TYPES:
  Role:           Canonical approval authority name (see roles.go for aliases)
  LeaveType:      Derived category that selects the approval flow
  ApprovalRecord: One role's decision on one request
  LeaveRequest:   The request with its flow, records and usage stamps
  Requester:      Normalized member profile (import does all field guessing)
  Approver:       Acting identity as delivered by the identity provider

INVARIANTS:
  - Status == ComputeStatus(Flow, Records), always (machine.go)
  - ApprovalRecord.Timestamp is nil iff Decision == DecisionPending
  - Records are immutable once Status is terminal
  - Records holds one entry per role in ApprovalRoles, not only required ones

SEE ALSO:
  - machine.go: The only writer of Status and Records after creation
  - flow.go: Builds the initial Flow and Records
*/
package workflow

import (
	"strings"
	"time"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is a canonical role name. Legacy aliases never appear in a Role value
// that has passed through RoleTable.Canonicalize.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleStudent     Role = "student"
	RoleStaff       Role = "staff" // gate staff, records check-out and check-in
	RoleWarden      Role = "warden"
	RoleCampusAdmin Role = "campus_admin"
	RoleOS          Role = "os" // office staff
)

// ApprovalRoles are the roles that own an approval slot on every request,
// in the order they are shown and initialized.
var ApprovalRoles = []Role{RoleWarden, RoleCampusAdmin, RoleOS}

// IsApprovalRole reports whether r owns an approval slot.
func IsApprovalRole(r Role) bool {
	for _, a := range ApprovalRoles {
		if a == r {
			return true
		}
	}
	return false
}

// DisplayName is the human label used in notifications.
func (r Role) DisplayName() string {
	switch r {
	case RoleWarden:
		return "Warden"
	case RoleCampusAdmin:
		return "Campus Admin"
	case RoleOS:
		return "Office Staff"
	case RoleAdmin:
		return "Admin"
	case RoleStaff:
		return "Gate Staff"
	}
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	LeaveShort       LeaveType = "short_leave"
	LeaveLong        LeaveType = "long_leave"
	LeaveVacation    LeaveType = "vacation"
	LeaveAcademic    LeaveType = "academic"
	LeaveNonAcademic LeaveType = "non_academic"
)

// Label turns "short_leave" into "short leave" for messages.
func (t LeaveType) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// LeaveCategory is the optional requester-supplied hint that can override
// the duration bucket.
type LeaveCategory string

const (
	CategoryRegular     LeaveCategory = "regular"
	CategoryAcademic    LeaveCategory = "academic"
	CategoryNonAcademic LeaveCategory = "non_academic"
)

// =============================================================================
// STATUS AND DECISIONS
// =============================================================================

// Status is the overall status of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal returns true for approved and rejected.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is the state of a single role's approval slot.
type Decision string

const (
	DecisionPending      Decision = "pending"
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionAutoApproved Decision = "auto_approved"
)

// Satisfied reports whether the slot counts towards overall approval.
func (d Decision) Satisfied() bool {
	return d == DecisionApproved || d == DecisionAutoApproved
}

// ApprovalRecord is one role's slot on one request.
type ApprovalRecord struct {
	Role         Role       `json:"role"`
	Decision     Decision   `json:"status"`
	Timestamp    *time.Time `json:"timestamp"`
	ApproverID   string     `json:"approverId,omitempty"`
	ApproverName string     `json:"approverName,omitempty"`
	Comments     string     `json:"comments"`
}

// Records maps canonical role to its approval record.
type Records map[Role]ApprovalRecord

// Clone returns a deep copy.
func (r Records) Clone() Records {
	out := make(Records, len(r))
	for k, v := range r {
		if v.Timestamp != nil {
			t := *v.Timestamp
			v.Timestamp = &t
		}
		out[k] = v
	}
	return out
}

// =============================================================================
// PEOPLE
// =============================================================================

// ResidenceUnit is the hostel a requester lives in and its assigned supervisor.
type ResidenceUnit struct {
	Name           string `json:"name"`
	SupervisorID   string `json:"supervisorId,omitempty"`
	SupervisorName string `json:"supervisorName,omitempty"`
}

// Requester is the normalized member profile the engine consumes.
type Requester struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	PRN         string         `json:"prn,omitempty"`
	Institution string         `json:"institution,omitempty"` // sub-institution code
	Programme   string         `json:"programme,omitempty"`
	Branch      string         `json:"branch,omitempty"`
	Residence   *ResidenceUnit `json:"residence,omitempty"`
}

// Approver is the acting identity. The engine trusts these fields as given.
type Approver struct {
	ID          string
	Name        string
	Email       string
	Role        string // claim as received, may be a legacy alias
	Affiliation string // sub-institution the approver is responsible for
}

// DisplayName falls back to email, then to a placeholder.
func (a Approver) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Email != "" {
		return a.Email
	}
	return "Unknown User"
}

// Contact is a guardian's contact block.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestID string

// Window is the requested absence.
type Window struct {
	From    time.Time `json:"fromDate"`
	To      time.Time `json:"toDate"`
	OutTime string    `json:"outTime"`
	InTime  string    `json:"inTime"`
}

// Stamp records who did something and when.
type Stamp struct {
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	At        time.Time `json:"at"`
}

// LeaveRequest is the unit of work of the engine.
type LeaveRequest struct {
	ID          RequestID
	RequesterID string
	Requester   Requester
	Father      Contact
	Mother      Contact

	Window      Window
	Destination string
	Purpose     string

	LeaveType     LeaveType
	LeaveCategory LeaveCategory

	Flow    []Role
	Records Records
	Status  Status

	// Usage tracking, only set once Status is approved.
	CheckedOut bool
	CheckOut   *Stamp
	Used       bool
	CheckIn    *Stamp

	// Version is the optimistic concurrency token; Store.Update bumps it.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal returns true once the request is approved or rejected.
func (r *LeaveRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// Requires reports whether role is part of the request's flow.
func (r *LeaveRequest) Requires(role Role) bool {
	for _, f := range r.Flow {
		if f == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so transitions never alias the caller's value.
func (r *LeaveRequest) Clone() *LeaveRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.Flow = append([]Role(nil), r.Flow...)
	out.Records = r.Records.Clone()
	if r.Requester.Residence != nil {
		res := *r.Requester.Residence
		out.Requester.Residence = &res
	}
	if r.CheckOut != nil {
		s := *r.CheckOut
		out.CheckOut = &s
	}
	if r.CheckIn != nil {
		s := *r.CheckIn
		out.CheckIn = &s
	}
	return &out
}
