/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

APPROVALS:
  OutpassDTO.Approvals is keyed by role name. With legacy mirroring on,
  "director" and "ao" carry the same record as "campus_admin" and "os"
  so older clients keep working.

VALIDATION:
  Request bodies decode into workflow.CreatePayload / workflow.DecideInput,
  which carry their own validation tags.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/outpass-engine/workflow"
)

// =============================================================================
// OUTPASS
// =============================================================================

// OutpassDTO represents a leave request in API responses.
type OutpassDTO struct {
	ID          string `json:"id"`
	RequesterID string `json:"studentId"`

	StudentName  string                  `json:"studentName"`
	StudentEmail string                  `json:"studentEmail"`
	StudentPhone string                  `json:"studentPhone,omitempty"`
	PRN          string                  `json:"prn,omitempty"`
	Institution  string                  `json:"institution,omitempty"`
	Programme    string                  `json:"programme,omitempty"`
	Branch       string                  `json:"branch,omitempty"`
	Residence    *workflow.ResidenceUnit `json:"hostel,omitempty"`
	Father       workflow.Contact        `json:"father"`
	Mother       workflow.Contact        `json:"mother"`

	FromDate    time.Time `json:"fromDate"`
	ToDate      time.Time `json:"toDate"`
	OutTime     string    `json:"outTime"`
	InTime      string    `json:"inTime"`
	Destination string    `json:"destination"`
	Purpose     string    `json:"purpose"`

	LeaveType     string                             `json:"leaveType"`
	LeaveCategory string                             `json:"leaveCategory,omitempty"`
	ApprovalFlow  []workflow.Role                    `json:"approvalFlow"`
	Approvals     map[string]workflow.ApprovalRecord `json:"approvals"`
	Status        string                             `json:"currentStatus"`

	CheckedOut bool            `json:"checkedOut"`
	CheckOut   *workflow.Stamp `json:"checkOut,omitempty"`
	Used       bool            `json:"isUsed"`
	CheckIn    *workflow.Stamp `json:"checkIn,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DecisionDTO is returned by the decision endpoint.
type DecisionDTO struct {
	Role     workflow.Role `json:"role"`
	Status   string        `json:"currentStatus"`
	Attempts int           `json:"attempts"`
	Outpass  OutpassDTO    `json:"outpass"`
}

// =============================================================================
// REQUESTERS
// =============================================================================

// SaveRequesterRequest upserts a normalized requester profile.
type SaveRequesterRequest struct {
	ID             string `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required,min=2,max=100"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	PRN            string `json:"prn"`
	Institution    string `json:"institution"`
	Programme      string `json:"programme"`
	Branch         string `json:"branch"`
	Hostel         string `json:"hostel"`
	SupervisorID   string `json:"wardenId"`
	SupervisorName string `json:"wardenName"`
}

func (r SaveRequesterRequest) toRequester() workflow.Requester {
	req := workflow.Requester{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		PRN:         r.PRN,
		Institution: r.Institution,
		Programme:   r.Programme,
		Branch:      r.Branch,
	}
	if r.Hostel != "" || r.SupervisorID != "" || r.SupervisorName != "" {
		req.Residence = &workflow.ResidenceUnit{
			Name:           r.Hostel,
			SupervisorID:   r.SupervisorID,
			SupervisorName: r.SupervisorName,
		}
	}
	return req
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
