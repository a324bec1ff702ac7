/*
handlers.go - HTTP API handlers for the outpass workflow

PURPOSE:
  Exposes the workflow engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to workflow.Service.

ENDPOINTS:
  Outpasses:
    POST   /api/outpasses                 Create a request for the caller
    GET    /api/outpasses/mine            Caller's own requests
    GET    /api/outpasses/pending         Awaiting the caller's role
    GET    /api/outpasses/history         Decided by the caller's role
    GET    /api/outpasses/gate            Approved and unused (?completed=true for used)
    GET    /api/outpasses/{id}            One request
    POST   /api/outpasses/{id}/decision   Approve or reject
    POST   /api/outpasses/{id}/checkout   Gate check-out
    POST   /api/outpasses/{id}/checkin    Gate check-in

  Requesters:
    POST   /api/requesters                Upsert a profile (admin)
    GET    /api/requesters/{id}           Read a profile (admin)

IDENTITY:
  The gateway authenticates the caller and sets X-User-Id, X-User-Role,
  X-User-Name, X-User-Email and X-User-Affiliation. The engine trusts
  them as given.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown role
  - 401: Missing identity headers
  - 403: Not authorized for the slot or the endpoint
  - 404: Request or requester not found
  - 409: Invalid state (terminal request, slot already decided)
  - 503: Store contention after retries
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/outpass-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RequesterStore is the profile side the requester endpoints write to.
type RequesterStore interface {
	workflow.Directory
	SaveRequester(ctx context.Context, r workflow.Requester) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *workflow.Service
	Requesters RequesterStore
	Log        logrus.FieldLogger

	// MirrorLegacyRoles adds "director"/"ao" keys to approvals in responses.
	MirrorLegacyRoles bool

	validate *validator.Validate
}

// NewHandler creates a new handler over the service.
func NewHandler(svc *workflow.Service, requesters RequesterStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Service:    svc,
		Requesters: requesters,
		Log:        log,
		validate:   validator.New(),
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

type identityKey struct{}

// Identity reads the gateway headers into a workflow.Approver.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := workflow.Approver{
			ID:          r.Header.Get("X-User-Id"),
			Role:        r.Header.Get("X-User-Role"),
			Name:        r.Header.Get("X-User-Name"),
			Email:       r.Header.Get("X-User-Email"),
			Affiliation: r.Header.Get("X-User-Affiliation"),
		}
		if a.ID == "" || a.Role == "" {
			writeError(w, http.StatusUnauthorized, "Missing identity", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, a)))
	})
}

func approverFrom(ctx context.Context) workflow.Approver {
	a, _ := ctx.Value(identityKey{}).(workflow.Approver)
	return a
}

// requireRole canonicalizes the caller's role and checks it is one of allowed.
func (h *Handler) requireRole(w http.ResponseWriter, a workflow.Approver, allowed ...workflow.Role) (workflow.Role, bool) {
	role, err := h.Service.Roles().Canonicalize(a.Role)
	if err != nil {
		h.writeDomainError(w, nil, err)
		return "", false
	}
	for _, r := range allowed {
		if r == role {
			return role, true
		}
	}
	writeError(w, http.StatusForbidden, "Role "+string(role)+" may not use this endpoint", nil)
	return "", false
}

// =============================================================================
// OUTPASS ENDPOINTS
// =============================================================================

// CreateOutpass creates a request for the calling student.
func (h *Handler) CreateOutpass(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	if _, ok := h.requireRole(w, a, workflow.RoleStudent, workflow.RoleAdmin); !ok {
		return
	}

	var payload workflow.CreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), a.ID, payload)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toOutpassDTO(req))
}

// ListMine returns the caller's own requests.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	reqs, err := h.Service.ListByRequester(r.Context(), a.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTOs(reqs))
}

// ListPending returns requests awaiting the caller's role.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	reqs, err := h.Service.GetPending(r.Context(), a.Role, scopeFor(a, r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTOs(reqs))
}

// ListHistory returns requests the caller's role decided.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	reqs, err := h.Service.GetHistory(r.Context(), a.Role, scopeFor(a, r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTOs(reqs))
}

// ListGate returns approved outpasses for the gate.
func (h *Handler) ListGate(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	if _, ok := h.requireRole(w, a, workflow.RoleStaff, workflow.RoleAdmin); !ok {
		return
	}
	completed, _ := strconv.ParseBool(r.URL.Query().Get("completed"))
	reqs, err := h.Service.ListGate(r.Context(), completed)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTOs(reqs))
}

// GetOutpass returns one request. Students only see their own.
func (h *Handler) GetOutpass(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())
	req, err := h.Service.GetRequest(r.Context(), workflow.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if role, _ := h.Service.Roles().Canonicalize(a.Role); role == workflow.RoleStudent && req.RequesterID != a.ID {
		writeError(w, http.StatusNotFound, "Outpass not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTO(req))
}

// Decide applies the caller's decision.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	a := approverFrom(r.Context())

	var in workflow.DecideInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	res, err := h.Service.Decide(r.Context(), workflow.RequestID(chi.URLParam(r, "id")), a, in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionDTO{
		Role:     res.Role,
		Status:   string(res.Status),
		Attempts: res.Attempts,
		Outpass:  h.toOutpassDTO(res.Request),
	})
}

// CheckOut records the requester leaving.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.gate(w, r, h.Service.CheckOut)
}

// CheckIn records the requester returning.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.gate(w, r, h.Service.CheckIn)
}

func (h *Handler) gate(w http.ResponseWriter, r *http.Request,
	step func(context.Context, workflow.RequestID, workflow.Approver) (*workflow.LeaveRequest, error)) {
	a := approverFrom(r.Context())
	if _, ok := h.requireRole(w, a, workflow.RoleStaff, workflow.RoleAdmin); !ok {
		return
	}
	req, err := step(r.Context(), workflow.RequestID(chi.URLParam(r, "id")), a)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toOutpassDTO(req))
}

func scopeFor(a workflow.Approver, r *http.Request) workflow.Scope {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return workflow.Scope{
		ApproverID:   a.ID,
		ApproverName: a.Name,
		Institution:  a.Affiliation,
		Limit:        limit,
	}
}

// =============================================================================
// REQUESTER ENDPOINTS
// =============================================================================

// SaveRequester upserts a requester profile.
func (h *Handler) SaveRequester(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, approverFrom(r.Context()), workflow.RoleAdmin); !ok {
		return
	}

	var req SaveRequesterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid requester", err)
		return
	}

	profile := req.toRequester()
	if err := h.Requesters.SaveRequester(r.Context(), profile); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// GetRequester reads a requester profile.
func (h *Handler) GetRequester(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, approverFrom(r.Context()), workflow.RoleAdmin); !ok {
		return
	}
	profile, err := h.Requesters.GetRequester(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toOutpassDTO(req *workflow.LeaveRequest) OutpassDTO {
	return OutpassDTO{
		ID:            string(req.ID),
		RequesterID:   req.RequesterID,
		StudentName:   req.Requester.Name,
		StudentEmail:  req.Requester.Email,
		StudentPhone:  req.Requester.Phone,
		PRN:           req.Requester.PRN,
		Institution:   req.Requester.Institution,
		Programme:     req.Requester.Programme,
		Branch:        req.Requester.Branch,
		Residence:     req.Requester.Residence,
		Father:        req.Father,
		Mother:        req.Mother,
		FromDate:      req.Window.From,
		ToDate:        req.Window.To,
		OutTime:       req.Window.OutTime,
		InTime:        req.Window.InTime,
		Destination:   req.Destination,
		Purpose:       req.Purpose,
		LeaveType:     string(req.LeaveType),
		LeaveCategory: string(req.LeaveCategory),
		ApprovalFlow:  req.Flow,
		Approvals:     workflow.LegacyView(h.Service.Roles(), req.Records, h.MirrorLegacyRoles),
		Status:        string(req.Status),
		CheckedOut:    req.CheckedOut,
		CheckOut:      req.CheckOut,
		Used:          req.Used,
		CheckIn:       req.CheckIn,
		Version:       req.Version,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
	}
}

func (h *Handler) toOutpassDTOs(reqs []*workflow.LeaveRequest) []OutpassDTO {
	out := make([]OutpassDTO, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, h.toOutpassDTO(req))
	}
	return out
}

// writeDomainError maps the workflow error taxonomy to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *workflow.ValidationError
		aerr *workflow.AuthorizationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Reason, Code: "validation", Details: verr.Field})
	case errors.Is(err, workflow.ErrUnknownRole):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "unknown_role"})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: aerr.Message, Code: aerr.Reason})
	case errors.Is(err, workflow.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, workflow.ErrInvalidState):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, workflow.ErrTransientStore):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Please retry", Code: "contention"})
	default:
		entry := h.Log.WithError(err)
		if r != nil {
			entry = entry.WithFields(logrus.Fields{
				"path":            r.URL.Path,
				"http_request_id": middleware.GetReqID(r.Context()),
			})
		}
		entry.Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
