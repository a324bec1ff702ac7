/*
errors.go - Centralized error types for the approval workflow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is against the sentinels below,
  or errors.As against the structured types when they need the details.

ERROR CATEGORIES:
  1. Validation errors    - Malformed or out-of-range input
  2. Not found errors     - Unknown request, requester or approver
  3. Authorization errors - Role not in flow, scope mismatch, auto-approved slot
  4. State errors         - Decision on terminal request or decided role
  5. Role errors          - Unrecognized role or alias
  6. Store errors         - Retryable persistence contention

USAGE:
  if errors.Is(err, workflow.ErrInvalidState) {
      // 409, nothing was mutated
  }

SEE ALSO:
  - guard.go: Produces authorization errors
  - machine.go: Produces state errors
  - api/handlers.go: Maps categories to HTTP status codes
*/
package workflow

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced request, requester or approver doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the acting approver may not decide for the slot.
	ErrUnauthorized = errors.New("not authorized")

	// ErrInvalidState is returned for decisions on terminal requests or already-decided roles.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownRole is returned when a role name matches neither a canonical role nor an alias.
	ErrUnknownRole = errors.New("unknown role")

	// ErrTransientStore is returned once bounded retries on store contention are exhausted.
	ErrTransientStore = errors.New("store temporarily unavailable")

	// ErrConcurrentModification is returned by Store.Update when the expected
	// version no longer matches. The service retries on it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateRequest is returned by Store.Create for an ID already stored.
	ErrDuplicateRequest = errors.New("request already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError identifies the missing object.
type NotFoundError struct {
	Kind string // "request", "requester", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// Authorization failure reasons. Reason codes are stable; messages are for humans.
const (
	ReasonNotInFlow         = "not_in_flow"
	ReasonNotAssignedWarden = "not_assigned_warden"
	ReasonWrongInstitution  = "wrong_institution"
	ReasonAutoApprovedSlot  = "auto_approved_slot"
	ReasonNotApprovalRole   = "not_approval_role"
)

// AuthorizationError explains why an approver may not decide for a role.
type AuthorizationError struct {
	Role    Role
	Reason  string
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}

// InvalidStateError reports a transition attempted from the wrong state.
type InvalidStateError struct {
	RequestID RequestID
	Status    Status
	Role      Role
	Message   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for request %s: %s", e.RequestID, e.Message)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// UnknownRoleError carries the unrecognized name as received.
type UnknownRoleError struct {
	Name string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role: %q", e.Name)
}

func (e *UnknownRoleError) Unwrap() error {
	return ErrUnknownRole
}

// TransientStoreError is surfaced after the retry budget is spent.
type TransientStoreError struct {
	RequestID RequestID
	Attempts  int
	Err       error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("request %s: store contention after %d attempts: %v", e.RequestID, e.Attempts, e.Err)
}

// Is lets errors.Is match both ErrTransientStore and the underlying cause.
func (e *TransientStoreError) Is(target error) bool {
	return target == ErrTransientStore
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrTransientStore)
}

// IsClientError returns true if the error is due to the caller's input or timing.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
