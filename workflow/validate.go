package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator caches struct metadata per type.
var validate = validator.New(validator.WithRequiredStructEnabled())

// CreatePayload is the requester-supplied part of a new leave request.
// Profile fields (name, institution, residence) come from the Directory.
type CreatePayload struct {
	Purpose       string `json:"purpose" validate:"required,min=5,max=200"`
	Destination   string `json:"destination" validate:"required,min=3,max=100"`
	FromDate      string `json:"fromDate" validate:"required"`
	ToDate        string `json:"toDate" validate:"required"`
	OutTime       string `json:"outTime" validate:"required"`
	InTime        string `json:"inTime" validate:"required"`
	LeaveCategory string `json:"leaveCategory" validate:"omitempty,oneof=regular academic non_academic"`

	PRN          string `json:"prn" validate:"required"`
	StudentEmail string `json:"studentEmail" validate:"required,email"`
	StudentPhone string `json:"studentPhone" validate:"required"`
	FatherName   string `json:"fatherName" validate:"required"`
	FatherEmail  string `json:"fatherEmail" validate:"required,email"`
	FatherPhone  string `json:"fatherPhone" validate:"required"`
	MotherName   string `json:"motherName" validate:"required"`
	MotherEmail  string `json:"motherEmail" validate:"required,email"`
	MotherPhone  string `json:"motherPhone" validate:"required"`
}

// DecideInput carries one approver decision.
type DecideInput struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string `json:"comments" validate:"max=500"`

	// ActingFor names the slot an admin decides. Ignored for other roles.
	ActingFor string `json:"actingFor"`
}

var fieldMessages = map[string]string{
	"Purpose":       "Purpose must be between 5 and 200 characters",
	"Destination":   "Destination must be between 3 and 100 characters",
	"FromDate":      "Invalid from date format",
	"ToDate":        "Invalid to date format",
	"OutTime":       "Out time is required",
	"InTime":        "In time is required",
	"LeaveCategory": "Leave category must be regular, academic or non_academic",
	"PRN":           "PRN is required",
	"StudentEmail":  "Valid student email is required",
	"StudentPhone":  "Student phone is required",
	"FatherName":    "Father's name is required",
	"FatherEmail":   "Valid father's email is required",
	"FatherPhone":   "Father's phone is required",
	"MotherName":    "Mother's name is required",
	"MotherEmail":   "Valid mother's email is required",
	"MotherPhone":   "Mother's phone is required",
	"Decision":      "Decision must be either approved or rejected",
	"Comments":      "Comments must not exceed 500 characters",
}

// Normalize trims whitespace from every field.
func (p *CreatePayload) Normalize() {
	for _, f := range []*string{
		&p.Purpose, &p.Destination, &p.FromDate, &p.ToDate, &p.OutTime, &p.InTime,
		&p.LeaveCategory, &p.PRN, &p.StudentEmail, &p.StudentPhone,
		&p.FatherName, &p.FatherEmail, &p.FatherPhone,
		&p.MotherName, &p.MotherEmail, &p.MotherPhone,
	} {
		*f = strings.TrimSpace(*f)
	}
	p.LeaveCategory = strings.ToLower(p.LeaveCategory)
}

// Validate checks the payload and parses its window. The first failing
// field is reported as a *ValidationError.
func (p *CreatePayload) Validate() (Window, error) {
	p.Normalize()
	if err := structError(validate.Struct(p)); err != nil {
		return Window{}, err
	}
	from, err := ParseDate(p.FromDate)
	if err != nil {
		return Window{}, &ValidationError{Field: "fromDate", Reason: fieldMessages["FromDate"]}
	}
	to, err := ParseDate(p.ToDate)
	if err != nil {
		return Window{}, &ValidationError{Field: "toDate", Reason: fieldMessages["ToDate"]}
	}
	if !to.After(from) {
		return Window{}, &ValidationError{Field: "toDate", Reason: "To date must be after from date"}
	}
	return Window{From: from, To: to, OutTime: p.OutTime, InTime: p.InTime}, nil
}

// Validate checks the decision input.
func (in *DecideInput) Validate() error {
	in.Decision = strings.ToLower(strings.TrimSpace(in.Decision))
	in.ActingFor = strings.TrimSpace(in.ActingFor)
	return structError(validate.Struct(in))
}

// Outcome maps the validated decision string.
func (in DecideInput) Outcome() Decision {
	return Decision(in.Decision)
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	msg, ok := fieldMessages[fe.StructField()]
	if !ok {
		msg = fe.Error()
	}
	return &ValidationError{Field: jsonName(fe.StructField()), Reason: msg}
}

func jsonName(field string) string {
	if field == "PRN" {
		return "prn"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps and the shorter ISO 8601 forms
// clients send. Zone-less values are read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
