package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() CreatePayload {
	return CreatePayload{
		Purpose:      "Family function",
		Destination:  "Pune",
		FromDate:     "2026-03-02T09:00:00Z",
		ToDate:       "2026-03-02T18:00:00Z",
		OutTime:      "09:00",
		InTime:       "18:00",
		PRN:          "2101",
		StudentEmail: "asha@example.edu",
		StudentPhone: "9999999999",
		FatherName:   "R Rao",
		FatherEmail:  "father@example.com",
		FatherPhone:  "8888888888",
		MotherName:   "S Rao",
		MotherEmail:  "mother@example.com",
		MotherPhone:  "7777777777",
	}
}

func validationField(t *testing.T, err error) (string, string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Field, verr.Reason
}

func TestCreatePayload_Valid(t *testing.T) {
	p := validPayload()
	p.Purpose = "  Family function  "
	p.LeaveCategory = " Academic "

	w, err := p.Validate()

	require.NoError(t, err)
	assert.Equal(t, "Family function", p.Purpose)
	assert.Equal(t, "academic", p.LeaveCategory)
	assert.Equal(t, 9*time.Hour, w.To.Sub(w.From))
	assert.Equal(t, "09:00", w.OutTime)
}

func TestCreatePayload_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *CreatePayload)
		field  string
		reason string
	}{
		{"short purpose", func(p *CreatePayload) { p.Purpose = "trip" }, "purpose", "Purpose must be between 5 and 200 characters"},
		{"short destination", func(p *CreatePayload) { p.Destination = "NY" }, "destination", "Destination must be between 3 and 100 characters"},
		{"bad email", func(p *CreatePayload) { p.FatherEmail = "not-an-email" }, "fatherEmail", "Valid father's email is required"},
		{"missing prn", func(p *CreatePayload) { p.PRN = " " }, "prn", "PRN is required"},
		{"unknown category", func(p *CreatePayload) { p.LeaveCategory = "medical" }, "leaveCategory", "Leave category must be regular, academic or non_academic"},
		{"unparseable date", func(p *CreatePayload) { p.FromDate = "yesterday" }, "fromDate", "Invalid from date format"},
		{"inverted window", func(p *CreatePayload) { p.ToDate = "2026-03-01" }, "toDate", "To date must be after from date"},
		{"equal dates", func(p *CreatePayload) { p.ToDate = p.FromDate }, "toDate", "To date must be after from date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)

			_, err := p.Validate()

			assert.ErrorIs(t, err, ErrValidation)
			field, reason := validationField(t, err)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestDecideInput_Validate(t *testing.T) {
	in := DecideInput{Decision: " Approved ", ActingFor: " os "}
	require.NoError(t, in.Validate())
	assert.Equal(t, DecisionApproved, in.Outcome())
	assert.Equal(t, "os", in.ActingFor)

	in = DecideInput{Decision: "maybe"}
	field, _ := validationField(t, in.Validate())
	assert.Equal(t, "decision", field)

	in = DecideInput{Decision: "auto_approved"}
	assert.ErrorIs(t, in.Validate(), ErrValidation)
}

func TestParseDate_Layouts(t *testing.T) {
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2026-03-02", "2026-03-02T00:00", "2026-03-02T00:00:00", "2026-03-02T05:30:00+05:30"} {
		got, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}
	_, err := ParseDate("02/03/2026")
	assert.Error(t, err)
}
