package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	nanosPerDay = decimal.NewFromInt(int64(24 * time.Hour))
	one         = decimal.NewFromInt(1)
	seven       = decimal.NewFromInt(7)
)

// DurationDays returns to-from in days, exact to the nanosecond.
func DurationDays(from, to time.Time) decimal.Decimal {
	return decimal.NewFromInt(to.Sub(from).Nanoseconds()).Div(nanosPerDay)
}

// Classify derives the leave type from the requested window.
//
//	duration <= 1      short_leave
//	1 < duration < 7   long_leave
//	duration >= 7      vacation
//
// An academic or non_academic category overrides the duration bucket.
func Classify(from, to time.Time, category LeaveCategory) (LeaveType, error) {
	if !to.After(from) {
		return "", &ValidationError{Field: "toDate", Reason: "to date must be after from date"}
	}

	switch category {
	case CategoryAcademic:
		return LeaveAcademic, nil
	case CategoryNonAcademic:
		return LeaveNonAcademic, nil
	}

	days := DurationDays(from, to)
	switch {
	case days.LessThanOrEqual(one):
		return LeaveShort, nil
	case days.LessThan(seven):
		return LeaveLong, nil
	default:
		return LeaveVacation, nil
	}
}
