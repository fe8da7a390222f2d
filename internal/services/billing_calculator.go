package services

import (
	"time"

	"billremind/internal/core"
)

// NextCandidate returns the next billing date for an account before any
// holiday adjustment.
//
// Weekly and biweekly cycles count days from asOf. Monthly and bimonthly
// cycles land on dueDay, clamped to the last day of shorter months. On the
// first computation (prior == nil) the due day of asOf's own month is used
// when it exists and has not passed yet. Once a prior date exists the cycle
// always advances from asOf's month, never from prior.
//
// Daily returns asOf unchanged and is not meant for Advance.
func NextCandidate(freq core.Frequency, dueDay int, prior *core.Date, asOf core.Date) (core.Date, error) {
	if dueDay < 1 || dueDay > 31 {
		return core.Date{}, core.InvalidInputf("due day %d out of range 1-31", dueDay)
	}

	switch freq {
	case core.Daily:
		return asOf, nil
	case core.Weekly:
		return asOf.AddDays(7), nil
	case core.Biweekly:
		return asOf.AddDays(15), nil
	case core.Monthly:
		return monthlyCandidate(dueDay, prior, asOf, 1), nil
	case core.Bimonthly:
		return monthlyCandidate(dueDay, prior, asOf, 2), nil
	default:
		return core.Date{}, core.InvalidInputf("unknown frequency %q", freq)
	}
}

func monthlyCandidate(dueDay int, prior *core.Date, asOf core.Date, months int) core.Date {
	if prior == nil && dueDay <= core.DaysIn(asOf.Year(), asOf.Time.Month()) {
		sameMonth := core.NewDate(asOf.Year(), asOf.Month(), dueDay)
		if !sameMonth.Before(asOf) {
			return sameMonth
		}
	}
	return addMonthsClamped(asOf, months, dueDay)
}

// addMonthsClamped moves asOf forward by months and lands on dueDay, or on
// the month's last day when dueDay does not exist in it.
func addMonthsClamped(asOf core.Date, months, dueDay int) core.Date {
	// Day 1 keeps time.Date from normalizing Jan 31 + 1 month into March.
	first := time.Date(asOf.Year(), asOf.Time.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	day := min(dueDay, core.DaysIn(first.Year(), first.Month()))
	return core.NewDate(first.Year(), int(first.Month()), day)
}
