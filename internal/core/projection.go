package core

import "fmt"

// ProjectCashFlow produces a day-by-day balance series for horizonDays days
// forward from today, combining the known ledger with active recurring rules.
//
// Index 0 carries the balance as of today: the sum of every entry dated on or
// before today, with no further adjustment, so a same-day entry is never
// counted twice. Each following day adds the entries already dated for that
// exact day plus every active rule that fires on it. Dated future entries and
// rule contributions are accumulated separately on purpose: a rule and a
// manually entered future entry must never be conflated.
//
// The inputs are never mutated and the result is deterministic for identical
// inputs.
func ProjectCashFlow(ledger []LedgerEntry, rules []RecurringRule, today Date, horizonDays int) ([]ProjectionPoint, error) {
	if horizonDays < 0 {
		return nil, fmt.Errorf("%w: horizon must be >= 0, got %d", ErrInvalidArgument, horizonDays)
	}

	today = DateOf(today.Time)

	var balance int64
	future := make(map[Date]int64)
	for _, e := range ledger {
		day := DateOf(e.Date.Time)
		if day.After(today) {
			future[day] += e.Amount.Cents
		} else {
			balance += e.Amount.Cents
		}
	}

	points := make([]ProjectionPoint, 0, horizonDays+1)
	points = append(points, ProjectionPoint{Date: today, Balance: Money{Cents: balance}})

	for i := 1; i <= horizonDays; i++ {
		day := today.AddDays(i)
		balance += future[day]
		for _, rule := range rules {
			if rule.FiresOn(day) {
				balance += rule.Amount.Cents
			}
		}
		points = append(points, ProjectionPoint{Date: day, Balance: Money{Cents: balance}})
	}

	return points, nil
}
