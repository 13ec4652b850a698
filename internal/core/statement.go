package core

import (
	"fmt"
	"time"
)

const (
	StatementOpen    StatementStatus = "OPEN"
	StatementClosed  StatementStatus = "CLOSED"
	StatementOverdue StatementStatus = "OVERDUE"
	StatementPaid    StatementStatus = "PAID"
)

type (
	StatementStatus string

	// StatementPeriod is one billing cycle: the day after the previous
	// closing day through the closing day, inclusive on both ends.
	StatementPeriod struct {
		Start Date
		End   Date
	}

	// ProjectedStatement is a forward-looking cycle total computed from
	// recurring rules. The entries behind it do not exist yet; Virtual
	// keeps them distinguishable from real ledger data in any response.
	ProjectedStatement struct {
		Label   string // YYYY-MM of the cycle's closing month
		Period  StatementPeriod
		Total   Money
		Virtual bool
	}
)

// closingDate returns the card's closing date within the given month,
// clamped to the month's last day when ClosingDay overflows it. Clamping
// here (unlike in the recurrence matcher) keeps the cycle partition total:
// every calendar day belongs to exactly one cycle.
func (c CreditCard) closingDate(year int, month time.Month) Date {
	day := c.ClosingDay
	if last := NewDate(year, int(month), 1).DaysInMonth(); day > last {
		day = last
	}
	return NewDate(year, int(month), day)
}

// StatementPeriod returns the billing cycle that closes in the given month.
func (c CreditCard) StatementPeriod(year int, month time.Month) StatementPeriod {
	end := c.closingDate(year, month)
	prevYear, prevMonth := year, month-1
	if prevMonth < time.January {
		prevYear, prevMonth = year-1, time.December
	}
	return StatementPeriod{
		Start: c.closingDate(prevYear, prevMonth).AddDays(1),
		End:   end,
	}
}

// CurrentStatementPeriod returns the cycle that today falls inside.
func (c CreditCard) CurrentStatementPeriod(today Date) StatementPeriod {
	period := c.StatementPeriod(today.Year(), today.Time.Month())
	if today.After(period.End) {
		period = c.nextPeriod(period)
	}
	return period
}

// nextPeriod returns the cycle closing in the month after p's.
func (c CreditCard) nextPeriod(p StatementPeriod) StatementPeriod {
	year, month := p.End.Year(), p.End.Time.Month()
	if month == time.December {
		return c.StatementPeriod(year+1, time.January)
	}
	return c.StatementPeriod(year, month+1)
}

// Contains reports whether the date falls inside the cycle.
func (p StatementPeriod) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// DueDate returns the payment due date for the cycle: the card's due day in
// the cycle's closing month, clamped to that month's last day so the due
// date never slips into the next month. DueDay > ClosingDay keeps it on or
// after the close.
func (c CreditCard) DueDate(p StatementPeriod) Date {
	day := c.DueDay
	if last := p.End.DaysInMonth(); day > last {
		day = last
	}
	return NewDate(p.End.Year(), p.End.Month(), day)
}

// StatementStatus computes the cycle's state as of today. A paid cycle is
// PAID regardless of date; otherwise it is OPEN until the closing day,
// CLOSED until the due date, and OVERDUE after.
func (c CreditCard) StatementStatus(p StatementPeriod, today Date, paid bool) StatementStatus {
	if paid {
		return StatementPaid
	}
	if !today.After(p.End) {
		return StatementOpen
	}
	if !today.After(c.DueDate(p)) {
		return StatementClosed
	}
	return StatementOverdue
}

// AvailableCredit returns the card's limit minus everything currently
// charged and unpaid. Only PENDING entries consume the limit; a PAID entry
// has already left the account and no longer reduces availability.
func AvailableCredit(card CreditCard, ledger []LedgerEntry) Money {
	available := card.Limit.Cents
	for _, e := range ledger {
		if e.CardID == card.ID && e.Status == StatusPending {
			available -= e.Amount.Abs().Cents
		}
	}
	return Money{Cents: available}
}

// PayInvoice flips every PENDING entry of the card inside the cycle to PAID
// and returns a new ledger snapshot plus the signed total of the cycle's
// entries for display. The flip is all-or-nothing over the cycle; there is
// no partial payment. Paying an already-paid cycle flips nothing and is not
// an error.
func PayInvoice(card CreditCard, period StatementPeriod, ledger []LedgerEntry) ([]LedgerEntry, Money, error) {
	if err := checkCycleAnchors(card); err != nil {
		return nil, Money{}, err
	}

	updated := make([]LedgerEntry, len(ledger))
	copy(updated, ledger)

	var total int64
	for i := range updated {
		e := &updated[i]
		if e.CardID != card.ID || !period.Contains(DateOf(e.Date.Time)) {
			continue
		}
		total += e.Amount.Cents
		if e.Status == StatusPending {
			e.Status = StatusPaid
		}
	}

	return updated, Money{Cents: total}, nil
}

// ProjectFutureCycles sums, for each of the next cyclesAhead cycles after
// the one containing from, the active recurring rules charged to the card.
// The totals are virtual: no ledger entry backs them yet.
func ProjectFutureCycles(card CreditCard, rules []RecurringRule, from Date, cyclesAhead int) ([]ProjectedStatement, error) {
	if cyclesAhead < 0 {
		return nil, fmt.Errorf("%w: cycles ahead must be >= 0, got %d", ErrInvalidArgument, cyclesAhead)
	}
	if err := checkCycleAnchors(card); err != nil {
		return nil, err
	}

	projected := make([]ProjectedStatement, 0, cyclesAhead)
	period := card.CurrentStatementPeriod(DateOf(from.Time))
	for i := 0; i < cyclesAhead; i++ {
		period = card.nextPeriod(period)

		var total int64
		for day := period.Start; !day.After(period.End); day = day.AddDays(1) {
			for _, rule := range rules {
				if rule.CardID == card.ID && rule.FiresOn(day) {
					total += rule.Amount.Cents
				}
			}
		}

		projected = append(projected, ProjectedStatement{
			Label:   period.End.Format("2006-01"),
			Period:  period,
			Total:   Money{Cents: total},
			Virtual: true,
		})
	}

	return projected, nil
}

// checkCycleAnchors guards the engine against a card that slipped past the
// boundary validator. A failure here is a bug in the calling layer.
func checkCycleAnchors(card CreditCard) error {
	if card.ClosingDay < 1 || card.ClosingDay > 31 || card.DueDay < 1 || card.DueDay > 31 {
		return fmt.Errorf("%w: cycle days out of range on card %s", ErrPreconditionViolated, card.ID)
	}
	if card.DueDay <= card.ClosingDay {
		return fmt.Errorf("%w: due day %d not after closing day %d on card %s",
			ErrPreconditionViolated, card.DueDay, card.ClosingDay, card.ID)
	}
	return nil
}
