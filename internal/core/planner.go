package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SavingsPlan is the contribution schedule needed to hit a reserve's target.
type SavingsPlan struct {
	Monthly         Money
	MonthsRemaining int
	Late            bool
}

// PlanContribution computes the monthly amount needed to move from current
// to target by the deadline. The month difference uses whole calendar
// months; the day of month is ignored. Rounding is always up, so following
// the plan every remaining month reaches the target on or before the
// deadline. A deadline in the past (or this month) makes the entire
// remainder due immediately.
func PlanContribution(target, current Money, deadline, today Date) SavingsPlan {
	months := (deadline.Year()-today.Year())*12 + (deadline.Month() - today.Month())
	remainder := target.Cents - current.Cents

	if months <= 0 {
		if remainder < 0 {
			remainder = 0
		}
		return SavingsPlan{Monthly: Money{Cents: remainder}, MonthsRemaining: 0, Late: true}
	}
	if remainder <= 0 {
		return SavingsPlan{Monthly: Money{}, MonthsRemaining: months, Late: false}
	}

	monthly := remainder / int64(months)
	if remainder%int64(months) != 0 {
		monthly++
	}
	return SavingsPlan{Monthly: Money{Cents: monthly}, MonthsRemaining: months, Late: false}
}

// Apply validates a deposit or withdrawal against the reserve and returns
// the updated reserve with the movement appended to its history. The input
// reserve is left untouched; on any error the caller's state is unchanged.
// Withdrawals never overdraw: there is no partial withdrawal.
func (r Reserve) Apply(amount Money, kind TransactionKind, now time.Time) (Reserve, error) {
	if amount.Cents <= 0 {
		return Reserve{}, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidArgument, amount.Cents)
	}
	if err := kind.Validate(); err != nil {
		return Reserve{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	updated := r
	switch kind {
	case KindDeposit:
		updated.Current = Money{Cents: r.Current.Cents + amount.Cents}
	case KindWithdraw:
		if amount.Cents > r.Current.Cents {
			return Reserve{}, fmt.Errorf("%w: withdraw %d exceeds balance %d",
				ErrInsufficientFunds, amount.Cents, r.Current.Cents)
		}
		updated.Current = Money{Cents: r.Current.Cents - amount.Cents}
	}

	updated.History = make([]ReserveTransaction, len(r.History), len(r.History)+1)
	copy(updated.History, r.History)
	updated.History = append(updated.History, ReserveTransaction{
		ID:     uuid.NewString(),
		Date:   now,
		Amount: amount,
		Kind:   kind,
	})

	return updated, nil
}

// HistorySum returns the signed sum of the reserve's history: deposits
// positive, withdrawals negative. A well-formed reserve has
// HistorySum == Current.
func (r Reserve) HistorySum() Money {
	var sum int64
	for _, tx := range r.History {
		switch tx.Kind {
		case KindDeposit:
			sum += tx.Amount.Cents
		case KindWithdraw:
			sum -= tx.Amount.Cents
		}
	}
	return Money{Cents: sum}
}
