package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Entry statuses. PENDING entries are recorded but not yet settled;
	// on a credit card they consume the limit until the invoice is paid.
	StatusPaid    EntryStatus = "PAID"
	StatusPending EntryStatus = "PENDING"

	// Category types.
	CategoryIncome  CategoryType = "INCOME"
	CategoryExpense CategoryType = "EXPENSE"

	// Reserve transaction kinds.
	KindDeposit  TransactionKind = "DEPOSIT"
	KindWithdraw TransactionKind = "WITHDRAW"
)

type (
	EntryStatus     string
	CategoryType    string
	TransactionKind string

	// Date is a calendar date with no meaningful time component.
	// Constructors and the storage boundary normalize it to midnight UTC.
	Date struct {
		time.Time
	}

	// Money is an amount in integer minor units. Ledger amounts are signed:
	// negative is an outflow, positive an inflow. The sign convention is
	// load-bearing everywhere in this package.
	Money struct {
		Cents int64
	}

	Category struct {
		ID      string
		Name    string
		Type    CategoryType
		IsFixed bool
		Color   string
		Icon    string
	}

	// LedgerEntry is one recorded money movement.
	LedgerEntry struct {
		ID          string
		CategoryID  string
		CardID      string // empty when not a credit-card charge
		RuleID      string // set when materialized from a recurring rule
		Amount      Money
		Date        Date
		Description string
		Status      EntryStatus
		CreatedAt   time.Time
	}

	// RecurringRule describes a repeating money movement. It never moves
	// money itself; the projector and the materializer consult it.
	RecurringRule struct {
		ID          string
		CategoryID  string
		CardID      string
		Amount      Money
		Description string
		Recurrence  Recurrence
		Active      bool
		AutoCreate  bool
	}

	// ReserveTransaction is one immutable line of a reserve's history.
	ReserveTransaction struct {
		ID     string
		Date   time.Time
		Amount Money // always positive; Kind carries the direction
		Kind   TransactionKind
	}

	// Reserve is an earmarked sub-balance with a target and a deadline.
	// Current is only ever changed through an append to History.
	Reserve struct {
		ID       string
		Name     string
		Target   Money
		Current  Money
		Deadline Date
		History  []ReserveTransaction
	}

	// CreditCard holds the billing-cycle anchors for one card.
	// DueDay > ClosingDay is enforced at construction time.
	CreditCard struct {
		ID         string
		Name       string
		Limit      Money
		ClosingDay int
		DueDay     int
		Active     bool
		Color      string
		Icon       string
	}

	// ProjectionPoint is one day of a projected balance series.
	// Derived data only, never persisted.
	ProjectionPoint struct {
		Date    Date
		Balance Money
	}
)

var (
	// Error taxonomy of the calculation core. Callers match with errors.Is.
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrPreconditionViolated = errors.New("precondition violated")

	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidStatus    = errors.New("invalid status")
)

// NewDate creates a Date from year, month, day, normalized to midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf strips the time component from t.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysInMonth returns the number of days in d's month.
func (d Date) DaysInMonth() int {
	return time.Date(d.Year(), d.Time.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String formats the date as YYYY-MM-DD, the wire and storage format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsOutflow reports whether the amount leaves the account.
func (m Money) IsOutflow() bool {
	return m.Cents < 0
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (s EntryStatus) Validate() error {
	switch s {
	case StatusPaid, StatusPending:
		return nil
	}
	return ErrInvalidStatus
}

func (e LedgerEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if e.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return errors.New("missing category")
	}
	return e.Status.Validate()
}

func (r RecurringRule) Validate() error {
	if err := r.Recurrence.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if r.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.CategoryID) == "" {
		return errors.New("missing category")
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Limit.Cents <= 0 {
		return ErrInvalidAmount
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDay
	}
	if c.DueDay <= c.ClosingDay {
		return errors.New("due day must be after closing day")
	}
	return nil
}

func (r Reserve) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if r.Target.Cents <= 0 {
		return ErrInvalidAmount
	}
	return r.Deadline.Validate()
}

func (k TransactionKind) Validate() error {
	switch k {
	case KindDeposit, KindWithdraw:
		return nil
	}
	return errors.New("invalid transaction kind")
}
