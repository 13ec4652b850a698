package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateHelpers(t *testing.T) {
	d := NewDate(2026, 2, 28)
	if d.Day() != 28 || d.Month() != 2 || d.Year() != 2026 {
		t.Errorf("unexpected parts: %d-%d-%d", d.Year(), d.Month(), d.Day())
	}
	if d.AddDays(1) != NewDate(2026, 3, 1) {
		t.Error("AddDays should roll over the month")
	}
	if NewDate(2026, 4, 1).DaysInMonth() != 30 {
		t.Error("April has 30 days")
	}
	if NewDate(2028, 2, 1).DaysInMonth() != 29 {
		t.Error("leap February has 29 days")
	}
	if got := DateOf(time.Date(2026, 3, 5, 17, 42, 3, 0, time.UTC)); got != NewDate(2026, 3, 5) {
		t.Errorf("DateOf should strip time, got %v", got)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2026-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2026-03-05" {
		t.Errorf("round trip = %s", d.String())
	}
	if _, err := ParseDate("05/03/2026"); err == nil {
		t.Error("wrong format should fail")
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	valid := LedgerEntry{
		ID:          "e1",
		CategoryID:  "cat",
		Amount:      Money{Cents: -1500},
		Date:        NewDate(2026, 3, 1),
		Description: "groceries",
		Status:      StatusPaid,
	}

	tests := []struct {
		name    string
		mutate  func(*LedgerEntry)
		wantErr error
	}{
		{"valid entry", func(e *LedgerEntry) {}, nil},
		{"zero amount", func(e *LedgerEntry) { e.Amount = Money{} }, ErrInvalidAmount},
		{"empty description", func(e *LedgerEntry) { e.Description = "  " }, ErrEmptyDescription},
		{"bad status", func(e *LedgerEntry) { e.Status = "SETTLED" }, ErrInvalidStatus},
		{"zero date", func(e *LedgerEntry) { e.Date = Date{} }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			if tt.name == "valid entry" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreditCardValidate(t *testing.T) {
	valid := CreditCard{Name: "Main", Limit: Money{Cents: 500000}, ClosingDay: 5, DueDay: 15, Active: true}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreditCard)
	}{
		{"empty name", func(c *CreditCard) { c.Name = "" }},
		{"zero limit", func(c *CreditCard) { c.Limit = Money{} }},
		{"closing day out of range", func(c *CreditCard) { c.ClosingDay = 0 }},
		{"due day out of range", func(c *CreditCard) { c.DueDay = 32 }},
		{"due day equals closing day", func(c *CreditCard) { c.DueDay = c.ClosingDay }},
		{"due day before closing day", func(c *CreditCard) { c.DueDay = c.ClosingDay - 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if c.Validate() == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	valid := RecurringRule{
		ID:          "r1",
		CategoryID:  "cat",
		Amount:      Money{Cents: -150000},
		Description: "rent",
		Recurrence:  Recurrence{Every: Monthly, DayOfMonth: 5},
		Active:      true,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := valid
	bad.Recurrence.DayOfMonth = 0
	if bad.Validate() == nil {
		t.Error("day 0 should be rejected")
	}

	bad = valid
	bad.Amount = Money{}
	if !errors.Is(bad.Validate(), ErrInvalidAmount) {
		t.Error("zero amount should be rejected")
	}
}

func TestReserveValidate(t *testing.T) {
	valid := Reserve{ID: "r1", Name: "Trip", Target: Money{Cents: 100000}, Deadline: NewDate(2027, 1, 1)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := valid
	bad.Target = Money{Cents: 0}
	if bad.Validate() == nil {
		t.Error("zero target should be rejected")
	}
}
