package services

import (
	"context"
	"testing"
	"time"

	"contas/internal/core"
)

func newStatementFixture(t *testing.T) (*StatementService, *LedgerService, core.CreditCard, core.Category, *fakePublisher) {
	t.Helper()
	ledger, repo, pub := newTestLedger(t)
	card := seedCard(t, repo)
	cat := seedCategory(t, repo)
	return NewStatementService(ledger, repo), ledger, card, cat, pub
}

func addCharge(t *testing.T, ledger *LedgerService, card core.CreditCard, cat core.Category, cents int64, date core.Date, status core.EntryStatus) core.LedgerEntry {
	t.Helper()
	e, err := ledger.CreateEntry(context.Background(), core.LedgerEntry{
		CategoryID:  cat.ID,
		CardID:      card.ID,
		Amount:      core.Money{Cents: cents},
		Date:        date,
		Description: "Compra",
		Status:      status,
	})
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	return e
}

func TestStatementAssemblesCycle(t *testing.T) {
	svc, ledger, card, cat, _ := newStatementFixture(t)
	ctx := context.Background()
	today := core.NewDate(2026, 3, 20)

	// Cycle containing Mar 20 runs Mar 6 .. Apr 5 for closing day 5.
	addCharge(t, ledger, card, cat, -12000, core.NewDate(2026, 3, 10), core.StatusPending)
	addCharge(t, ledger, card, cat, -8000, core.NewDate(2026, 3, 15), core.StatusPending)
	// Previous cycle, must not count toward the total.
	addCharge(t, ledger, card, cat, -99900, core.NewDate(2026, 3, 1), core.StatusPending)

	view, err := svc.Statement(ctx, card.ID, today)
	if err != nil {
		t.Fatalf("Statement() error = %v", err)
	}

	if view.Total.Cents != -20000 {
		t.Errorf("Total = %d, want -20000", view.Total.Cents)
	}
	if view.Status != core.StatementOpen {
		t.Errorf("Status = %s, want %s", view.Status, core.StatementOpen)
	}
	if got := view.Period.Start.String(); got != "2026-03-06" {
		t.Errorf("Period.Start = %s, want 2026-03-06", got)
	}
	if got := view.DueDate.String(); got != "2026-04-15" {
		t.Errorf("DueDate = %s, want 2026-04-15", got)
	}
	// All three pending charges consume the limit regardless of cycle.
	if view.AvailableCredit.Cents != 500000-119900 {
		t.Errorf("AvailableCredit = %d, want %d", view.AvailableCredit.Cents, 500000-119900)
	}
}

func TestPayInvoiceSettlesCycle(t *testing.T) {
	svc, ledger, card, cat, pub := newStatementFixture(t)
	ctx := context.Background()
	today := core.NewDate(2026, 3, 20)

	inCycle := addCharge(t, ledger, card, cat, -12000, core.NewDate(2026, 3, 10), core.StatusPending)
	outside := addCharge(t, ledger, card, cat, -5000, core.NewDate(2026, 3, 1), core.StatusPending)
	before := pub.count()

	total, err := svc.PayInvoice(ctx, card.ID, today)
	if err != nil {
		t.Fatalf("PayInvoice() error = %v", err)
	}
	if total.Cents != -12000 {
		t.Errorf("total = %d, want -12000", total.Cents)
	}

	got, err := ledger.GetEntry(ctx, inCycle.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Status != core.StatusPaid {
		t.Errorf("in-cycle entry status = %s, want PAID", got.Status)
	}

	got, err = ledger.GetEntry(ctx, outside.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Status != core.StatusPending {
		t.Errorf("outside entry status = %s, want PENDING", got.Status)
	}

	if pub.count() != before+1 {
		t.Errorf("publish count = %d, want %d (one settled entry)", pub.count(), before+1)
	}

	// Paying again settles nothing: all entries already PAID.
	total, err = svc.PayInvoice(ctx, card.ID, today)
	if err != nil {
		t.Fatalf("second PayInvoice() error = %v", err)
	}
	if total.Cents != -12000 {
		t.Errorf("second total = %d, want -12000", total.Cents)
	}

	view, err := svc.Statement(ctx, card.ID, today)
	if err != nil {
		t.Fatalf("Statement() error = %v", err)
	}
	if view.Status != core.StatementPaid {
		t.Errorf("status after payment = %s, want %s", view.Status, core.StatementPaid)
	}
}

func TestPayStatementSettlesNamedCycle(t *testing.T) {
	svc, ledger, card, cat, _ := newStatementFixture(t)
	ctx := context.Background()

	// Charge in the cycle closing Apr 5, plus one in the previous cycle.
	inCycle := addCharge(t, ledger, card, cat, -12000, core.NewDate(2026, 3, 10), core.StatusPending)
	outside := addCharge(t, ledger, card, cat, -5000, core.NewDate(2026, 3, 1), core.StatusPending)

	total, err := svc.PayStatement(ctx, card.ID, 2026, time.April)
	if err != nil {
		t.Fatalf("PayStatement() error = %v", err)
	}
	if total.Cents != -12000 {
		t.Errorf("total = %d, want -12000", total.Cents)
	}

	got, err := ledger.GetEntry(ctx, inCycle.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Status != core.StatusPaid {
		t.Errorf("named-cycle entry status = %s, want PAID", got.Status)
	}

	got, err = ledger.GetEntry(ctx, outside.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Status != core.StatusPending {
		t.Errorf("outside entry status = %s, want PENDING", got.Status)
	}
}

func TestFutureCyclesUsesCardRules(t *testing.T) {
	ledger, repo, _ := newTestLedger(t)
	svc := NewStatementService(ledger, repo)
	card := seedCard(t, repo)
	cat := seedCategory(t, repo)
	ctx := context.Background()

	rule := core.RecurringRule{
		ID:          "r1",
		CategoryID:  cat.ID,
		CardID:      card.ID,
		Amount:      core.Money{Cents: -4990},
		Description: "Streaming",
		Recurrence:  core.Recurrence{Every: core.Monthly, DayOfMonth: 10},
		Active:      true,
	}
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	// Rule on another card must not leak into this card's cycles.
	other := rule
	other.ID = "r2"
	other.CardID = "other-card"
	if err := repo.CreateRule(ctx, other); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	cycles, err := svc.FutureCycles(ctx, card.ID, core.NewDate(2026, 3, 20), 3)
	if err != nil {
		t.Fatalf("FutureCycles() error = %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("len(cycles) = %d, want 3", len(cycles))
	}
	for _, c := range cycles {
		if c.Total.Cents != -4990 {
			t.Errorf("cycle %s total = %d, want -4990", c.Label, c.Total.Cents)
		}
		if !c.Virtual {
			t.Errorf("cycle %s not marked virtual", c.Label)
		}
	}
}

func TestStatementUnknownCard(t *testing.T) {
	svc, _, _, _, _ := newStatementFixture(t)

	if _, err := svc.Statement(context.Background(), "ghost", core.NewDate(2026, 3, 20)); err == nil {
		t.Error("Statement() with unknown card should fail")
	}
}
