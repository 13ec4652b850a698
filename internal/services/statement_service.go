package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/storage"
)

// StatementView is the assembled picture of one card cycle.
type StatementView struct {
	Card            core.CreditCard
	Period          core.StatementPeriod
	Total           core.Money
	Status          core.StatementStatus
	DueDate         core.Date
	AvailableCredit core.Money
}

// StatementService assembles card statements and settles invoices.
type StatementService struct {
	ledger *LedgerService
	repo   *storage.SQLiteRepository
}

func NewStatementService(ledger *LedgerService, repo *storage.SQLiteRepository) *StatementService {
	return &StatementService{ledger: ledger, repo: repo}
}

// Statement returns the card's cycle containing today.
func (s *StatementService) Statement(ctx context.Context, cardID string, today core.Date) (StatementView, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return StatementView{}, err
	}

	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return StatementView{}, fmt.Errorf("list entries: %w", err)
	}

	period := card.CurrentStatementPeriod(today)
	var total core.Money
	inCycle := 0
	pending := 0
	for _, e := range entries {
		if e.CardID != card.ID || !period.Contains(e.Date) {
			continue
		}
		inCycle++
		total.Cents += e.Amount.Cents
		if e.Status == core.StatusPending {
			pending++
		}
	}
	// An empty cycle has nothing settled, so it never reads as paid.
	paid := inCycle > 0 && pending == 0

	return StatementView{
		Card:            card,
		Period:          period,
		Total:           total,
		Status:          card.StatementStatus(period, today, paid),
		DueDate:         card.DueDate(period),
		AvailableCredit: core.AvailableCredit(card, entries),
	}, nil
}

// PayInvoice settles every pending entry of the cycle containing today.
// The status flips are computed by the core and persisted atomically;
// each settled entry is re-published for the export mirror.
func (s *StatementService) PayInvoice(ctx context.Context, cardID string, today core.Date) (core.Money, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return core.Money{}, err
	}
	return s.settle(ctx, card, card.CurrentStatementPeriod(today))
}

// PayStatement settles the cycle that closes in the given month, so a
// just-closed statement can be paid without back-dating the request.
func (s *StatementService) PayStatement(ctx context.Context, cardID string, year int, month time.Month) (core.Money, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return core.Money{}, err
	}
	return s.settle(ctx, card, card.StatementPeriod(year, month))
}

func (s *StatementService) settle(ctx context.Context, card core.CreditCard, period core.StatementPeriod) (core.Money, error) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return core.Money{}, fmt.Errorf("list entries: %w", err)
	}

	updated, total, err := core.PayInvoice(card, period, entries)
	if err != nil {
		return core.Money{}, err
	}

	var settled []string
	for i := range updated {
		if updated[i].Status != entries[i].Status {
			settled = append(settled, updated[i].ID)
		}
	}

	if err := s.repo.MarkEntriesPaid(ctx, settled); err != nil {
		return core.Money{}, fmt.Errorf("persist payment: %w", err)
	}

	s.ledger.invalidateProjections()
	for _, id := range settled {
		s.ledger.publish(ctx, id, amqp.ActionUpsert)
	}

	slog.InfoContext(ctx, "Invoice paid",
		"card_id", card.ID,
		"cycle_start", period.Start.String(),
		"cycle_end", period.End.String(),
		"total_cents", total.Cents,
		"settled", len(settled))
	return total, nil
}

// FutureCycles projects upcoming statement totals from the active rules
// bound to the card.
func (s *StatementService) FutureCycles(ctx context.Context, cardID string, from core.Date, cyclesAhead int) ([]core.ProjectedStatement, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	rules, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	return core.ProjectFutureCycles(card, rules, from, cyclesAhead)
}
