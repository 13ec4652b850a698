package services

import (
	"context"
	"fmt"
	"log/slog"

	"contas/internal/core"
	"contas/internal/storage"
)

// RecurringProcessor materializes ledger entries from recurring rules that
// are marked for automatic creation.
type RecurringProcessor struct {
	repo   *storage.SQLiteRepository
	ledger *LedgerService
}

func NewRecurringProcessor(repo *storage.SQLiteRepository, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{repo: repo, ledger: ledger}
}

// ProcessDueRules creates an entry for every active auto-create rule whose
// pattern fires today and that has not fired yet this month. Created
// entries start PENDING; the owner settles them like any other charge.
func (p *RecurringProcessor) ProcessDueRules(ctx context.Context, today core.Date) (int, error) {
	if p.repo == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	rules, err := p.repo.ListActiveRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total_active", len(rules),
		"processing_date", today.String())

	processed := 0
	for _, rule := range rules {
		if !rule.AutoCreate || !rule.FiresOn(today) {
			continue
		}

		lastExecution, err := p.repo.RuleLastExecution(ctx, rule.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read last execution",
				"rule_id", rule.ID,
				"error", err)
			continue
		}
		if firedThisMonth(lastExecution, today) {
			continue
		}

		entry := core.LedgerEntry{
			CategoryID:  rule.CategoryID,
			CardID:      rule.CardID,
			RuleID:      rule.ID,
			Amount:      rule.Amount,
			Date:        today,
			Description: fmt.Sprintf("%s (Auto)", rule.Description),
			Status:      core.StatusPending,
		}

		created, err := p.ledger.CreateEntry(ctx, entry)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create entry from rule",
				"rule_id", rule.ID,
				"description", rule.Description,
				"error", err)
			continue
		}

		if err := p.repo.SetRuleLastExecution(ctx, rule.ID, today); err != nil {
			slog.ErrorContext(ctx, "Failed to update last execution",
				"rule_id", rule.ID,
				"error", err)
			// The entry exists; next run will see the stale marker and could
			// duplicate, which the owner can delete. Better than losing it.
		}

		processed++
		slog.InfoContext(ctx, "Created entry from recurring rule",
			"rule_id", rule.ID,
			"entry_id", created.ID,
			"amount_cents", rule.Amount.Cents)
	}

	slog.InfoContext(ctx, "Recurring rule processing complete",
		"processed", processed,
		"total_checked", len(rules))
	return processed, nil
}

// firedThisMonth reports whether the rule already materialized an entry in
// today's month. One entry per rule per month, even if the worker reruns.
func firedThisMonth(lastExecution, today core.Date) bool {
	if lastExecution.IsZero() {
		return false
	}
	return lastExecution.Year() == today.Year() && lastExecution.Month() == today.Month()
}
