package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contas/internal/core"
	"contas/internal/storage"

	"github.com/google/uuid"
)

// ReserveService owns savings reserves: transactions against them and the
// contribution plan toward their targets.
type ReserveService struct {
	repo *storage.SQLiteRepository
}

func NewReserveService(repo *storage.SQLiteRepository) *ReserveService {
	return &ReserveService{repo: repo}
}

func (s *ReserveService) CreateReserve(ctx context.Context, r core.Reserve) (core.Reserve, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := r.Validate(); err != nil {
		return core.Reserve{}, fmt.Errorf("%w: %s", core.ErrInvalidArgument, err)
	}
	if err := s.repo.CreateReserve(ctx, r); err != nil {
		return core.Reserve{}, fmt.Errorf("save reserve: %w", err)
	}
	return r, nil
}

func (s *ReserveService) GetReserve(ctx context.Context, id string) (core.Reserve, error) {
	return s.repo.GetReserve(ctx, id)
}

func (s *ReserveService) ListReserves(ctx context.Context) ([]core.Reserve, error) {
	return s.repo.ListReserves(ctx)
}

func (s *ReserveService) UpdateReserve(ctx context.Context, r core.Reserve) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidArgument, err)
	}
	return s.repo.UpdateReserve(ctx, r)
}

func (s *ReserveService) DeleteReserve(ctx context.Context, id string) error {
	return s.repo.DeleteReserve(ctx, id)
}

// ApplyTransaction runs a deposit or withdrawal through the core rules and
// persists the new balance together with its history line.
func (s *ReserveService) ApplyTransaction(ctx context.Context, reserveID string, amount core.Money, kind core.TransactionKind) (core.Reserve, error) {
	reserve, err := s.repo.GetReserve(ctx, reserveID)
	if err != nil {
		return core.Reserve{}, err
	}

	updated, err := reserve.Apply(amount, kind, time.Now().UTC())
	if err != nil {
		return core.Reserve{}, err
	}

	entry := updated.History[len(updated.History)-1]
	if err := s.repo.SaveReserveTransaction(ctx, updated, entry); err != nil {
		return core.Reserve{}, fmt.Errorf("persist transaction: %w", err)
	}

	slog.InfoContext(ctx, "Reserve transaction applied",
		"reserve_id", reserveID,
		"kind", string(kind),
		"amount_cents", amount.Cents,
		"balance_cents", updated.Current.Cents)
	return updated, nil
}

// Plan computes the monthly contribution needed to reach the reserve's
// target by its deadline.
func (s *ReserveService) Plan(ctx context.Context, reserveID string, today core.Date) (core.SavingsPlan, error) {
	reserve, err := s.repo.GetReserve(ctx, reserveID)
	if err != nil {
		return core.SavingsPlan{}, err
	}
	return core.PlanContribution(reserve.Target, reserve.Current, reserve.Deadline, today), nil
}
