// Package services orchestrates the calculation core against storage,
// the message broker and the projection cache.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contas/internal/amqp"
	"contas/internal/cache"
	"contas/internal/core"
	"contas/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// EntryPublisher notifies the export worker about entry changes.
// *amqp.Client satisfies it; tests use a fake.
type EntryPublisher interface {
	PublishEntrySync(ctx context.Context, entryID, action string) error
}

// LedgerService owns ledger entry writes and the cash flow projection.
// Every write invalidates the projection cache.
type LedgerService struct {
	repo        *storage.SQLiteRepository
	publisher   EntryPublisher
	projections *cache.LRUCache[[]core.ProjectionPoint]
	horizonDays int
	inflight    singleflight.Group
}

func NewLedgerService(repo *storage.SQLiteRepository, publisher EntryPublisher, projections *cache.LRUCache[[]core.ProjectionPoint], horizonDays int) *LedgerService {
	return &LedgerService{
		repo:        repo,
		publisher:   publisher,
		projections: projections,
		horizonDays: horizonDays,
	}
}

// CreateEntry validates and saves a ledger entry, then publishes a sync
// message. A broker failure never fails the request; the entry is saved.
func (s *LedgerService) CreateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = core.StatusPaid
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: %s", core.ErrInvalidArgument, err)
	}

	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("save entry: %w", err)
	}

	s.invalidateProjections()
	s.publish(ctx, e.ID, amqp.ActionUpsert)
	return e, nil
}

func (s *LedgerService) GetEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *LedgerService) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	return s.repo.ListEntries(ctx)
}

func (s *LedgerService) UpdateEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: %s", core.ErrInvalidArgument, err)
	}
	if err := s.repo.UpdateEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update entry: %w", err)
	}

	s.invalidateProjections()
	s.publish(ctx, e.ID, amqp.ActionUpsert)
	return e, nil
}

func (s *LedgerService) DeleteEntry(ctx context.Context, id string) error {
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	s.invalidateProjections()
	s.publish(ctx, id, amqp.ActionDelete)
	return nil
}

// Projection returns the cash flow projection for the given horizon,
// serving repeated reads from the cache. A zero horizon falls back to
// the configured default.
func (s *LedgerService) Projection(ctx context.Context, today core.Date, horizonDays int) ([]core.ProjectionPoint, error) {
	if horizonDays == 0 {
		horizonDays = s.horizonDays
	}

	key := fmt.Sprintf("projection:%s:%d", today, horizonDays)
	if s.projections != nil {
		if points, ok := s.projections.Get(key); ok {
			return points, nil
		}
	}

	// Concurrent misses for the same key compute once.
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		entries, err := s.repo.ListEntries(ctx)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		rules, err := s.repo.ListActiveRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("list rules: %w", err)
		}

		points, err := core.ProjectCashFlow(entries, rules, today, horizonDays)
		if err != nil {
			return nil, err
		}

		if s.projections != nil {
			s.projections.Set(key, points)
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.ProjectionPoint), nil
}

func (s *LedgerService) invalidateProjections() {
	if s.projections != nil {
		s.projections.Purge()
	}
}

func (s *LedgerService) publish(ctx context.Context, entryID, action string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "No publisher available, skipping sync message", "entry_id", entryID)
		return
	}
	if err := s.publisher.PublishEntrySync(ctx, entryID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", entryID,
			"action", action,
			"error", err)
	}
}
