// Package worker consumes entry sync messages and mirrors the ledger to
// the configured export backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/export"
	"contas/internal/storage"
)

// Repository is the slice of storage the worker needs.
type Repository interface {
	GetEntry(ctx context.Context, id string) (core.LedgerEntry, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// SyncWorker mirrors ledger entries from SQLite to the export backend.
// The database row is always re-read on delivery, so replayed or
// out-of-order messages converge on the current state.
type SyncWorker struct {
	repo    Repository
	writer  export.EntryWriter
	deleter export.EntryDeleter
}

func NewSyncWorker(repo Repository, writer export.EntryWriter, deleter export.EntryDeleter) *SyncWorker {
	return &SyncWorker{
		repo:    repo,
		writer:  writer,
		deleter: deleter,
	}
}

// HandleMessage processes one entry sync message.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	switch msg.Action {
	case amqp.ActionUpsert:
		return w.handleUpsert(ctx, msg.EntryID)
	case amqp.ActionDelete:
		return w.handleDelete(ctx, msg.EntryID)
	default:
		slog.WarnContext(ctx, "Unknown sync action, dropping message",
			"entry_id", msg.EntryID,
			"action", msg.Action)
		return nil
	}
}

func (w *SyncWorker) handleUpsert(ctx context.Context, entryID string) error {
	entry, err := w.repo.GetEntry(ctx, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted between publish and delivery. The delete message for it
		// is either already processed or still in the queue.
		slog.InfoContext(ctx, "Entry vanished before sync, skipping", "entry_id", entryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}

	categoryName, err := w.categoryName(ctx, entry.CategoryID)
	if err != nil {
		return err
	}

	// Remove a previous mirror row first so an update does not duplicate.
	if w.deleter != nil {
		if err := w.deleter.Delete(ctx, entryID); err != nil {
			return fmt.Errorf("remove stale mirror row: %w", err)
		}
	}

	ref, err := w.writer.Append(ctx, entry, categoryName)
	if err != nil {
		return fmt.Errorf("append entry to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Entry mirrored",
		"entry_id", entryID,
		"row_ref", ref,
		"amount_cents", entry.Amount.Cents)
	return nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, entryID string) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No deleter configured, skipping mirror deletion", "entry_id", entryID)
		return nil
	}
	if err := w.deleter.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("delete entry from mirror: %w", err)
	}
	slog.InfoContext(ctx, "Entry removed from mirror", "entry_id", entryID)
	return nil
}

func (w *SyncWorker) categoryName(ctx context.Context, categoryID string) (string, error) {
	categories, err := w.repo.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	for _, c := range categories {
		if c.ID == categoryID {
			return c.Name, nil
		}
	}
	return "", nil
}
