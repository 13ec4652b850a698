package export

import (
	"context"

	"contas/internal/core"
)

// Ports for outbound ledger mirrors.
type (
	// EntryWriter appends one ledger entry to the mirror.
	EntryWriter interface {
		Append(ctx context.Context, e core.LedgerEntry, categoryName string) (rowRef string, err error)
	}

	// EntryDeleter removes a previously mirrored entry by its ledger ID.
	EntryDeleter interface {
		Delete(ctx context.Context, entryID string) error
	}
)
