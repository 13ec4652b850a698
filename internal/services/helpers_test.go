package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"contas/internal/cache"
	"contas/internal/core"
	"contas/internal/storage"

	"github.com/google/uuid"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePublisher) PublishEntrySync(_ context.Context, entryID, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, action+":"+entryID)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "contas_test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestLedger(t *testing.T) (*LedgerService, *storage.SQLiteRepository, *fakePublisher) {
	t.Helper()
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	projections := cache.NewLRUCache[[]core.ProjectionPoint](16, time.Minute)
	return NewLedgerService(repo, pub, projections, 90), repo, pub
}

func seedCategory(t *testing.T, repo *storage.SQLiteRepository) core.Category {
	t.Helper()
	cat := core.Category{ID: uuid.NewString(), Name: "Moradia", Type: core.CategoryExpense}
	if err := repo.CreateCategory(context.Background(), cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	return cat
}

func seedCard(t *testing.T, repo *storage.SQLiteRepository) core.CreditCard {
	t.Helper()
	card := core.CreditCard{
		ID:         uuid.NewString(),
		Name:       "Nubank",
		Limit:      core.Money{Cents: 500000},
		ClosingDay: 5,
		DueDay:     15,
		Active:     true,
	}
	if err := repo.CreateCard(context.Background(), card); err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	return card
}
