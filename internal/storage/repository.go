// Package storage persists the ledger, rules, cards and reserves in SQLite.
// It is the only layer that touches SQL; everything above it works on
// core types. The two mutating primitives of the system, invoice payment
// and reserve transactions, are applied here as single transactions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contas/internal/core"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Writes briefly lock the whole database; a single pooled connection
	// plus a busy timeout keeps concurrent requests queueing instead of
	// surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, type, is_fixed, color, icon) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), boolToInt(c.IsFixed), c.Color, c.Icon)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, is_fixed, color, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var catType string
		var isFixed int
		if err := rows.Scan(&c.ID, &c.Name, &catType, &isFixed, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(catType)
		c.IsFixed = isFixed != 0
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, is_fixed = ?, color = ?, icon = ? WHERE id = ?`,
		c.Name, string(c.Type), boolToInt(c.IsFixed), c.Color, c.Icon, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res, "category", c.ID)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res, "category", id)
}

// Ledger entries

func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.LedgerEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, category_id, card_id, rule_id, amount_cents, entry_date, description, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CategoryID, nullable(e.CardID), nullable(e.RuleID), e.Amount.Cents,
		e.Date.String(), e.Description, string(e.Status), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry saved",
		"entry_id", e.ID,
		"amount_cents", e.Amount.Cents,
		"entry_date", e.Date.String(),
		"entry_status", string(e.Status))
	return nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, category_id, card_id, rule_id, amount_cents, entry_date, description, status, created_at
		 FROM ledger_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the full ledger snapshot ordered by date descending,
// the shape the calculation core consumes.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, card_id, rule_id, amount_cents, entry_date, description, status, created_at
		 FROM ledger_entries ORDER BY entry_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.LedgerEntry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_entries SET category_id = ?, card_id = ?, amount_cents = ?, entry_date = ?, description = ?, status = ?
		 WHERE id = ?`,
		e.CategoryID, nullable(e.CardID), e.Amount.Cents, e.Date.String(), e.Description, string(e.Status), e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return requireRow(res, "entry", e.ID)
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return requireRow(res, "entry", id)
}

// MarkEntriesPaid flips the given entries to PAID in a single transaction.
// This is the persistence half of invoice payment: either the whole cycle
// settles or none of it does.
func (r *SQLiteRepository) MarkEntriesPaid(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE ledger_entries SET status = ? WHERE id = ?`, string(core.StatusPaid), id); err != nil {
			return fmt.Errorf("mark entry %s paid: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}

	slog.InfoContext(ctx, "Invoice entries settled", "count", len(ids))
	return nil
}

// Recurring rules

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_rules (id, category_id, card_id, amount_cents, description, rrule, active, auto_create)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.CategoryID, nullable(rule.CardID), rule.Amount.Cents,
		rule.Description, rule.Recurrence.Token(), boolToInt(rule.Active), boolToInt(rule.AutoCreate))
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	return r.listRules(ctx,
		`SELECT id, category_id, card_id, amount_cents, description, rrule, active, auto_create
		 FROM recurring_rules ORDER BY description`)
}

// ListActiveRules returns the rules the projector consumes.
func (r *SQLiteRepository) ListActiveRules(ctx context.Context) ([]core.RecurringRule, error) {
	return r.listRules(ctx,
		`SELECT id, category_id, card_id, amount_cents, description, rrule, active, auto_create
		 FROM recurring_rules WHERE active = 1 ORDER BY description`)
}

func (r *SQLiteRepository) listRules(ctx context.Context, query string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []core.RecurringRule
	for rows.Next() {
		var rule core.RecurringRule
		var cardID sql.NullString
		var token string
		var active, autoCreate int
		if err := rows.Scan(&rule.ID, &rule.CategoryID, &cardID, &rule.Amount.Cents,
			&rule.Description, &token, &active, &autoCreate); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule.CardID = cardID.String
		rule.Active = active != 0
		rule.AutoCreate = autoCreate != 0
		// The pattern is parsed once here; past this boundary only the
		// tagged form exists.
		rule.Recurrence, err = core.ParseRecurrence(token)
		if err != nil {
			return nil, fmt.Errorf("rule %s has bad pattern %q: %w", rule.ID, token, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET category_id = ?, card_id = ?, amount_cents = ?, description = ?, rrule = ?, active = ?, auto_create = ?
		 WHERE id = ?`,
		rule.CategoryID, nullable(rule.CardID), rule.Amount.Cents, rule.Description,
		rule.Recurrence.Token(), boolToInt(rule.Active), boolToInt(rule.AutoCreate), rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireRow(res, "rule", rule.ID)
}

// RuleLastExecution returns the date a rule last materialized an entry, or
// the zero date if it never has.
func (r *SQLiteRepository) RuleLastExecution(ctx context.Context, id string) (core.Date, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT last_execution FROM recurring_rules WHERE id = ?`, id).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Date{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Date{}, fmt.Errorf("get rule last execution: %w", err)
	}
	if !last.Valid || last.String == "" {
		return core.Date{}, nil
	}
	date, err := core.ParseDate(last.String)
	if err != nil {
		return core.Date{}, fmt.Errorf("rule %s has bad last execution %q: %w", id, last.String, err)
	}
	return date, nil
}

func (r *SQLiteRepository) SetRuleLastExecution(ctx context.Context, id string, date core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_rules SET last_execution = ? WHERE id = ?`, date.String(), id)
	if err != nil {
		return fmt.Errorf("set rule last execution: %w", err)
	}
	return requireRow(res, "rule", id)
}

// Credit cards

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.CreditCard) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credit_cards (id, name, limit_cents, closing_day, due_day, active, color, icon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, boolToInt(c.Active), c.Color, c.Icon)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, limit_cents, closing_day, due_day, active, color, icon
		 FROM credit_cards WHERE id = ?`, id)
	var c core.CreditCard
	var active int
	err := row.Scan(&c.ID, &c.Name, &c.Limit.Cents, &c.ClosingDay, &c.DueDay, &active, &c.Color, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditCard{}, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get card: %w", err)
	}
	c.Active = active != 0
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, limit_cents, closing_day, due_day, active, color, icon
		 FROM credit_cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []core.CreditCard
	for rows.Next() {
		var c core.CreditCard
		var active int
		if err := rows.Scan(&c.ID, &c.Name, &c.Limit.Cents, &c.ClosingDay, &c.DueDay, &active, &c.Color, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.Active = active != 0
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// Reserves

func (r *SQLiteRepository) CreateReserve(ctx context.Context, res core.Reserve) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reserves (id, name, target_cents, current_cents, deadline) VALUES (?, ?, ?, ?, ?)`,
		res.ID, res.Name, res.Target.Cents, res.Current.Cents, res.Deadline.String())
	if err != nil {
		return fmt.Errorf("create reserve: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetReserve(ctx context.Context, id string) (core.Reserve, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, target_cents, current_cents, deadline FROM reserves WHERE id = ?`, id)
	res, err := scanReserve(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Reserve{}, fmt.Errorf("reserve %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Reserve{}, fmt.Errorf("get reserve: %w", err)
	}

	res.History, err = r.reserveHistory(ctx, id)
	if err != nil {
		return core.Reserve{}, err
	}
	return res, nil
}

func (r *SQLiteRepository) ListReserves(ctx context.Context) ([]core.Reserve, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_cents, current_cents, deadline FROM reserves ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list reserves: %w", err)
	}
	defer rows.Close()

	var reserves []core.Reserve
	for rows.Next() {
		res, err := scanReserve(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reserve: %w", err)
		}
		reserves = append(reserves, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reserves {
		reserves[i].History, err = r.reserveHistory(ctx, reserves[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return reserves, nil
}

func (r *SQLiteRepository) UpdateReserve(ctx context.Context, res core.Reserve) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reserves SET name = ?, target_cents = ?, deadline = ? WHERE id = ?`,
		res.Name, res.Target.Cents, res.Deadline.String(), res.ID)
	if err != nil {
		return fmt.Errorf("update reserve: %w", err)
	}
	return requireRow(result, "reserve", res.ID)
}

func (r *SQLiteRepository) DeleteReserve(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reserves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reserve: %w", err)
	}
	return requireRow(res, "reserve", id)
}

// SaveReserveTransaction persists the result of a reserve mutation: the new
// balance and the appended history line land in one transaction so a crash
// between them cannot break the current == sum(history) invariant. The
// balance update is relative to the stored value, not the caller's
// snapshot, so two interleaved transactions both count.
func (r *SQLiteRepository) SaveReserveTransaction(ctx context.Context, reserve core.Reserve, entry core.ReserveTransaction) error {
	delta := entry.Amount.Cents
	if entry.Kind == core.KindWithdraw {
		delta = -delta
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE reserves SET current_cents = current_cents + ? WHERE id = ? AND current_cents + ? >= 0`,
		delta, reserve.ID, delta)
	if err != nil {
		return fmt.Errorf("update reserve balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reserve balance: %w", err)
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reserves WHERE id = ?`, reserve.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check reserve: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("reserve %s: %w", reserve.ID, ErrNotFound)
		}
		return fmt.Errorf("withdraw %d on reserve %s: %w",
			entry.Amount.Cents, reserve.ID, core.ErrInsufficientFunds)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reserve_history (id, reserve_id, tx_date, amount_cents, kind) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, reserve.ID, entry.Date.UTC().Format(time.RFC3339), entry.Amount.Cents, string(entry.Kind)); err != nil {
		return fmt.Errorf("append reserve history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve transaction: %w", err)
	}

	slog.InfoContext(ctx, "Reserve transaction saved",
		"reserve_id", reserve.ID,
		"amount_cents", entry.Amount.Cents,
		"kind", string(entry.Kind),
		"delta_cents", delta)
	return nil
}

func (r *SQLiteRepository) reserveHistory(ctx context.Context, reserveID string) ([]core.ReserveTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tx_date, amount_cents, kind FROM reserve_history WHERE reserve_id = ? ORDER BY tx_date`, reserveID)
	if err != nil {
		return nil, fmt.Errorf("list reserve history: %w", err)
	}
	defer rows.Close()

	var history []core.ReserveTransaction
	for rows.Next() {
		var tx core.ReserveTransaction
		var date, kind string
		if err := rows.Scan(&tx.ID, &date, &tx.Amount.Cents, &kind); err != nil {
			return nil, fmt.Errorf("scan reserve history: %w", err)
		}
		tx.Kind = core.TransactionKind(kind)
		tx.Date, err = time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, fmt.Errorf("parse history date %q: %w", date, err)
		}
		history = append(history, tx)
	}
	return history, rows.Err()
}

// helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.LedgerEntry, error) {
	var e core.LedgerEntry
	var cardID, ruleID sql.NullString
	var date, status, createdAt string
	if err := row.Scan(&e.ID, &e.CategoryID, &cardID, &ruleID, &e.Amount.Cents,
		&date, &e.Description, &status, &createdAt); err != nil {
		return core.LedgerEntry{}, err
	}
	e.CardID = cardID.String
	e.RuleID = ruleID.String
	e.Status = core.EntryStatus(status)

	var err error
	e.Date, err = core.ParseDate(date)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse entry date %q: %w", date, err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return e, nil
}

func scanReserve(row rowScanner) (core.Reserve, error) {
	var res core.Reserve
	var deadline string
	if err := row.Scan(&res.ID, &res.Name, &res.Target.Cents, &res.Current.Cents, &deadline); err != nil {
		return core.Reserve{}, err
	}
	var err error
	res.Deadline, err = core.ParseDate(deadline)
	if err != nil {
		return core.Reserve{}, fmt.Errorf("parse deadline %q: %w", deadline, err)
	}
	return res, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
