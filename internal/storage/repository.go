package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paisable/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored instants compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const transactionColumns = `seq, id, owner_id, name, category, cost_cents, occurred_on, is_income, is_deleted, created_at, updated_at`

// activeScope is the only place the soft-delete predicate is written.
const activeScope = `owner_id = ? AND is_deleted = 0`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateLedger(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Ledger schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		occurred, created, updated string
		isIncome, isDeleted        int
	)
	err := row.Scan(&t.Seq, &t.ID, &t.OwnerID, &t.Name, &t.Category, &t.Cost.Cents,
		&occurred, &isIncome, &isDeleted, &created, &updated)
	if err != nil {
		return core.Transaction{}, err
	}
	t.IsIncome = isIncome == 1
	t.IsDeleted = isDeleted == 1
	if t.OccurredOn, err = parseTime(occurred); err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_on: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, name, category, cost_cents, occurred_on, is_income, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Name, t.Category, t.Cost.Cents, formatTime(t.OccurredOn),
		boolInt(t.IsIncome), boolInt(t.IsDeleted), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Transaction{}, core.ErrConflict
	}
	if err != nil {
		return core.Transaction{}, core.WrapStore("create transaction", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, core.WrapStore("create transaction", err)
	}
	t.Seq = seq

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"cost_cents", t.Cost.Cents)

	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.WrapStore("get transaction", err)
	}
	return t, nil
}

// UpdateTransaction only touches rows that are still active, so a concurrent
// soft delete always wins.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET name = ?, category = ?, cost_cents = ?, occurred_on = ?, is_income = ?, updated_at = ?, sync_status = 'pending'
		WHERE id = ? AND is_deleted = 0`,
		t.Name, t.Category, t.Cost.Cents, formatTime(t.OccurredOn), boolInt(t.IsIncome), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return core.Transaction{}, core.WrapStore("update transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, core.WrapStore("update transaction", err)
	}
	if n == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return r.GetTransaction(ctx, t.ID)
}

func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1, updated_at = ?, sync_status = 'pending'
		WHERE id = ? AND is_deleted = 0`, formatTime(time.Now()), id)
	if err != nil {
		return core.WrapStore("soft delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or already deleted; only the former is an error.
		if _, err := r.GetTransaction(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// filterClause appends the optional filter predicates to the active scope.
func filterClause(ownerID string, f core.TransactionFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(activeScope)
	args := []any{ownerID}
	if f.IsIncome != nil {
		b.WriteString(` AND is_income = ?`)
		args = append(args, boolInt(*f.IsIncome))
	}
	if f.Category != "" {
		b.WriteString(` AND category = ?`)
		args = append(args, f.Category)
	}
	if !f.Start.IsZero() {
		b.WriteString(` AND occurred_on >= ?`)
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		b.WriteString(` AND occurred_on <= ?`)
		args = append(args, formatTime(f.End))
	}
	return b.String(), args
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter, p core.Page) ([]core.Transaction, int, error) {
	where, args := filterClause(ownerID, f)
	p = p.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, core.WrapStore("count transactions", err)
	}

	out, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+where+
			` ORDER BY occurred_on DESC, seq DESC LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, core.WrapStore("list transactions", err)
	}
	return out, total, nil
}

func (r *SQLiteRepository) ActiveTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := filterClause(ownerID, f)
	out, err := r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, core.WrapStore("active transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DistinctCategories(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM transactions WHERE owner_id = ? ORDER BY category`, ownerID)
	if err != nil {
		return nil, core.WrapStore("distinct categories", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, core.WrapStore("distinct categories", err)
		}
		out = append(out, c)
	}
	return out, core.WrapStore("distinct categories", rows.Err())
}

func (r *SQLiteRepository) ReassignCategory(ctx context.Context, ownerID, from, to string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET category = ?, updated_at = ?, sync_status = 'pending'
		WHERE owner_id = ? AND category = ?`, to, formatTime(time.Now()), ownerID, from)
	if err != nil {
		return 0, core.WrapStore("reassign category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapStore("reassign category", err)
	}
	slog.InfoContext(ctx, "Category reassigned", "owner_id", ownerID, "from", from, "to", to, "count", n)
	return n, nil
}

// LedgerVersion fingerprints the owner's rows: inserts move the count and
// max seq, every update or soft delete moves max updated_at.
func (r *SQLiteRepository) LedgerVersion(ctx context.Context, ownerID string) (string, error) {
	var (
		count   int64
		maxSeq  int64
		updated string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(seq), 0), COALESCE(MAX(updated_at), '')
		FROM transactions WHERE owner_id = ?`, ownerID).Scan(&count, &maxSeq, &updated)
	if err != nil {
		return "", core.WrapStore("ledger version", err)
	}
	return fmt.Sprintf("%d.%d.%s", count, maxSeq, updated), nil
}

// GetPendingSync returns up to limit transaction ids whose latest change has not
// been mirrored yet, oldest change first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY updated_at ASC, seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, core.WrapStore("pending sync", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.WrapStore("pending sync", err)
		}
		ids = append(ids, id)
	}
	return ids, core.WrapStore("pending sync", rows.Err())
}

// MarkSynced marks a transaction as mirrored. A row changed after the mirror
// read it keeps its pending status.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced', synced_at = ? WHERE id = ? AND updated_at = ?`,
		formatTime(time.Now()), id, formatTime(version))
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Transaction changed during sync, left pending", "id", id)
		return nil
	}
	slog.DebugContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction whose mirroring failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
