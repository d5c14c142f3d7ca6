package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paisable/internal/core"
)

const receiptColumns = `id, owner_id, file_url, merchant, amount_cents, category, receipt_date, is_income, transaction_id, created_at, updated_at`

func scanReceipt(row rowScanner) (core.Receipt, error) {
	var (
		rc                     core.Receipt
		date, created, updated string
		isIncome               int
		txID                   sql.NullString
	)
	err := row.Scan(&rc.ID, &rc.OwnerID, &rc.FileURL, &rc.Extracted.Merchant, &rc.Extracted.Amount.Cents,
		&rc.Extracted.Category, &date, &isIncome, &txID, &created, &updated)
	if err != nil {
		return core.Receipt{}, err
	}
	rc.Extracted.IsIncome = isIncome == 1
	rc.TransactionID = txID.String
	if rc.Extracted.Date, err = parseTime(date); err != nil {
		return core.Receipt{}, fmt.Errorf("parse receipt_date: %w", err)
	}
	if rc.CreatedAt, err = parseTime(created); err != nil {
		return core.Receipt{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rc.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Receipt{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *SQLiteRepository) CreateReceipt(ctx context.Context, rc core.Receipt) (core.Receipt, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.OwnerID, rc.FileURL, rc.Extracted.Merchant, rc.Extracted.Amount.Cents, rc.Extracted.Category,
		formatTime(rc.Extracted.Date), boolInt(rc.Extracted.IsIncome), nullString(rc.TransactionID),
		formatTime(rc.CreatedAt), formatTime(rc.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Receipt{}, core.ErrConflict
	}
	if err != nil {
		return core.Receipt{}, core.WrapStore("create receipt", err)
	}
	return rc, nil
}

func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (core.Receipt, error) {
	rc, err := scanReceipt(r.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, core.ErrNotFound
	}
	if err != nil {
		return core.Receipt{}, core.WrapStore("get receipt", err)
	}
	return rc, nil
}

func (r *SQLiteRepository) UpdateReceipt(ctx context.Context, rc core.Receipt) (core.Receipt, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts
		SET merchant = ?, amount_cents = ?, category = ?, receipt_date = ?, is_income = ?, transaction_id = ?, updated_at = ?
		WHERE id = ?`,
		rc.Extracted.Merchant, rc.Extracted.Amount.Cents, rc.Extracted.Category, formatTime(rc.Extracted.Date),
		boolInt(rc.Extracted.IsIncome), nullString(rc.TransactionID), formatTime(rc.UpdatedAt), rc.ID)
	if err != nil {
		return core.Receipt{}, core.WrapStore("update receipt", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Receipt{}, core.ErrNotFound
	}
	return rc, nil
}

func (r *SQLiteRepository) ListReceipts(ctx context.Context, ownerID string) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, core.WrapStore("list receipts", err)
	}
	defer rows.Close()

	out := []core.Receipt{}
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, core.WrapStore("list receipts", err)
		}
		out = append(out, rc)
	}
	return out, core.WrapStore("list receipts", rows.Err())
}

const ruleColumns = `id, owner_id, name, category, cost_cents, is_income, frequency, start_date, next_due_date, is_active, created_at`

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var (
		rr                   core.RecurringRule
		start, next, created string
		isIncome, isActive   int
	)
	err := row.Scan(&rr.ID, &rr.OwnerID, &rr.Name, &rr.Category, &rr.Cost.Cents, &isIncome,
		&rr.Frequency, &start, &next, &isActive, &created)
	if err != nil {
		return core.RecurringRule{}, err
	}
	rr.IsIncome = isIncome == 1
	rr.IsActive = isActive == 1
	if rr.StartDate, err = parseTime(start); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse start_date: %w", err)
	}
	if rr.NextDueDate, err = parseTime(next); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse next_due_date: %w", err)
	}
	if rr.CreatedAt, err = parseTime(created); err != nil {
		return core.RecurringRule{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rr, nil
}

func (r *SQLiteRepository) queryRules(ctx context.Context, op, query string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapStore(op, err)
	}
	defer rows.Close()

	out := []core.RecurringRule{}
	for rows.Next() {
		rr, err := scanRule(rows)
		if err != nil {
			return nil, core.WrapStore(op, err)
		}
		out = append(out, rr)
	}
	return out, core.WrapStore(op, rows.Err())
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rr core.RecurringRule) (core.RecurringRule, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rr.ID, rr.OwnerID, rr.Name, rr.Category, rr.Cost.Cents, boolInt(rr.IsIncome), string(rr.Frequency),
		formatTime(rr.StartDate), formatTime(rr.NextDueDate), boolInt(rr.IsActive), formatTime(rr.CreatedAt))
	if isUniqueViolation(err) {
		return core.RecurringRule{}, core.ErrConflict
	}
	if err != nil {
		return core.RecurringRule{}, core.WrapStore("create rule", err)
	}
	return rr, nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	rr, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrNotFound
	}
	if err != nil {
		return core.RecurringRule{}, core.WrapStore("get rule", err)
	}
	return rr, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rr core.RecurringRule) (core.RecurringRule, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_rules
		SET name = ?, category = ?, cost_cents = ?, is_income = ?, frequency = ?, start_date = ?, next_due_date = ?, is_active = ?
		WHERE id = ?`,
		rr.Name, rr.Category, rr.Cost.Cents, boolInt(rr.IsIncome), string(rr.Frequency),
		formatTime(rr.StartDate), formatTime(rr.NextDueDate), boolInt(rr.IsActive), rr.ID)
	if err != nil {
		return core.RecurringRule{}, core.WrapStore("update rule", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.RecurringRule{}, core.ErrNotFound
	}
	return rr, nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, "list rules",
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE owner_id = ? ORDER BY next_due_date ASC`, ownerID)
}

func (r *SQLiteRepository) DueRules(ctx context.Context, now time.Time) ([]core.RecurringRule, error) {
	return r.queryRules(ctx, "due rules",
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE is_active = 1 AND next_due_date <= ? ORDER BY next_due_date ASC`,
		formatTime(now))
}

const userColumns = `id, name, email, password_hash, default_currency, is_setup_complete, created_at`

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.DefaultCurrency, boolInt(u.IsSetupComplete), formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return core.User{}, core.ErrConflict
	}
	if err != nil {
		return core.User{}, core.WrapStore("create user", err)
	}
	return u, nil
}

func (r *SQLiteRepository) getUserWhere(ctx context.Context, column, value string) (core.User, error) {
	var (
		u       core.User
		created string
		setup   int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.DefaultCurrency, &setup, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, core.WrapStore("get user", err)
	}
	u.IsSetupComplete = setup == 1
	if u.CreatedAt, err = parseTime(created); err != nil {
		return core.User{}, core.WrapStore("get user", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	return r.getUserWhere(ctx, "id", id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUserWhere(ctx, "email", email)
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET default_currency = ?, is_setup_complete = ? WHERE id = ?`,
		u.DefaultCurrency, boolInt(u.IsSetupComplete), u.ID)
	if err != nil {
		return core.User{}, core.WrapStore("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.User{}, core.ErrNotFound
	}
	return r.GetUser(ctx, u.ID)
}

const budgetColumns = `id, owner_id, category, limit_cents, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		created, updated string
	)
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Category, &b.Limit.Cents, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, fmt.Errorf("parse created_at: %w", err)
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Category, b.Limit.Cents, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Budget{}, core.ErrConflict
	}
	if err != nil {
		return core.Budget{}, core.WrapStore("create budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, core.WrapStore("get budget", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET category = ?, limit_cents = ?, updated_at = ? WHERE id = ?`,
		b.Category, b.Limit.Cents, formatTime(b.UpdatedAt), b.ID)
	if isUniqueViolation(err) {
		return core.Budget{}, core.ErrConflict
	}
	if err != nil {
		return core.Budget{}, core.WrapStore("update budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Budget{}, core.ErrNotFound
	}
	return r.GetBudget(ctx, b.ID)
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return core.WrapStore("delete budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE owner_id = ? ORDER BY category ASC`, ownerID)
	if err != nil {
		return nil, core.WrapStore("list budgets", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, core.WrapStore("list budgets", err)
		}
		out = append(out, b)
	}
	return out, core.WrapStore("list budgets", rows.Err())
}
