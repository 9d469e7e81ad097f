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

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the persistent store for users, categories, expenses
// and recurring expense templates.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
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

// ---- users ----

// UpsertUserByGoogle finds a user by Google ID, creating one on first login.
func (r *SQLiteRepository) UpsertUserByGoogle(ctx context.Context, googleID, email, name string) (*core.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (google_id, email, name)
		VALUES (?, ?, ?)
		ON CONFLICT(google_id) DO UPDATE SET email = excluded.email, name = excluded.name`,
		googleID, email, name)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return r.getUser(ctx, "google_id = ?", googleID)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (*core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, google_id, base_currency, created_at
		FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.GoogleID, &u.BaseCurrency, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every user. Used by the weekly alert job.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name, google_id, base_currency, created_at
		FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.GoogleID, &u.BaseCurrency, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ---- categories ----

// ListCategories returns the user's categories plus the system defaults.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, parent_id, user_id
		FROM categories
		WHERE user_id IS NULL OR user_id = ?
		ORDER BY parent_id IS NOT NULL, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetCategory returns a category visible to the user: their own or a system
// default.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id, userID int64) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, parent_id, user_id
		FROM categories
		WHERE id = ? AND (user_id IS NULL OR user_id = ?)`, id, userID).
		Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, description, parent_id, user_id)
		VALUES (?, ?, ?, ?)`,
		c.Name, c.Description, c.ParentID, c.UserID)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

// DeleteCategory removes a user-owned category. System defaults cannot be
// deleted.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ---- expenses ----

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, category_id, date, description, amount_cents, currency, is_recurring)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.CategoryID, e.Date.String(), e.Description, e.Amount.Cents, e.Amount.Currency, e.IsRecurring)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	return id, nil
}

const expenseColumns = `id, user_id, category_id, date, description, amount_cents, currency, is_recurring, created_at`

func (r *SQLiteRepository) scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var e core.Expense
	var date string
	err := row.Scan(&e.ID, &e.UserID, &e.CategoryID, &date, &e.Description,
		&e.Amount.Cents, &e.Amount.Currency, &e.IsRecurring, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("stored expense date %q: %w", date, err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE id = ? AND deleted_at IS NULL`, id)
	e, err := r.scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

// GetExpenseWithCategory loads an expense together with its category's
// display name, as needed for the sheets row layout.
func (r *SQLiteRepository) GetExpenseWithCategory(ctx context.Context, id int64) (*core.Expense, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT e.id, e.user_id, e.category_id, e.date, e.description,
		       e.amount_cents, e.currency, e.is_recurring, e.created_at, c.name
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.id = ? AND e.deleted_at IS NULL`, id)

	var e core.Expense
	var date, categoryName string
	err := row.Scan(&e.ID, &e.UserID, &e.CategoryID, &date, &e.Description,
		&e.Amount.Cents, &e.Amount.Currency, &e.IsRecurring, &e.CreatedAt, &categoryName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", core.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get expense with category: %w", err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return nil, "", fmt.Errorf("stored expense date %q: %w", date, err)
	}
	return &e, categoryName, nil
}

func (r *SQLiteRepository) ListExpensesByMonth(ctx context.Context, userID int64, year, month int) ([]core.Expense, error) {
	from, to := monthRange(year, month)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND date >= ? AND date < ? AND deleted_at IS NULL
		ORDER BY date DESC, id DESC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses by month: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// SoftDeleteExpense marks a user's expense deleted without removing the row,
// so the sheets sync worker can still resolve it for remote deletion.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// MonthOverview aggregates a user's spend for one month: total plus
// per-category sums with display names.
func (r *SQLiteRepository) MonthOverview(ctx context.Context, userID int64, year, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{Year: year, Month: month}
	from, to := monthRange(year, month)

	var currency sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0), MAX(currency)
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date < ? AND deleted_at IS NULL`,
		userID, from, to).Scan(&overview.Total.Cents, &currency)
	if err != nil {
		return overview, fmt.Errorf("month total: %w", err)
	}
	overview.Total.Currency = currency.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, SUM(e.amount_cents), MAX(e.currency)
		FROM expenses e
		JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ? AND e.date >= ? AND e.date < ? AND e.deleted_at IS NULL
		GROUP BY c.id, c.name
		ORDER BY SUM(e.amount_cents) DESC`, userID, from, to)
	if err != nil {
		return overview, fmt.Errorf("category sums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Amount.Cents, &ct.Amount.Currency); err != nil {
			return overview, fmt.Errorf("scan category sum: %w", err)
		}
		overview.ByCategory = append(overview.ByCategory, ct)
	}
	return overview, rows.Err()
}

// ---- sheets sync bookkeeping ----

// ListUnsyncedExpenseIDs returns ids of a user's expenses not yet pushed to
// the spreadsheet, oldest first.
func (r *SQLiteRepository) ListUnsyncedExpenseIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM expenses
		WHERE user_id = ? AND synced = 0 AND deleted_at IS NULL
		ORDER BY id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced expenses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced marks an expense as successfully synced to the spreadsheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return nil
}

// MarkSyncError flags an expense whose spreadsheet push failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// ---- recurring expenses ----

const recurringColumns = `id, user_id, category_id, amount_cents, currency, frequency, start_date, end_date, next_occurrence, description, created_at`

func (r *SQLiteRepository) scanRecurring(row interface{ Scan(...any) error }) (core.RecurringExpense, error) {
	var re core.RecurringExpense
	var startDate, nextOccurrence string
	var endDate sql.NullString
	var frequency string
	err := row.Scan(&re.ID, &re.UserID, &re.CategoryID, &re.Amount.Cents, &re.Amount.Currency,
		&frequency, &startDate, &endDate, &nextOccurrence, &re.Description, &re.CreatedAt)
	if err != nil {
		return core.RecurringExpense{}, err
	}

	if re.Frequency, err = core.ParseFrequency(frequency); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("stored frequency %q: %w", frequency, err)
	}
	if re.StartDate, err = core.ParseDate(startDate); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("stored start date %q: %w", startDate, err)
	}
	if re.NextOccurrence, err = core.ParseDate(nextOccurrence); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("stored next occurrence %q: %w", nextOccurrence, err)
	}
	if endDate.Valid {
		if re.EndDate, err = core.ParseDate(endDate.String); err != nil {
			return core.RecurringExpense{}, fmt.Errorf("stored end date %q: %w", endDate.String, err)
		}
	}
	return re, nil
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func (r *SQLiteRepository) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_expenses
			(user_id, category_id, amount_cents, currency, frequency, start_date, end_date, next_occurrence, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.UserID, re.CategoryID, re.Amount.Cents, re.Amount.Currency, string(re.Frequency),
		re.StartDate.String(), nullableDate(re.EndDate), re.NextOccurrence.String(), re.Description)
	if err != nil {
		return 0, fmt.Errorf("create recurring expense: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetRecurringExpense(ctx context.Context, id, userID int64) (*core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_expenses
		WHERE id = ? AND user_id = ?`, id, userID)
	re, err := r.scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring expense: %w", err)
	}
	return &re, nil
}

func (r *SQLiteRepository) ListRecurringExpenses(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_expenses
		WHERE user_id = ?
		ORDER BY next_occurrence, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringExpense
	for rows.Next() {
		re, err := r.scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		templates = append(templates, re)
	}
	return templates, rows.Err()
}

func (r *SQLiteRepository) UpdateRecurringExpense(ctx context.Context, re core.RecurringExpense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_expenses SET
			category_id = ?, amount_cents = ?, currency = ?, frequency = ?,
			start_date = ?, end_date = ?, next_occurrence = ?, description = ?
		WHERE id = ? AND user_id = ?`,
		re.CategoryID, re.Amount.Cents, re.Amount.Currency, string(re.Frequency),
		re.StartDate.String(), nullableDate(re.EndDate), re.NextOccurrence.String(), re.Description,
		re.ID, re.UserID)
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteRecurringExpense removes a template. Expenses it already
// materialized are untouched.
func (r *SQLiteRepository) DeleteRecurringExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM recurring_expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DueRecurringExpenses returns the templates, across all users, whose next
// occurrence falls inside today's window and whose end date has not passed.
func (r *SQLiteRepository) DueRecurringExpenses(ctx context.Context, today core.Date) ([]core.RecurringExpense, error) {
	tomorrow := today.AddDays(1)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_expenses
		WHERE next_occurrence >= ? AND next_occurrence < ?
		  AND (end_date IS NULL OR end_date > ?)
		ORDER BY id`,
		today.String(), tomorrow.String(), today.String())
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()

	var due []core.RecurringExpense
	for rows.Next() {
		re, err := r.scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		due = append(due, re)
	}
	return due, rows.Err()
}

// UpdateNextOccurrence advances a single template's cached next due date.
func (r *SQLiteRepository) UpdateNextOccurrence(ctx context.Context, id int64, next core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_expenses SET next_occurrence = ? WHERE id = ?`,
		next.String(), id)
	if err != nil {
		return fmt.Errorf("update next occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// monthRange returns [first day of month, first day of next month) as
// ISO date strings, which compare correctly as text.
func monthRange(year, month int) (string, string) {
	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month+1, 1)
	return from.String(), to.String()
}
