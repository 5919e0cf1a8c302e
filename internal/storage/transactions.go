package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// TransactionRepository inserts and deletes transactions and serves every
// read-model built on them. It never touches account balances.
type TransactionRepository struct {
	db     DBTX
	logger *log.Logger
	now    func() time.Time
}

func NewTransactionRepository(db DBTX, logger *log.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, logger: logger, now: time.Now}
}

const selectWithCategory = `
	SELECT
		t.id,
		t.account_id,
		t.category_id,
		t.type,
		t.amount,
		t.note,
		t.created_at,
		c.name,
		c.icon
	FROM transactions t
	JOIN categories c ON t.category_id = c.id`

// Insert stores one transaction. An empty CreatedAt defaults to now.
func (r *TransactionRepository) Insert(ctx context.Context, in core.TransactionInput) (int64, error) {
	in = in.WithDefaults(r.now())

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (account_id, type, amount, category_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.AccountID,
		string(in.Type),
		in.Amount.Cents,
		in.CategoryID,
		in.Note,
		formatTime(in.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction inserted",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(id, in.AccountID, in.CategoryID, in.Type.String(), in.Amount.Cents).ToSlice()...)
	return id, nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	var (
		t       core.Transaction
		typ     string
		note    sql.NullString
		created sqlTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, category_id, type, amount, note, created_at
		FROM transactions WHERE id = ?`, id,
	).Scan(&t.ID, &t.AccountID, &t.CategoryID, &typ, &t.Amount.Cents, &note, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("get transaction %d: %w", id, err)
	}
	t.Type = core.TransactionType(typ)
	t.Note = note.String
	t.CreatedAt = created.Time
	return t, nil
}

// Delete removes a transaction by id. A missing id is a no-op.
func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, mapWriteError(err))
	}
	return nil
}

// ListRecent returns the newest limit transactions with their category.
func (r *TransactionRepository) ListRecent(ctx context.Context, limit int) ([]core.TransactionWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, selectWithCategory+`
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}
	return scanWithCategory(rows)
}

// ListByAccount returns all transactions of one account, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64) ([]core.TransactionWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, selectWithCategory+`
		WHERE t.account_id = ?
		ORDER BY t.created_at DESC, t.id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of account %d: %w", accountID, err)
	}
	return scanWithCategory(rows)
}

func scanWithCategory(rows *sql.Rows) ([]core.TransactionWithCategory, error) {
	defer rows.Close()

	var out []core.TransactionWithCategory
	for rows.Next() {
		var (
			t       core.TransactionWithCategory
			typ     string
			note    sql.NullString
			created sqlTime
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.CategoryID, &typ, &t.Amount.Cents,
			&note, &created, &t.CategoryName, &t.CategoryIcon); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.Note = note.String
		t.CreatedAt = created.Time
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// ListAll returns every transaction with its account name, newest first.
func (r *TransactionRepository) ListAll(ctx context.Context) ([]core.TransactionWithAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.category_id, t.type, t.amount, t.note, t.created_at, a.name
		FROM transactions t
		LEFT JOIN accounts a ON t.account_id = a.id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionWithAccount
	for rows.Next() {
		var (
			t       core.TransactionWithAccount
			typ     string
			note    sql.NullString
			account sql.NullString
			created sqlTime
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.CategoryID, &typ, &t.Amount.Cents,
			&note, &created, &account); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.Note = note.String
		t.CreatedAt = created.Time
		t.AccountName = account.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// MonthlyExpenseTotals sums debits per "YYYY-MM", oldest month first.
func (r *TransactionRepository) MonthlyExpenseTotals(ctx context.Context) ([]core.ExpenseBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', created_at) AS bucket, SUM(amount) AS total_spent
		FROM transactions
		WHERE type = 'debit'
		GROUP BY bucket
		ORDER BY bucket ASC`)
	if err != nil {
		return nil, fmt.Errorf("monthly expense totals: %w", err)
	}
	return scanBuckets(rows)
}

// DailyExpenseTotals sums debits per "YYYY-MM-DD" inside yearMonth ("YYYY-MM").
func (r *TransactionRepository) DailyExpenseTotals(ctx context.Context, yearMonth string) ([]core.ExpenseBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', created_at) AS bucket, SUM(amount) AS total_spent
		FROM transactions
		WHERE type = 'debit'
			AND strftime('%Y-%m', created_at) = ?
		GROUP BY bucket
		ORDER BY bucket ASC`, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("daily expense totals for %s: %w", yearMonth, err)
	}
	return scanBuckets(rows)
}

// WeeklyExpenseTotals sums debits per "YYYY-Www" inside year. Weeks start on
// Monday and days before the first Monday fall in week 00.
func (r *TransactionRepository) WeeklyExpenseTotals(ctx context.Context, year int) ([]core.ExpenseBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-W%W', created_at) AS bucket, SUM(amount) AS total_spent
		FROM transactions
		WHERE type = 'debit'
			AND strftime('%Y', created_at) = ?
		GROUP BY bucket
		ORDER BY bucket ASC`, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("weekly expense totals for %d: %w", year, err)
	}
	return scanBuckets(rows)
}

func scanBuckets(rows *sql.Rows) ([]core.ExpenseBucket, error) {
	defer rows.Close()

	var out []core.ExpenseBucket
	for rows.Next() {
		var (
			bucket string
			raw    any
		)
		if err := rows.Scan(&bucket, &raw); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		total, err := coerceTotal(raw)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		out = append(out, core.ExpenseBucket{Bucket: bucket, TotalSpent: core.Money{Cents: total}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return out, nil
}

// TopSpendingCategories ranks categories by debit total since the given time.
// Equal totals are ordered by category id.
func (r *TransactionRepository) TopSpendingCategories(ctx context.Context, since time.Time, limit int) ([]core.TopCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.icon, SUM(t.amount) AS total
		FROM transactions t
		JOIN categories c ON t.category_id = c.id
		WHERE t.type = 'debit'
			AND t.created_at >= ?
		GROUP BY c.id, c.name, c.icon
		ORDER BY total DESC, c.id ASC
		LIMIT ?`, formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("top spending categories: %w", err)
	}
	defer rows.Close()

	var out []core.TopCategory
	for rows.Next() {
		var (
			tc  core.TopCategory
			raw any
		)
		if err := rows.Scan(&tc.CategoryID, &tc.CategoryName, &tc.CategoryIcon, &raw); err != nil {
			return nil, fmt.Errorf("scan top category: %w", err)
		}
		total, err := coerceTotal(raw)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", tc.CategoryID, err)
		}
		tc.Total = core.Money{Cents: total}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top categories: %w", err)
	}
	return out, nil
}

// NetByAccount returns credits minus debits per account, keyed by account id.
// Accounts without transactions are present with a zero total.
func (r *TransactionRepository) NetByAccount(ctx context.Context) (map[int64]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id,
			COALESCE(SUM(CASE WHEN t.type = 'credit' THEN t.amount ELSE -t.amount END), 0) AS net
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.id
		GROUP BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("net by account: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]core.Money)
	for rows.Next() {
		var (
			id  int64
			raw any
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan net: %w", err)
		}
		net, err := coerceTotal(raw)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", id, err)
		}
		out[id] = core.Money{Cents: net}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nets: %w", err)
	}
	return out, nil
}
