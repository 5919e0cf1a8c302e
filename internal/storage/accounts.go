package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// AccountRepository reads and writes storage accounts.
type AccountRepository struct {
	db     DBTX
	logger *log.Logger
}

func NewAccountRepository(db DBTX, logger *log.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

// List returns every account ordered by id, i.e. creation order.
func (r *AccountRepository) List(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, icon, balance FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Icon, &a.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) Get(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, icon, balance FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Icon, &a.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("account %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

// Create inserts an account with a zero balance and returns its id.
func (r *AccountRepository) Create(ctx context.Context, name, icon string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, icon, balance) VALUES (?, ?, 0)`, name, icon)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account id: %w", err)
	}

	r.logger.InfoContext(ctx, "Account created",
		log.FieldOperation, log.OpCreate,
		log.FieldAccountID, id,
		log.FieldName, name)
	return id, nil
}

// Delete removes the account together with every transaction that references it.
// A missing id is a no-op. Run it inside Engine.InTx so both deletes land together.
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account %d transactions: %w", id, mapWriteError(err))
	}
	removed, _ := res.RowsAffected()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account %d: %w", id, mapWriteError(err))
	}

	r.logger.InfoContext(ctx, "Account deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldAccountID, id,
		"transactions_removed", removed)
	return nil
}

// UpdateBalance overwrites the stored balance. It does not look at transaction history.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, balance core.Money) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.Cents, id); err != nil {
		return fmt.Errorf("update balance of account %d: %w", id, mapWriteError(err))
	}
	return nil
}
