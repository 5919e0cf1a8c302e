package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// RecordTransaction stores a transaction and moves its account balance in the
// same database transaction. Either both land or neither does.
func (l *Ledger) RecordTransaction(ctx context.Context, in core.TransactionInput) (int64, error) {
	in = in.WithDefaults(l.now())
	if err := in.Validate(); err != nil {
		l.coordinator.WarnContext(ctx, "Rejected transaction",
			log.NewFields().
				WithOperation(log.OpRecord).
				WithErrorType(log.ErrorTypeValidation).
				WithError(err).ToSlice()...)
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	var (
		id      int64
		balance core.Money
	)
	err := l.engine.InTx(ctx, func(tx *sql.Tx) error {
		accounts := l.engine.Accounts(tx)

		account, err := accounts.Get(ctx, in.AccountID)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: account %d does not exist", core.ErrConstraintViolation, in.AccountID)
		}
		if err != nil {
			return err
		}
		if _, err := l.engine.Categories(tx).Get(ctx, in.CategoryID); errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: category %d does not exist", core.ErrConstraintViolation, in.CategoryID)
		} else if err != nil {
			return err
		}

		id, err = l.engine.Transactions(tx).Insert(ctx, in)
		if err != nil {
			return err
		}

		balance, err = in.Type.Apply(account.Balance, in.Amount)
		if err != nil {
			return fmt.Errorf("account %d: %w", in.AccountID, err)
		}
		return accounts.UpdateBalance(ctx, in.AccountID, balance)
	})
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpRecord).WithError(err)
		if errors.Is(err, core.ErrConstraintViolation) {
			fields.WithErrorType(log.ErrorTypeConstraint)
		} else {
			fields.WithErrorType(log.ErrorTypeDatabase)
		}
		l.coordinator.ErrorContext(ctx, "Failed to record transaction", fields.ToSlice()...)
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	l.invalidate()
	l.coordinator.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithOperation(log.OpRecord).
			WithTransaction(id, in.AccountID, in.CategoryID, in.Type.String(), in.Amount.Cents).
			WithBalance(in.AccountID, balance.Cents).ToSlice()...)
	return id, nil
}

// DeleteTransaction removes a transaction and takes its effect back out of the
// account balance. A missing id is a no-op.
func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	deleted := false
	err := l.engine.InTx(ctx, func(tx *sql.Tx) error {
		transactions := l.engine.Transactions(tx)
		t, err := transactions.Get(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			l.coordinator.DebugContext(ctx, "Nothing to delete",
				log.FieldOperation, log.OpDelete,
				log.FieldErrorType, log.ErrorTypeNotFound,
				log.FieldTxID, id)
			return nil
		}
		if err != nil {
			return err
		}
		if err := transactions.Delete(ctx, id); err != nil {
			return err
		}
		deleted = true

		accounts := l.engine.Accounts(tx)
		account, err := accounts.Get(ctx, t.AccountID)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		balance, err := t.Type.Revert(account.Balance, t.Amount)
		if err != nil {
			return fmt.Errorf("account %d: %w", t.AccountID, err)
		}
		return accounts.UpdateBalance(ctx, t.AccountID, balance)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if deleted {
		l.invalidate()
		l.coordinator.InfoContext(ctx, "Transaction deleted",
			log.FieldOperation, log.OpDelete,
			log.FieldTxID, id)
	}
	return nil
}

// DeleteAccount removes an account and all of its transactions.
func (l *Ledger) DeleteAccount(ctx context.Context, id int64) error {
	err := l.engine.InTx(ctx, func(tx *sql.Tx) error {
		return l.engine.Accounts(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	l.invalidate()
	return nil
}

// ReconcileBalances recomputes every balance from transaction history and
// rewrites the ones that drifted. It returns the accounts it corrected.
func (l *Ledger) ReconcileBalances(ctx context.Context) ([]core.BalanceDrift, error) {
	var drifts []core.BalanceDrift
	err := l.engine.InTx(ctx, func(tx *sql.Tx) error {
		accounts := l.engine.Accounts(tx)
		list, err := accounts.List(ctx)
		if err != nil {
			return err
		}
		nets, err := l.engine.Transactions(tx).NetByAccount(ctx)
		if err != nil {
			return err
		}

		for _, a := range list {
			computed := nets[a.ID]
			if computed == a.Balance {
				continue
			}
			if err := accounts.UpdateBalance(ctx, a.ID, computed); err != nil {
				return err
			}
			drifts = append(drifts, core.BalanceDrift{AccountID: a.ID, Stored: a.Balance, Computed: computed})
		}
		return nil
	})
	if err != nil {
		l.coordinator.ErrorContext(ctx, "Balance reconciliation failed",
			log.NewFields().
				WithOperation(log.OpReconcile).
				WithErrorType(log.ErrorTypeDatabase).
				WithError(err).ToSlice()...)
		return nil, fmt.Errorf("reconcile balances: %w", err)
	}

	if len(drifts) > 0 {
		l.invalidate()
		for _, d := range drifts {
			l.coordinator.WarnContext(ctx, "Balance corrected",
				log.FieldOperation, log.OpReconcile,
				log.FieldAccountID, d.AccountID,
				"stored_cents", d.Stored.Cents,
				"computed_cents", d.Computed.Cents)
		}
	}
	return drifts, nil
}
