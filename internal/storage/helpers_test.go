package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(filepath.Join(t.TempDir(), "finance.db"), WithBusyTimeout(time.Second), WithLogger(log.Discard()))
	_, err := e.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.InitSchema(context.Background()))
	t.Cleanup(func() { e.Close() })
	return e
}

type fixture struct {
	accounts     *AccountRepository
	categories   *CategoryRepository
	transactions *TransactionRepository
}

func newFixture(t *testing.T) (*Engine, fixture) {
	t.Helper()
	e := newTestEngine(t)
	db, err := e.DB()
	require.NoError(t, err)
	return e, fixture{
		accounts:     e.Accounts(db),
		categories:   e.Categories(db),
		transactions: e.Transactions(db),
	}
}

func (f fixture) mustAccount(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.accounts.Create(context.Background(), name, "wallet")
	require.NoError(t, err)
	return id
}

func (f fixture) mustCategory(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.categories.Create(context.Background(), name, "pricetag")
	require.NoError(t, err)
	return id
}

func (f fixture) mustInsert(t *testing.T, accountID, categoryID int64, typ core.TransactionType, cents int64, at time.Time) int64 {
	t.Helper()
	id, err := f.transactions.Insert(context.Background(), core.TransactionInput{
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       typ,
		Amount:     core.Money{Cents: cents},
		CreatedAt:  at,
	})
	require.NoError(t, err)
	return id
}
