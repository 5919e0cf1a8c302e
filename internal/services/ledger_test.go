package services

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *storage.Engine) {
	t.Helper()
	e := storage.NewEngine(filepath.Join(t.TempDir(), "finance.db"), storage.WithBusyTimeout(time.Second), storage.WithLogger(log.Discard()))
	_, err := e.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.InitSchema(context.Background()))
	t.Cleanup(func() { e.Close() })

	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return NewLedger(e, opts...), e
}

func mustAccount(t *testing.T, l *Ledger, name string) int64 {
	t.Helper()
	id, err := l.CreateAccount(context.Background(), name, "wallet")
	require.NoError(t, err)
	return id
}

func mustCategory(t *testing.T, l *Ledger, name string) int64 {
	t.Helper()
	id, err := l.AddCategory(context.Background(), name, "pricetag")
	require.NoError(t, err)
	return id
}

func mustRecord(t *testing.T, l *Ledger, account, category int64, typ core.TransactionType, cents int64, at time.Time) int64 {
	t.Helper()
	id, err := l.RecordTransaction(context.Background(), core.TransactionInput{
		AccountID:  account,
		CategoryID: category,
		Type:       typ,
		Amount:     core.Money{Cents: cents},
		CreatedAt:  at,
	})
	require.NoError(t, err)
	return id
}

func balanceOf(t *testing.T, l *Ledger, id int64) int64 {
	t.Helper()
	accounts, err := l.ListAccounts(context.Background())
	require.NoError(t, err)
	for _, a := range accounts {
		if a.ID == id {
			return a.Balance.Cents
		}
	}
	t.Fatalf("account %d not listed", id)
	return 0
}

func TestLedger_CreditThenDebit(t *testing.T) {
	l, _ := newTestLedger(t)

	acc := mustAccount(t, l, "A")
	cat := mustCategory(t, l, "C")
	assert.Equal(t, int64(0), balanceOf(t, l, acc))

	mustRecord(t, l, acc, cat, core.Credit, 500, time.Time{})
	assert.Equal(t, int64(500), balanceOf(t, l, acc))

	mustRecord(t, l, acc, cat, core.Debit, 200, time.Time{})
	assert.Equal(t, int64(300), balanceOf(t, l, acc))
}

func TestLedger_InMemoryStore(t *testing.T) {
	ctx := context.Background()
	e := storage.NewEngine(storage.MemoryPath, storage.WithLogger(log.Discard()))
	_, err := e.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, e.InitSchema(ctx))
	defer e.Close()
	l := NewLedger(e, WithLogger(log.Discard()))

	acc := mustAccount(t, l, "A")
	cat := mustCategory(t, l, "C")
	mustRecord(t, l, acc, cat, core.Credit, 500, time.Time{})
	mustRecord(t, l, acc, cat, core.Debit, 200, time.Time{})
	assert.Equal(t, int64(300), balanceOf(t, l, acc))

	d, err := l.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), d.TotalBalance.Cents)
	assert.Len(t, d.Recent, 2)
}

func TestLedger_BalanceMatchesHistory(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	accounts := []int64{mustAccount(t, l, "Wallet"), mustAccount(t, l, "Bank"), mustAccount(t, l, "Savings")}
	cat := mustCategory(t, l, "Misc")

	rng := rand.New(rand.NewSource(7))
	want := make(map[int64]int64)
	for i := 0; i < 60; i++ {
		acc := accounts[rng.Intn(len(accounts))]
		cents := rng.Int63n(10_000)
		typ := core.Debit
		if rng.Intn(2) == 0 {
			typ = core.Credit
		}
		mustRecord(t, l, acc, cat, typ, cents, time.Time{})
		next, err := typ.Apply(core.Money{Cents: want[acc]}, core.Money{Cents: cents})
		require.NoError(t, err)
		want[acc] = next.Cents
	}

	for _, acc := range accounts {
		assert.Equal(t, want[acc], balanceOf(t, l, acc), "account %d", acc)
	}

	drifts, err := l.ReconcileBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts, "recorded balances never drift")
}

func TestLedger_RecordTransactionRejects(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Credit, 1000, time.Time{})

	cases := []struct {
		name string
		in   core.TransactionInput
	}{
		{"unknown type", core.TransactionInput{AccountID: acc, CategoryID: cat, Type: "refund", Amount: core.Money{Cents: 10}}},
		{"negative amount", core.TransactionInput{AccountID: acc, CategoryID: cat, Type: core.Debit, Amount: core.Money{Cents: -10}}},
		{"missing account", core.TransactionInput{AccountID: acc + 50, CategoryID: cat, Type: core.Debit, Amount: core.Money{Cents: 10}}},
		{"missing category", core.TransactionInput{AccountID: acc, CategoryID: cat + 50, Type: core.Debit, Amount: core.Money{Cents: 10}}},
		{"zero ids", core.TransactionInput{Type: core.Debit, Amount: core.Money{Cents: 10}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.RecordTransaction(ctx, tc.in)
			assert.ErrorIs(t, err, core.ErrConstraintViolation)
		})
	}

	// nothing from the failed calls landed
	assert.Equal(t, int64(1000), balanceOf(t, l, acc))
	all, err := l.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLedger_RecordTransactionRejectsBalanceOverflow(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Credit, math.MaxInt64, time.Time{})

	_, err := l.RecordTransaction(ctx, core.TransactionInput{
		AccountID: acc, CategoryID: cat, Type: core.Credit, Amount: core.Money{Cents: 1},
	})
	assert.ErrorIs(t, err, core.ErrBalanceOverflow)
	assert.ErrorIs(t, err, core.ErrConstraintViolation)

	assert.Equal(t, int64(math.MaxInt64), balanceOf(t, l, acc))
	all, err := l.AllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "the overflowing insert was rolled back")
}

func TestLedger_RecordTransactionDefaultsCreatedAt(t *testing.T) {
	fixed := time.Date(2025, 7, 27, 10, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Debit, 100, time.Time{})

	recent, err := l.RecentTransactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, fixed.Equal(recent[0].CreatedAt), "created_at %v", recent[0].CreatedAt)
}

func TestLedger_DeleteTransactionRevertsBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Credit, 500, time.Time{})
	debit := mustRecord(t, l, acc, cat, core.Debit, 200, time.Time{})

	require.NoError(t, l.DeleteTransaction(ctx, debit))
	assert.Equal(t, int64(500), balanceOf(t, l, acc))

	require.NoError(t, l.DeleteTransaction(ctx, debit), "second delete is a no-op")
	assert.Equal(t, int64(500), balanceOf(t, l, acc))
}

func TestLedger_DeleteAccountCascades(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	gone := mustAccount(t, l, "Old")
	kept := mustAccount(t, l, "New")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, gone, cat, core.Debit, 100, time.Time{})
	mustRecord(t, l, kept, cat, core.Debit, 300, time.Time{})

	require.NoError(t, l.DeleteAccount(ctx, gone))

	accounts, err := l.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, kept, accounts[0].ID)

	all, err := l.AllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, kept, all[0].AccountID)
	assert.Equal(t, "New", all[0].AccountName)
}

func TestLedger_Categories(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	assert.True(t, l.CreateCategory(ctx, "rent", "home"))
	assert.True(t, l.CreateCategory(ctx, "  Groceries ", "cart"))
	assert.False(t, l.CreateCategory(ctx, "", "cart"))
	assert.False(t, l.CreateCategory(ctx, "Books", "  "))

	_, err := l.AddCategory(ctx, "", "cart")
	assert.ErrorIs(t, err, core.ErrEmptyName)

	cats, err := l.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Groceries", cats[0].Name)
	assert.Equal(t, "rent", cats[1].Name)
}

func TestLedger_CreateAccountRequiresName(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.CreateAccount(context.Background(), "   ", "wallet")
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestLedger_BucketValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for _, bad := range []string{"2025-13", "2025-7", "July", ""} {
		_, err := l.DailySpend(ctx, bad)
		assert.ErrorIs(t, err, core.ErrInvalidBucket, bad)
	}
	_, err := l.WeeklySpend(ctx, 0)
	assert.ErrorIs(t, err, core.ErrInvalidBucket)

	days, err := l.DailySpend(ctx, "2025-07")
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestLedger_SpendBreakdowns(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Credit, 10_000, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	mustRecord(t, l, acc, cat, core.Debit, 300, time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC))
	mustRecord(t, l, acc, cat, core.Debit, 100, time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC))
	mustRecord(t, l, acc, cat, core.Debit, 200, time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC))
	mustRecord(t, l, acc, cat, core.Debit, 50, time.Date(2025, 7, 9, 8, 0, 0, 0, time.UTC))

	monthly, err := l.MonthlySpend(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ExpenseBucket{
		{Bucket: "2025-06", TotalSpent: core.Money{Cents: 300}},
		{Bucket: "2025-07", TotalSpent: core.Money{Cents: 350}},
	}, monthly)

	daily, err := l.DailySpend(ctx, "2025-07")
	require.NoError(t, err)
	assert.Equal(t, []core.ExpenseBucket{
		{Bucket: "2025-07-01", TotalSpent: core.Money{Cents: 300}},
		{Bucket: "2025-07-09", TotalSpent: core.Money{Cents: 50}},
	}, daily)

	weekly, err := l.WeeklySpend(ctx, 2025)
	require.NoError(t, err)
	var total int64
	for _, w := range weekly {
		total += w.TotalSpent.Cents
	}
	assert.Equal(t, int64(650), total)
}

func TestLedger_TopCategoriesWindow(t *testing.T) {
	now := time.Date(2025, 7, 27, 12, 0, 0, 0, time.UTC)
	l, _ := newTestLedger(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	recent := mustCategory(t, l, "Recent")
	stale := mustCategory(t, l, "Stale")

	mustRecord(t, l, acc, recent, core.Debit, 400, now.AddDate(0, 0, -29))
	mustRecord(t, l, acc, stale, core.Debit, 9_000, now.AddDate(0, 0, -31))

	top, err := l.TopCategories(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, recent, top[0].CategoryID)
	assert.Equal(t, int64(400), top[0].Total.Cents)
}

func TestLedger_RecentTransactions(t *testing.T) {
	l, _ := newTestLedger(t, WithRecentLimit(2))
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		mustRecord(t, l, acc, cat, core.Debit, int64(i+1), base.AddDate(0, 0, i))
	}

	def, err := l.RecentTransactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, def, 2)

	three, err := l.RecentTransactions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, three, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{three[0].Amount.Cents, three[1].Amount.Cents, three[2].Amount.Cents})

	byAccount, err := l.TransactionsForAccount(ctx, acc)
	require.NoError(t, err)
	assert.Len(t, byAccount, 5)
}

func TestLedger_ResetAll(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Debit, 100, time.Time{})

	require.NoError(t, l.ResetAll(ctx))

	accounts, err := l.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	cats, err := l.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
	recent, err := l.RecentTransactions(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// the schema is usable again right away
	mustAccount(t, l, "Fresh")
}

func TestLedger_ReconcileBalancesFixesDrift(t *testing.T) {
	l, e := newTestLedger(t)
	ctx := context.Background()

	acc := mustAccount(t, l, "Wallet")
	other := mustAccount(t, l, "Bank")
	cat := mustCategory(t, l, "Food")
	mustRecord(t, l, acc, cat, core.Credit, 800, time.Time{})
	mustRecord(t, l, acc, cat, core.Debit, 300, time.Time{})

	db, err := e.DB()
	require.NoError(t, err)
	require.NoError(t, e.Accounts(db).UpdateBalance(ctx, acc, core.Money{Cents: 42}))

	drifts, err := l.ReconcileBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.BalanceDrift{
		{AccountID: acc, Stored: core.Money{Cents: 42}, Computed: core.Money{Cents: 500}},
	}, drifts)
	assert.Equal(t, int64(500), balanceOf(t, l, acc))
	assert.Equal(t, int64(0), balanceOf(t, l, other))
}

func TestLedger_SeedCategories(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: Groceries
    icon: cart-outline
  - name: Rent
    icon: home-outline
`), 0o644))

	n, err := l.SeedCategories(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.SeedCategories(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a populated table is left alone")

	cats, err := l.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestLedger_StorageUnavailableAfterClose(t *testing.T) {
	l, e := newTestLedger(t)
	require.NoError(t, e.Close())

	_, err := l.ListAccounts(context.Background())
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)

	_, err = l.RecordTransaction(context.Background(), core.TransactionInput{
		AccountID: 1, CategoryID: 1, Type: core.Credit, Amount: core.Money{Cents: 1},
	})
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}
