// Package services exposes the ledger to presentation code.
//
// Ledger is the single entry point collaborators use: account and category
// management, transaction recording with balance consistency, and the
// aggregate read-models shown on the home and transactions screens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	defaultRecentLimit = 3
	defaultTopLimit    = 5
	defaultTopWindow   = 30 * 24 * time.Hour
	defaultSummaryTTL  = 30 * time.Second
	dashboardCacheKey  = "dashboard"
	dashboardCacheSize = 4
)

type Ledger struct {
	engine      *storage.Engine
	logger      *log.Logger
	coordinator *log.Logger
	now         func() time.Time

	recentLimit int
	topLimit    int
	topWindow   time.Duration

	// cacheMu orders invalidate against storing a freshly built dashboard.
	cacheMu    sync.Mutex
	summaries  cache.Cache[core.Dashboard]
	generation uint64
}

type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests of the trailing window.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger.WithComponent(log.ComponentLedger)
		l.coordinator = logger.WithComponent(log.ComponentCoordinator)
	}
}

// WithRecentLimit sets how many rows RecentTransactions returns when asked for 0.
func WithRecentLimit(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.recentLimit = n
		}
	}
}

// WithTopCategories sets the size and trailing window of TopCategories.
func WithTopCategories(limit int, window time.Duration) Option {
	return func(l *Ledger) {
		if limit > 0 {
			l.topLimit = limit
		}
		if window > 0 {
			l.topWindow = window
		}
	}
}

// WithSummaryCache caches Dashboard for ttl. A zero ttl disables caching.
func WithSummaryCache(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl <= 0 {
			l.summaries = cache.Noop[core.Dashboard]{}
			return
		}
		l.summaries = cache.NewLRUCache[core.Dashboard](dashboardCacheSize, ttl)
	}
}

// NewLedger builds a ledger on an engine. The engine must be opened and its
// schema initialised before the first call.
func NewLedger(engine *storage.Engine, opts ...Option) *Ledger {
	base := log.New(log.DefaultConfig())
	l := &Ledger{
		engine:      engine,
		logger:      base.WithComponent(log.ComponentLedger),
		coordinator: base.WithComponent(log.ComponentCoordinator),
		now:         time.Now,
		recentLimit: defaultRecentLimit,
		topLimit:    defaultTopLimit,
		topWindow:   defaultTopWindow,
		summaries:   cache.NewLRUCache[core.Dashboard](dashboardCacheSize, defaultSummaryTTL),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// invalidate must follow every successful write.
func (l *Ledger) invalidate() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.generation++
	l.summaries.Purge()
}

func (l *Ledger) db() (*sql.DB, error) {
	return l.engine.DB()
}

// aggregateFailed logs a read-model query that could not be served.
func (l *Ledger) aggregateFailed(ctx context.Context, bucket string, err error) {
	errType := log.ErrorTypeDatabase
	if errors.Is(err, core.ErrAggregationCoercion) {
		errType = log.ErrorTypeCoercion
	}
	l.logger.ErrorContext(ctx, "Aggregate query failed",
		log.FieldOperation, log.OpAggregate,
		log.FieldErrorType, errType,
		log.FieldBucket, bucket,
		log.FieldError, err)
}

// ListAccounts returns every account in creation order.
func (l *Ledger) ListAccounts(ctx context.Context) ([]core.Account, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.engine.Accounts(db).List(ctx)
}

// CreateAccount adds an account with a zero balance.
func (l *Ledger) CreateAccount(ctx context.Context, name, icon string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("create account: %w", core.ErrEmptyName)
	}

	db, err := l.db()
	if err != nil {
		return 0, err
	}
	id, err := l.engine.Accounts(db).Create(ctx, name, strings.TrimSpace(icon))
	if err != nil {
		return 0, err
	}
	l.invalidate()
	return id, nil
}

// ListCategories returns categories ordered by name, ignoring case.
func (l *Ledger) ListCategories(ctx context.Context) ([]core.Category, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.engine.Categories(db).List(ctx)
}

// AddCategory creates a category and reports why it failed, if it did.
func (l *Ledger) AddCategory(ctx context.Context, name, icon string) (int64, error) {
	name, icon = strings.TrimSpace(name), strings.TrimSpace(icon)
	if err := core.ValidateLabel(name, icon); err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}

	db, err := l.db()
	if err != nil {
		return 0, err
	}
	id, err := l.engine.Categories(db).Create(ctx, name, icon)
	if err != nil {
		return 0, err
	}
	l.invalidate()
	return id, nil
}

// CreateCategory is AddCategory for callers that only show success or failure.
// The failure is logged here; the caller must still tell the user.
func (l *Ledger) CreateCategory(ctx context.Context, name, icon string) bool {
	if _, err := l.AddCategory(ctx, name, icon); err != nil {
		l.logger.ErrorContext(ctx, "Failed to insert category",
			log.FieldName, name,
			log.FieldError, err)
		return false
	}
	return true
}

// RecentTransactions returns the newest transactions. limit <= 0 uses the configured default.
func (l *Ledger) RecentTransactions(ctx context.Context, limit int) ([]core.TransactionWithCategory, error) {
	if limit <= 0 {
		limit = l.recentLimit
	}
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.engine.Transactions(db).ListRecent(ctx, limit)
}

func (l *Ledger) TransactionsForAccount(ctx context.Context, accountID int64) ([]core.TransactionWithCategory, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.engine.Transactions(db).ListByAccount(ctx, accountID)
}

func (l *Ledger) AllTransactions(ctx context.Context) ([]core.TransactionWithAccount, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.engine.Transactions(db).ListAll(ctx)
}

// MonthlySpend returns debit totals per month, oldest first.
func (l *Ledger) MonthlySpend(ctx context.Context) ([]core.ExpenseBucket, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	buckets, err := l.engine.Transactions(db).MonthlyExpenseTotals(ctx)
	if err != nil {
		l.aggregateFailed(ctx, "monthly", err)
		return nil, err
	}
	return buckets, nil
}

// DailySpend returns debit totals per day of yearMonth ("YYYY-MM").
func (l *Ledger) DailySpend(ctx context.Context, yearMonth string) ([]core.ExpenseBucket, error) {
	if err := core.ValidateYearMonth(yearMonth); err != nil {
		return nil, fmt.Errorf("daily spend for %q: %w", yearMonth, err)
	}
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	buckets, err := l.engine.Transactions(db).DailyExpenseTotals(ctx, yearMonth)
	if err != nil {
		l.aggregateFailed(ctx, yearMonth, err)
		return nil, err
	}
	return buckets, nil
}

// WeeklySpend returns debit totals per week of year.
func (l *Ledger) WeeklySpend(ctx context.Context, year int) ([]core.ExpenseBucket, error) {
	if err := core.ValidateYear(year); err != nil {
		return nil, fmt.Errorf("weekly spend for %d: %w", year, err)
	}
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	buckets, err := l.engine.Transactions(db).WeeklyExpenseTotals(ctx, year)
	if err != nil {
		l.aggregateFailed(ctx, strconv.Itoa(year), err)
		return nil, err
	}
	return buckets, nil
}

// TopCategories ranks categories by spending inside the trailing window.
func (l *Ledger) TopCategories(ctx context.Context) ([]core.TopCategory, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	since := l.now().Add(-l.topWindow)
	top, err := l.engine.Transactions(db).TopSpendingCategories(ctx, since, l.topLimit)
	if err != nil {
		l.aggregateFailed(ctx, "top_categories", err)
		return nil, err
	}
	return top, nil
}

// ResetAll wipes every account, category and transaction.
func (l *Ledger) ResetAll(ctx context.Context) error {
	if err := l.engine.Reset(ctx); err != nil {
		return err
	}
	l.invalidate()
	l.logger.WarnContext(ctx, "Ledger reset", log.FieldOperation, log.OpReset)
	return nil
}

// SeedCategories loads categories from a YAML file when none exist yet.
// It returns how many were inserted.
func (l *Ledger) SeedCategories(ctx context.Context, path string) (int, error) {
	seed, err := storage.LoadCategorySeed(path)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = l.engine.InTx(ctx, func(tx *sql.Tx) error {
		categories := l.engine.Categories(tx)
		n, err := categories.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		for _, c := range seed {
			if _, err := categories.Create(ctx, c.Name, c.Icon); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}

	if inserted > 0 {
		l.invalidate()
	}
	l.logger.WithComponent(log.ComponentSeed).InfoContext(ctx, "Categories seeded",
		log.FieldOperation, log.OpSeed,
		"inserted", inserted,
		"path", path)
	return inserted, nil
}
