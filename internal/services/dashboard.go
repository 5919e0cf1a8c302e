package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Dashboard builds the home screen: accounts with their total, the most recent
// transactions, monthly spending and the top categories. The four reads run
// concurrently and the result is cached until the next write. Each call gets
// its own copy, so callers may modify it.
func (l *Ledger) Dashboard(ctx context.Context) (core.Dashboard, error) {
	l.cacheMu.Lock()
	if d, ok := l.summaries.Get(dashboardCacheKey); ok {
		l.cacheMu.Unlock()
		l.logger.WithComponent(log.ComponentCache).DebugContext(ctx, "Dashboard served from cache")
		return cloneDashboard(d), nil
	}
	gen := l.generation
	l.cacheMu.Unlock()

	start := time.Now()
	var d core.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := l.ListAccounts(gctx)
		d.Accounts = accounts
		return err
	})
	g.Go(func() error {
		recent, err := l.RecentTransactions(gctx, 0)
		d.Recent = recent
		return err
	})
	g.Go(func() error {
		monthly, err := l.MonthlySpend(gctx)
		d.MonthlySpend = monthly
		return err
	})
	g.Go(func() error {
		top, err := l.TopCategories(gctx)
		d.TopCategories = top
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	for _, a := range d.Accounts {
		d.TotalBalance = d.TotalBalance.Add(a.Balance)
	}
	d.GeneratedAt = l.now()

	l.cacheMu.Lock()
	if l.generation == gen {
		l.summaries.Set(dashboardCacheKey, cloneDashboard(d))
	}
	l.cacheMu.Unlock()

	l.logger.DebugContext(ctx, "Dashboard built",
		log.FieldDuration, time.Since(start).Milliseconds(),
		"accounts", len(d.Accounts))
	return d, nil
}

func cloneDashboard(d core.Dashboard) core.Dashboard {
	d.Accounts = slices.Clone(d.Accounts)
	d.Recent = slices.Clone(d.Recent)
	d.MonthlySpend = slices.Clone(d.MonthlySpend)
	d.TopCategories = slices.Clone(d.TopCategories)
	return d
}
