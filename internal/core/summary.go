package core

import "time"

// TransactionWithCategory is a transaction joined with its category label.
type TransactionWithCategory struct {
	ID           int64
	AccountID    int64
	CategoryID   int64
	Type         TransactionType
	Amount       Money
	Note         string
	CreatedAt    time.Time
	CategoryName string
	CategoryIcon string
}

// TransactionWithAccount is a transaction joined with its account name.
// AccountName is empty when the account no longer exists.
type TransactionWithAccount struct {
	Transaction
	AccountName string
}

// ExpenseBucket is the debit total for one calendar bucket
// ("2025-07", "2025-07-27" or "2025-W30").
type ExpenseBucket struct {
	Bucket     string
	TotalSpent Money
}

// TopCategory is a category ranked by debit total inside a trailing window.
type TopCategory struct {
	CategoryID   int64
	CategoryName string
	CategoryIcon string
	Total        Money
}

// BalanceDrift records an account whose stored balance disagreed with its history.
type BalanceDrift struct {
	AccountID int64
	Stored    Money
	Computed  Money
}

// Dashboard is the home screen read-model.
type Dashboard struct {
	Accounts      []Account
	TotalBalance  Money
	Recent        []TransactionWithCategory
	MonthlySpend  []ExpenseBucket
	TopCategories []TopCategory
	GeneratedAt   time.Time
}
