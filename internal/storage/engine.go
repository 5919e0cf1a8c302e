package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// Engine owns the single connection pool to the embedded SQLite file.
// It is an explicit handle: repositories receive it (or a transaction from it)
// through their constructors.
type Engine struct {
	mu          sync.Mutex
	path        string
	busyTimeout time.Duration
	logger      *log.Logger
	db          *sql.DB

	// memName is the shared-cache name of an in-memory database, empty for files.
	memName string
}

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

var memSeq atomic.Uint64

type Option func(*Engine)

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.busyTimeout = d
	}
}

// WithLogger sets the logger for the engine and every repository it hands out.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.WithComponent(log.ComponentStorage)
	}
}

func NewEngine(dbPath string, opts ...Option) *Engine {
	e := &Engine{
		path:        dbPath,
		busyTimeout: 5 * time.Second,
		logger:      log.New(log.DefaultConfig()).WithComponent(log.ComponentStorage),
	}
	if dbPath == MemoryPath {
		e.memName = fmt.Sprintf("fintrack-mem-%d", memSeq.Add(1))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path returns the database file path.
func (e *Engine) Path() string {
	return e.path
}

// dsn for an in-memory engine names a shared-cache database, so the migration
// connection and the pool see the same tables.
func (e *Engine) dsn() string {
	if e.memName != "" {
		return fmt.Sprintf(
			"file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
			e.memName, e.busyTimeout.Milliseconds())
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		e.path, e.busyTimeout.Milliseconds())
}

// Open returns the shared pool, opening it on first use.
func (e *Engine) Open(ctx context.Context) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return e.db, nil
	}

	if e.path == "" {
		return nil, fmt.Errorf("%w: empty database path", core.ErrStorageUnavailable)
	}
	if e.memName == "" {
		if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
			return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", e.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStorageUnavailable, err)
	}

	if e.memName != "" {
		// The database lives as long as this one connection; shared-cache
		// table locks also rule out concurrent connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorageUnavailable, err)
	}

	e.db = db
	e.logger.InfoContext(ctx, "SQLite database opened", log.FieldDBPath, e.path)
	return db, nil
}

// DB returns the open pool or ErrStorageUnavailable if Open has not succeeded.
func (e *Engine) DB() (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil, fmt.Errorf("%w: database not open", core.ErrStorageUnavailable)
	}
	return e.db, nil
}

// InitSchema creates the ledger tables if they are missing. Existing rows are kept.
func (e *Engine) InitSchema(ctx context.Context) error {
	if _, err := e.DB(); err != nil {
		return err
	}
	if err := RunMigrations(e.dsn()); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	e.logger.DebugContext(ctx, "Schema ready", log.FieldDBPath, e.path)
	return nil
}

// Reset drops every ledger table and recreates the schema in one transaction.
// Tables are dropped child first and recreated parent first.
func (e *Engine) Reset(ctx context.Context) error {
	ddl, err := schemaDDL()
	if err != nil {
		return err
	}

	err = e.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"transactions", "categories", "accounts"} {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("recreate schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset database: %w", err)
	}

	e.logger.WarnContext(ctx, "Database reset",
		log.FieldOperation, log.OpReset,
		log.FieldDBPath, e.path)
	return nil
}

// InTx runs fn inside a transaction. Any error or panic from fn rolls it back.
func (e *Engine) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	db, err := e.DB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Accounts returns an account repository over db, which is the engine's pool
// or a transaction from InTx.
func (e *Engine) Accounts(db DBTX) *AccountRepository {
	return NewAccountRepository(db, e.logger)
}

func (e *Engine) Categories(db DBTX) *CategoryRepository {
	return NewCategoryRepository(db, e.logger)
}

func (e *Engine) Transactions(db DBTX) *TransactionRepository {
	return NewTransactionRepository(db, e.logger)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}
