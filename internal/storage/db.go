package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// standalone or inside Engine.InTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout sorts lexically and is understood by SQLite's date functions.
const timeLayout = "2006-01-02 15:04:05.000"

var parseLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// sqlTime scans timestamps whether the driver hands back time.Time or text.
type sqlTime struct {
	time.Time
}

func (st *sqlTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		st.Time = time.Time{}
		return nil
	case time.Time:
		st.Time = x.UTC()
		return nil
	case string:
		return st.parse(x)
	case []byte:
		return st.parse(string(x))
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (st *sqlTime) parse(s string) error {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			st.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparsable timestamp %q", s)
}

// coerceTotal turns a scanned SUM() value into minor units. SQLite may hand
// back integers, reals or text depending on the column affinity it saw.
func coerceTotal(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("%w: %v", core.ErrAggregationCoercion, x)
		}
		return int64(x), nil
	case []byte:
		return coerceText(string(x))
	case string:
		return coerceText(x)
	default:
		return 0, fmt.Errorf("%w: unexpected type %T", core.ErrAggregationCoercion, v)
	}
}

func coerceText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrAggregationCoercion, s)
	}
	return coerceTotal(f)
}

// mapWriteError tags SQLite constraint failures (foreign key, CHECK, NOT NULL)
// with core.ErrConstraintViolation.
func mapWriteError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %w", core.ErrConstraintViolation, err)
	}
	return err
}
