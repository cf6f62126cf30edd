package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// newUUID generates a UUID v7 string.
func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored timestamp. Unparseable text yields the zero time
// so a hand-edited JSONL file cannot make a row unreadable.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exists reports whether a row with the given key is present.
func exists(q execer, table, keyColumn, id string) (bool, error) {
	var one int
	err := q.QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", table, keyColumn), id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s existence: %w", table, err)
	}
	return true, nil
}

// nameTaken reports whether another row already uses value in a unique
// column.
func nameTaken(q execer, table, column, keyColumn, value, id string) (bool, error) {
	var one int
	err := q.QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? AND %s <> ?", table, column, keyColumn),
		value, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s uniqueness: %w", table, err)
	}
	return true, nil
}

// createdAt returns the stored creation time of an existing row, or now for
// a new one.
func createdAt(q execer, table, keyColumn, id string, now time.Time) (time.Time, error) {
	var s string
	err := q.QueryRow(
		fmt.Sprintf("SELECT created_at FROM %s WHERE %s = ?", table, keyColumn), id,
	).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading %s created_at: %w", table, err)
	}
	return parseTime(s), nil
}

// filterString extracts an optional string filter value.
func filterString(filter map[string]any, key string) (string, bool, error) {
	v, ok := filter[key]
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("%w: %s must be a string", types.ErrInvalidFilter, key)
	}
	return s, true, nil
}

// filterBool extracts an optional boolean filter value. Strings such as
// "true" and "0" are accepted.
func filterBool(filter map[string]any, key string) (bool, bool, error) {
	v, ok := filter[key]
	if !ok {
		return false, false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, false, fmt.Errorf("%w: %s must be a boolean", types.ErrInvalidFilter, key)
	}
	return b, true, nil
}

// checkAttached returns ErrStoreDetached once the backend has been detached.
// The caller must hold b.mu.
func (b *Backend) checkAttached() error {
	if !b.attached {
		return types.ErrStoreDetached
	}
	return nil
}
