package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/rolebook/pkg/types"
)

// columnKind selects how a column is converted between JSONL and SQLite.
type columnKind int

const (
	colText columnKind = iota
	colInt
	colBool
	colIntList // JSON array of integers
)

type column struct {
	name string
	kind columnKind
}

// tableFile maps a SQLite table to its JSONL file. The first column is the
// primary key.
type tableFile struct {
	table   string
	file    string
	columns []column
}

// jsonlTables lists every persisted table. Tables load in this order, so a
// referenced table comes before the tables that reference it.
var jsonlTables = []tableFile{
	{types.TableClaimRoles, "claim_roles.jsonl", []column{
		{"role_id", colText}, {"name", colText}, {"claim_type", colText},
		{"claim_value", colText}, {"entity_name", colText}, {"action", colIntList},
		{"description", colText}, {"priority", colInt},
		{"created_at", colText}, {"updated_at", colText},
	}},
	{types.TableRoleEntitlements, "role_entitlements.jsonl", []column{
		{"entitlement_id", colText}, {"role_id", colText}, {"entitlement", colText},
		{"scope", colText}, {"enabled", colBool},
		{"created_at", colText}, {"updated_at", colText},
	}},
	{types.TableUsers, "users.jsonl", []column{
		{"user_id", colText}, {"user_name", colText}, {"email", colText},
		{"display_name", colText}, {"role_id", colText}, {"is_active", colBool},
		{"login_count", colInt}, {"created_at", colText}, {"updated_at", colText},
	}},
}

func lookupTableFile(table string) (tableFile, bool) {
	for _, tf := range jsonlTables {
		if tf.table == table {
			return tf, true
		}
	}
	return tableFile{}, false
}

func (t tableFile) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// loadAllJSONL reads each JSONL file from dataDir into its table inside one
// transaction. Either every file loads or the database stays empty.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tf := range jsonlTables {
		records, err := readJSONL(filepath.Join(dataDir, tf.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", tf.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, tf, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", tf.file, tf.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into a table. Only the mapped
// columns are read; unknown fields are ignored. Records without a primary
// key are skipped, and a later record with the same key replaces an earlier
// one.
func insertRecords(tx *sql.Tx, tf tableFile, records []json.RawMessage) error {
	placeholders := make([]string, len(tf.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		tf.table,
		joinColumns(tf.columnNames()),
		joinColumns(placeholders),
	))
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", tf.table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		if id := cast.ToString(obj[tf.columns[0].name]); id == "" {
			continue
		}
		args := make([]any, len(tf.columns))
		for i, col := range tf.columns {
			args[i] = toColumnValue(col.kind, obj[col.name])
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", tf.table, err)
		}
	}
	return nil
}

// toColumnValue converts a decoded JSON value to its SQLite representation.
// Missing values become the column's zero value.
func toColumnValue(kind columnKind, v any) any {
	switch kind {
	case colInt:
		return cast.ToInt64(v)
	case colBool:
		if cast.ToBool(v) {
			return 1
		}
		return 0
	case colIntList:
		return intListColumn(v)
	default:
		return cast.ToString(v)
	}
}

// intListColumn encodes a decoded JSON array as a JSON array of integers.
// Elements that are not integers are dropped; anything but an array is
// stored as an empty list.
func intListColumn(v any) string {
	items, _ := v.([]any)
	ints := make([]int64, 0, len(items))
	for _, item := range items {
		if n, err := cast.ToInt64E(item); err == nil {
			ints = append(ints, n)
		}
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// persistTableJSONL rewrites the JSONL file of table from the current rows,
// in insertion order.
func persistTableJSONL(db *sql.DB, dataDir, table string) error {
	tf, ok := lookupTableFile(table)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrTableNotFound, table)
	}
	rows, err := db.Query(fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY rowid", joinColumns(tf.columnNames()), tf.table))
	if err != nil {
		return fmt.Errorf("querying %s for JSONL: %w", table, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		values := make([]any, len(tf.columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning %s row: %w", table, err)
		}
		rec := make(map[string]any, len(tf.columns))
		for i, col := range tf.columns {
			switch col.kind {
			case colBool:
				rec[col.name] = cast.ToInt64(values[i]) != 0
			case colInt:
				rec[col.name] = cast.ToInt64(values[i])
			case colIntList:
				raw := cast.ToString(values[i])
				if raw == "" {
					raw = "[]"
				}
				rec[col.name] = json.RawMessage(raw)
			default:
				rec[col.name] = cast.ToString(values[i])
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling %s row: %w", table, err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s for JSONL: %w", table, err)
	}
	return writeJSONL(filepath.Join(dataDir, tf.file), records)
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
