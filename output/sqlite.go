package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// quoteIdent quotes an SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteSQLite writes the table into a database file. An existing table of
// the same name is replaced. All rows are inserted in a single transaction.
func WriteSQLite(ctx context.Context, path string, t Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := writeTable(ctx, db, t); err != nil {
		return fmt.Errorf("sqlite %s: %w", path, err)
	}
	return db.Close()
}

func writeTable(ctx context.Context, db *sql.DB, t Table) error {
	var (
		header  = t.Header()
		table   = quoteIdent(t.Name)
		columns = make([]string, len(header))
		marks   = make([]string, len(header))
	)
	for i, c := range header {
		columns[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(columns, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	args := make([]interface{}, len(header))
	for _, rec := range t.Records {
		for i, v := range t.Row(rec) {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
