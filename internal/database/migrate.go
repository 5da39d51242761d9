package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema returns the DDL for driver ("mysql" or "postgres").
func Schema(driver string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for driver %q", driver)
	}
	return string(b), nil
}

// Statements splits a schema into individual statements.  Statements are
// separated by a semicolon at the end of a line.
func Statements(schema string) []string {
	var out []string
	for _, s := range strings.Split(schema, ";\n") {
		var lines []string
		for _, l := range strings.Split(s, "\n") {
			if t := strings.TrimSpace(l); t != "" && !strings.HasPrefix(t, "--") {
				lines = append(lines, l)
			}
		}
		if stmt := strings.TrimSpace(strings.TrimSuffix(strings.Join(lines, "\n"), ";")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// MigrateMySQL applies the MySQL schema.  CREATE statements are
// idempotent; an ADD COLUMN for a column that already exists is skipped.
func MigrateMySQL(ctx context.Context, db *sql.DB) error {
	schema, err := Schema("mysql")
	if err != nil {
		return err
	}
	for _, stmt := range Statements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migrate mysql: %w", err)
		}
	}
	return nil
}

// isDuplicateColumn matches MySQL error 1060 (ER_DUP_FIELDNAME).
func isDuplicateColumn(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1060
}

// MigratePostgres applies the PostgreSQL schema in one round trip.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	schema, err := Schema("postgres")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
