package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"papertrade/config"

	"github.com/lib/pq"
)

// CreateDatabase makes sure cfg.DBName exists, creating it through the
// server's admin database when it does not.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig, env string) error {
	admin, err := sql.Open("postgres", cfg.AdminDSN(env))
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer admin.Close()

	exists, err := databaseExists(ctx, admin, cfg.DBName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.DBName)); err != nil {
		// lost a race with another instance creating it
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %s: %w", cfg.DBName, err)
	}
	return nil
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("look up database %s: %w", name, err)
	}
	return exists, nil
}
