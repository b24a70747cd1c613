// Package schema holds the database schema and applies it.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"finbpo/pkg/logger"
)

//go:embed schema.sql
var ddl string

// SQL returns the schema DDL.
func SQL() string { return ddl }

// Migrate applies the schema. Every statement is idempotent, so it is safe to
// run on each deploy.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "schema applied")
	return nil
}
