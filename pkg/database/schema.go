package database

import (
	"context"
	"fmt"
)

// OrdersSchema creates the table store. Rows are partitioned by user_id and
// sorted by order_id, which is time ordered.
var OrdersSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		user_id    TEXT          NOT NULL,
		order_id   TEXT          NOT NULL,
		pizza      TEXT          NOT NULL,
		size       TEXT          NOT NULL CHECK (size IN ('small', 'medium', 'large')),
		total      NUMERIC(10,2) NOT NULL CHECK (total > 0),
		status     TEXT          NOT NULL DEFAULT 'confirmed',
		created_at TIMESTAMPTZ   NOT NULL,
		PRIMARY KEY (user_id, order_id)
	)`,
}

// DropOrdersSchema removes the table store
var DropOrdersSchema = []string{
	`DROP TABLE IF EXISTS orders`,
}

// Exec runs statements in order, stopping at the first failure
func (db *PostgresDB) Exec(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	return nil
}
