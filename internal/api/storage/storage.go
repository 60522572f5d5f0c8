package storage

import (
	"github.com/doclayer-io/webhook-bridge/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Storage owns all database writes performed by the webhook pipeline. Every
// statement is a single upsert, update, or insert; correctness under
// concurrent deliveries for the same identifier relies on the row-level
// atomicity of those statements, not on in-process locking.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}
