package plugin

import (
	"context"
	"database/sql"
)

// Migration is one schema change owned by a module. Migrations run in
// ascending Version order and are tracked per module, so modules evolve
// their tables independently.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Store is the host's shared persistence layer.
type Store interface {
	// DB returns the underlying database handle for direct queries.
	DB() *sql.DB

	// Tx runs fn inside a transaction, committing on nil and rolling
	// back otherwise.
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// Migrate applies the module's pending migrations.
	Migrate(ctx context.Context, module string, migrations []Migration) error

	// Close releases the store.
	Close() error
}
