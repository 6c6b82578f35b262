package dremel

import (
	"database/sql"

	"github.com/mbeckett/dremelink/pkg/plugin"
)

// Migrations defines the database schema for the module's tables.
var Migrations = []plugin.Migration{
	{
		Version:     1,
		Description: "create dremel_printers and dremel_jobs tables",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE dremel_printers (
					id                TEXT PRIMARY KEY,
					name              TEXT NOT NULL DEFAULT '',
					address           TEXT NOT NULL UNIQUE,
					base_url          TEXT NOT NULL DEFAULT '',
					properties        TEXT NOT NULL DEFAULT '{}',
					short_description TEXT NOT NULL DEFAULT '',
					icon_name         TEXT NOT NULL DEFAULT '',
					priority          INTEGER NOT NULL DEFAULT 0,
					first_seen        DATETIME NOT NULL,
					last_seen         DATETIME NOT NULL
				)`,
				`CREATE TABLE dremel_jobs (
					id           TEXT PRIMARY KEY,
					printer_id   TEXT NOT NULL,
					file_name    TEXT NOT NULL,
					status       TEXT NOT NULL,
					error_msg    TEXT NOT NULL DEFAULT '',
					submitted_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_dremel_jobs_printer ON dremel_jobs(printer_id)`,
			}
			for _, s := range stmts {
				if _, err := tx.Exec(s); err != nil {
					return err
				}
			}
			return nil
		},
	},
}
