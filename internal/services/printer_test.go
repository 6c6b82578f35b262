package services_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/internal/testutil"
	"github.com/mbeckett/dremelink/pkg/models"
	"github.com/mbeckett/dremelink/pkg/plugin"
)

var dremelMigrations = []plugin.Migration{
	{
		Version:     1,
		Description: "create dremel tables for testing",
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

func newPrinterRepo(t *testing.T) services.PrinterRepository {
	t.Helper()
	store := testutil.NewStore(t)
	if err := store.Migrate(context.Background(), "dremel", dremelMigrations); err != nil {
		t.Fatalf("dremel migrations: %v", err)
	}
	return services.NewSQLitePrinterRepository(store.DB())
}

func TestSQLitePrinterRepository_UpsertAndGet(t *testing.T) {
	repo := newPrinterRepo(t)
	ctx := context.Background()

	p := testutil.NewPrinter()
	created, err := repo.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Error("Upsert of new printer should report created")
	}

	got, err := repo.Get(ctx, "dremel:192.168.1.42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Dremel 3D45" {
		t.Errorf("Name = %q, want Dremel 3D45", got.Name)
	}
	if got.BaseURL != "http://192.168.1.42/" {
		t.Errorf("BaseURL = %q, want http://192.168.1.42/", got.BaseURL)
	}
	if got.Properties == nil {
		t.Error("Properties not round-tripped")
	}
}

func TestSQLitePrinterRepository_UpsertExisting(t *testing.T) {
	repo := newPrinterRepo(t)
	ctx := context.Background()

	p := testutil.NewPrinter()
	if _, err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	firstSeen := p.FirstSeen

	// Second discovery of the same address must not create a duplicate.
	again := testutil.NewPrinter(testutil.WithName("Renamed 3D45"))
	created, err := repo.Upsert(ctx, again)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if created {
		t.Error("Upsert of existing printer should not report created")
	}

	list, err := repo.List(ctx, services.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("Total = %d, want 1 (one record per address)", list.Total)
	}
	got := list.Items[0]
	if got.Name != "Renamed 3D45" {
		t.Errorf("Name = %q, want Renamed 3D45", got.Name)
	}
	if got.FirstSeen.After(firstSeen.Add(time.Second)) {
		t.Error("FirstSeen should be preserved across upserts")
	}
}

func TestSQLitePrinterRepository_GetNotFound(t *testing.T) {
	repo := newPrinterRepo(t)

	_, err := repo.Get(context.Background(), "dremel:10.9.9.9")
	if err != services.ErrNotFound {
		t.Errorf("Get nonexistent = %v, want ErrNotFound", err)
	}
}

func TestSQLitePrinterRepository_Delete(t *testing.T) {
	repo := newPrinterRepo(t)
	ctx := context.Background()

	p := testutil.NewPrinter()
	if _, err := repo.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, p.ID); err != services.ErrNotFound {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, p.ID); err != services.ErrNotFound {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestSQLitePrinterRepository_ListPagination(t *testing.T) {
	repo := newPrinterRepo(t)
	ctx := context.Background()

	ips := []string{"192.168.1.11", "192.168.1.12", "192.168.1.13"}
	for _, ip := range ips {
		p := models.NewPrinter(ip, "", nil)
		if _, err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert %s: %v", ip, err)
		}
	}

	page, err := repo.List(ctx, services.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Items) != 2 {
		t.Errorf("Items len = %d, want 2", len(page.Items))
	}
}
