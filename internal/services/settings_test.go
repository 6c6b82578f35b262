package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/internal/testutil"
)

func newSettingsRepo(t *testing.T) services.SettingsRepository {
	t.Helper()
	store := testutil.NewStore(t)
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), store)
	if err != nil {
		t.Fatalf("NewSQLiteSettingsRepository: %v", err)
	}
	return repo
}

func TestSQLiteSettingsRepository_SetAndGet(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "scan_subnet", "192.168.7"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s, err := repo.Get(ctx, "scan_subnet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Key != "scan_subnet" {
		t.Errorf("Key = %q, want scan_subnet", s.Key)
	}
	if s.Value != "192.168.7" {
		t.Errorf("Value = %q, want 192.168.7", s.Value)
	}
	if s.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
}

func TestSQLiteSettingsRepository_SetOverwrite(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "scan_subnet", "192.168.1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(ctx, "scan_subnet", "10.0.0"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	s, err := repo.Get(ctx, "scan_subnet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Value != "10.0.0" {
		t.Errorf("Value = %q, want 10.0.0", s.Value)
	}
}

func TestSQLiteSettingsRepository_Value(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	// Absent key reads as empty, not an error.
	v, err := repo.Value(ctx, services.SettingScanSubnet)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "" {
		t.Errorf("Value = %q, want empty for unset key", v)
	}

	if err := repo.Set(ctx, services.SettingScanSubnet, "192.168.7"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err = repo.Value(ctx, services.SettingScanSubnet)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "192.168.7" {
		t.Errorf("Value = %q, want 192.168.7", v)
	}
}

func TestSQLiteSettingsRepository_GetNotFound(t *testing.T) {
	repo := newSettingsRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSettingsRepository_Delete(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "scan_subnet", "192.168.1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Delete(ctx, "scan_subnet"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "scan_subnet"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("deleted setting still readable, err = %v", err)
	}
	if err := repo.Delete(ctx, "scan_subnet"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSettingsRepository_GetAll(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "scan_subnet", "192.168.1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(ctx, "host_max", "100"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	// Ordered by key.
	if all[0].Key != "host_max" || all[1].Key != "scan_subnet" {
		t.Errorf("order = [%s %s]", all[0].Key, all[1].Key)
	}
}
