package sqlite_test

import (
	"context"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/simplymeet/db"
	dbpkg "github.com/garnizeh/simplymeet/internal/db"
	sqlite "github.com/garnizeh/simplymeet/internal/repository/sqlite"
	"github.com/garnizeh/simplymeet/pkg/models"
)

func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, *dbpkg.DB) {
	t.Helper()
	ctx := context.Background()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	d, err := dbpkg.New(ctx, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return sqlite.New(d, nil), d
}

func TestSelectedEmployee_RoundTrip(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	got, err := repo.SelectedEmployee(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil when nothing stored; got %#v, %v", got, err)
	}

	if err := repo.SaveSelectedEmployee(ctx, nil); err == nil {
		t.Fatalf("expected error when saving nil employee")
	}

	e := &models.Employee{ID: 4, Name: "Ana", WorkEmail: "ana@example.com", UserID: 7}
	if err := repo.SaveSelectedEmployee(ctx, e); err != nil {
		t.Fatalf("SaveSelectedEmployee: %v", err)
	}
	// overwrite keeps a single row
	e2 := &models.Employee{ID: 5, Name: "Luis", UserID: 9}
	if err := repo.SaveSelectedEmployee(ctx, e2); err != nil {
		t.Fatalf("SaveSelectedEmployee overwrite: %v", err)
	}

	got, err = repo.SelectedEmployee(ctx)
	if err != nil {
		t.Fatalf("SelectedEmployee: %v", err)
	}
	if got == nil || got.ID != 5 || got.UserID != 9 || got.Name != "Luis" {
		t.Fatalf("unexpected stored employee %#v", got)
	}

	if err := repo.ClearSelectedEmployee(ctx); err != nil {
		t.Fatalf("ClearSelectedEmployee: %v", err)
	}
	got, err = repo.SelectedEmployee(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected cleared identity, got %#v, %v", got, err)
	}
}

func TestSelectedEmployee_CorruptValueDiscarded(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()

	if _, err := d.Exec(ctx, `INSERT INTO preferences (key, value, updated) VALUES (?, ?, 0)`, sqlite.KeySelectedEmployee, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := repo.SelectedEmployee(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected corrupt value to read as no identity, got %#v, %v", got, err)
	}

	var n int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM preferences WHERE key = ?`, sqlite.KeySelectedEmployee).Scan(&n); err != nil || n != 0 {
		t.Fatalf("expected corrupt row to be removed (n=%d err=%v)", n, err)
	}
}

func TestTheme(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	th, err := repo.Theme(ctx)
	if err != nil || th != models.ThemeSystem {
		t.Fatalf("expected system default, got %q, %v", th, err)
	}

	if err := repo.SetTheme(ctx, "sepia"); err == nil {
		t.Fatalf("expected error for invalid theme")
	}
	if err := repo.SetTheme(ctx, models.ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	th, err = repo.Theme(ctx)
	if err != nil || th != models.ThemeDark {
		t.Fatalf("expected dark, got %q, %v", th, err)
	}
}
