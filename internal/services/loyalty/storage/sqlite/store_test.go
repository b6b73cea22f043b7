package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/services/loyalty/storage"
)

var storeNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "loyalty.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seedTemplate(t *testing.T, store *Store, mutate func(*storage.TemplateRecord)) storage.TemplateRecord {
	t.Helper()
	record := storage.TemplateRecord{
		CompanyRef: "cmp-1",
		Title:      "Coffee Card",
		StampTotal: 10,
		Active:     true,
	}
	if mutate != nil {
		mutate(&record)
	}
	created, err := store.CreateTemplate(context.Background(), record)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return created
}

func storeWantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T (%v), want *apperrors.Error", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loyalty.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
