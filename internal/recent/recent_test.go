package recent

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/verbas/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "recent.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTouchAndList(t *testing.T) {
	db := testDB(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = db.Touch("/p/A/A.verbas", "A", base)
	_ = db.Touch("/p/B/B.verbas", "B", base.Add(time.Minute))
	_ = db.Touch("/p/C/C.verbas", "C", base.Add(2*time.Minute))
	// Reopening moves A to the top.
	if err := db.Touch("/p/A/A.verbas", "A2", base.Add(3*time.Minute)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	got, err := db.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Path != "/p/A/A.verbas" || got[0].Name != "A2" {
		t.Errorf("first = %+v", got[0])
	}
	if !got[0].OpenedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("opened_at = %v", got[0].OpenedAt)
	}
	if got[1].Path != "/p/C/C.verbas" || got[2].Path != "/p/B/B.verbas" {
		t.Errorf("order = %v", got)
	}

	limited, _ := db.List(2)
	if len(limited) != 2 {
		t.Errorf("limited len = %d", len(limited))
	}
}

func TestGetAndForget(t *testing.T) {
	db := testDB(t)
	_ = db.Touch("/p/A/A.verbas", "A", time.Now())

	e, err := db.Get("/p/A/A.verbas")
	if err != nil || e.Name != "A" {
		t.Fatalf("Get = %+v, %v", e, err)
	}
	if err := db.Forget("/p/A/A.verbas"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if err := db.Forget("/p/A/A.verbas"); err != nil {
		t.Errorf("second Forget: %v", err)
	}
	if _, err := db.Get("/p/A/A.verbas"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after Forget = %v", err)
	}
	list, _ := db.List(10)
	if len(list) != 0 {
		t.Errorf("list = %v", list)
	}
}
