package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestSQLiteCRUD(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := Session{UserID: 7, Text: "zdravo svete", Duration: 12.5}
	if err := store.Insert(ctx, &sess); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected Insert to assign an id")
	}
	if sess.Script != ScriptLatin {
		t.Fatalf("expected default script lat, got %q", sess.Script)
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Fatal("expected Insert to assign timestamps")
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Text != sess.Text || got.UserID != 7 || got.Duration != 12.5 {
		t.Fatalf("round-trip mismatch: %#v", got)
	}
	if got.AudioURL != "" || got.AudioSize != 0 {
		t.Fatalf("expected no audio fields on fresh session, got %#v", got)
	}

	newText := "здраво свете"
	newScript := ScriptCyrillic
	updated, err := store.Update(ctx, sess.ID, UpdateFields{Text: &newText, Script: &newScript})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Text != newText || updated.Script != ScriptCyrillic {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.Duration != 12.5 {
		t.Fatalf("partial update touched duration: %#v", updated)
	}

	url := "7/" + sess.ID + ".webm"
	size := int64(2048)
	updated, err = store.Update(ctx, sess.ID, UpdateFields{AudioURL: &url, AudioSize: &size})
	if err != nil {
		t.Fatalf("audio patch failed: %v", err)
	}
	if updated.AudioURL != url || updated.AudioSize != size {
		t.Fatalf("audio patch not applied: %#v", updated)
	}
	if updated.Text != newText {
		t.Fatalf("audio patch touched text: %#v", updated)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteGetUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteUpdateUnknown(t *testing.T) {
	store := newTestSQLiteStore(t)

	text := "x"
	_, err := store.Update(context.Background(), "no-such-id", UpdateFields{Text: &text})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteListAndCount(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sess := Session{UserID: 1, Text: fmt.Sprintf("mine-%d", i), Duration: float64(i + 1)}
		if err := store.Insert(ctx, &sess); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	other := Session{UserID: 2, Text: "other user", Duration: 99}
	if err := store.Insert(ctx, &other); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	count, err := store.Count(ctx, 1)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected count 5, got %d", count)
	}

	asc, err := store.List(ctx, 1, ListOptions{SortBy: SortByDuration, Order: OrderAsc})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(asc) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(asc))
	}
	for i, sess := range asc {
		if sess.Duration != float64(i+1) {
			t.Fatalf("ascending order broken at %d: %#v", i, sess)
		}
		if sess.UserID != 1 {
			t.Fatalf("list leaked foreign session: %#v", sess)
		}
	}

	page, err := store.List(ctx, 1, ListOptions{Skip: 2, Take: 2, SortBy: SortByDuration, Order: OrderAsc})
	if err != nil {
		t.Fatalf("paged List failed: %v", err)
	}
	if len(page) != 2 || page[0].Duration != 3 || page[1].Duration != 4 {
		t.Fatalf("unexpected page contents: %#v", page)
	}
}

func TestSQLiteConcurrentAccess(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sess := Session{UserID: 3, Text: fmt.Sprintf("concurrent-%d", idx), Duration: float64(idx)}
			_ = store.Insert(ctx, &sess)
			_, _ = store.Get(ctx, sess.ID)
		}(i)
	}
	wg.Wait()

	count, err := store.Count(ctx, 3)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 sessions, got %d", count)
	}
}

func TestSQLiteTimestampsAreUTC(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := Session{UserID: 4, Text: "tz check", Duration: 1}
	if err := store.Insert(ctx, &sess); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %v", got.CreatedAt.Location())
	}
}
