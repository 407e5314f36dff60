package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/matozai/scribe/internal/blob"
)

func newTestService(t *testing.T) (*Service, *SQLiteStore, blob.Store) {
	t.Helper()

	store := newTestSQLiteStore(t)
	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}

	return NewService(store, blobs, zerolog.Nop()), store, blobs
}

type erroringBlobs struct {
	putErr    error
	deleteErr error
}

func (e *erroringBlobs) Put(context.Context, string, []byte, string) (string, error) {
	return "", e.putErr
}

func (e *erroringBlobs) Get(context.Context, string) ([]byte, error) {
	return nil, blob.ErrNotFound
}

func (e *erroringBlobs) Delete(context.Context, string) error {
	return e.deleteErr
}

func (e *erroringBlobs) Size(context.Context, string) (int64, error) {
	return 0, nil
}

func TestCreateWithoutAudio(t *testing.T) {
	svc, _, _ := newTestService(t)

	sess, err := svc.Create(context.Background(), 7, CreateInput{Text: "dobar dan", Duration: 3})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sess.AudioURL != "" || sess.AudioSize != 0 {
		t.Fatalf("expected no audio fields, got %#v", sess)
	}
	if sess.Script != ScriptLatin {
		t.Fatalf("expected default script, got %q", sess.Script)
	}
}

func TestCreateWithAudio(t *testing.T) {
	svc, store, blobs := newTestService(t)
	ctx := context.Background()

	audio := []byte("fake webm audio payload")
	sess, err := svc.Create(ctx, 7, CreateInput{
		Text:      "sa zvukom",
		Duration:  10,
		AudioData: audio,
		AudioName: "recording.webm",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sess.AudioSize != int64(len(audio)) {
		t.Fatalf("expected audio size %d, got %d", len(audio), sess.AudioSize)
	}
	if want := "/api/sessions/" + sess.ID + "/audio"; sess.AudioURL != want {
		t.Fatalf("expected retrieval URL %q, got %q", want, sess.AudioURL)
	}

	// The stored pointer stays the bare backend key.
	raw, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	if want := fmt.Sprintf("7/%s.webm", sess.ID); raw.AudioURL != want {
		t.Fatalf("expected stored key %q, got %q", want, raw.AudioURL)
	}

	stored, err := blobs.Get(ctx, raw.AudioURL)
	if err != nil {
		t.Fatalf("blob Get failed: %v", err)
	}
	if !bytes.Equal(stored, audio) {
		t.Fatalf("stored audio mismatch")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, CreateInput{Text: "  ", Duration: 1}); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := svc.Create(ctx, 1, CreateInput{Text: "ok", Duration: -1}); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := svc.Create(ctx, 1, CreateInput{Text: "ok", Duration: 1, Script: "hieroglyphic"}); err == nil {
		t.Fatal("expected error for unknown script")
	}
}

func TestCreateKeepsRecordWhenUploadFails(t *testing.T) {
	store := newTestSQLiteStore(t)
	svc := NewService(store, &erroringBlobs{putErr: errors.New("backend unavailable")}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, CreateInput{Text: "tekst", Duration: 5, AudioData: []byte("xx")})
	if err == nil {
		t.Fatal("expected upload error to propagate")
	}

	// The record survives as a text-only session.
	page, err := svc.List(ctx, 7, ListQuery{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Meta.Total != 1 {
		t.Fatalf("expected orphan text-only session, total = %d", page.Meta.Total)
	}
	if page.Data[0].AudioURL != "" || page.Data[0].AudioSize != 0 {
		t.Fatalf("expected no audio fields on kept record: %#v", page.Data[0])
	}
}

func TestGetOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, CreateInput{Text: "owned by one", Duration: 1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Get(ctx, 1, sess.ID); err != nil {
		t.Fatalf("owner Get failed: %v", err)
	}
	if _, err := svc.Get(ctx, 2, sess.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign user, got %v", err)
	}
	if _, err := svc.Get(ctx, 1, "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestUpdateMutatesTextAndScriptOnly(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, CreateInput{Text: "pre", Duration: 8, AudioData: []byte("aud"), AudioName: "a.webm"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	text := "posle"
	script := ScriptCyrillic
	updated, err := svc.Update(ctx, 1, sess.ID, UpdateInput{Text: &text, Script: &script})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Text != "posle" || updated.Script != ScriptCyrillic {
		t.Fatalf("update not applied: %#v", updated)
	}
	if updated.Duration != 8 || updated.AudioSize != 3 {
		t.Fatalf("update touched duration or audio: %#v", updated)
	}

	raw, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	if raw.AudioURL == "" {
		t.Fatal("update dropped the audio pointer")
	}

	if _, err := svc.Update(ctx, 2, sess.ID, UpdateInput{Text: &text}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRemoveDeletesBlob(t *testing.T) {
	svc, store, blobs := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, 1, CreateInput{Text: "za brisanje", Duration: 2, AudioData: []byte("abc"), AudioName: "x.webm"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	raw, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}

	if err := svc.Remove(ctx, 1, sess.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := svc.Get(ctx, 1, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if _, err := blobs.Get(ctx, raw.AudioURL); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected blob to be gone, got %v", err)
	}
}

func TestRemoveSwallowsBlobDeleteFailure(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	sess := Session{UserID: 1, Text: "leak me", Duration: 1, AudioURL: "1/leak.webm", AudioSize: 10}
	if err := store.Insert(ctx, &sess); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	svc := NewService(store, &erroringBlobs{deleteErr: errors.New("backend unavailable")}, zerolog.Nop())
	if err := svc.Remove(ctx, 1, sess.ID); err != nil {
		t.Fatalf("expected record deletion to proceed, got %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record not deleted: %v", err)
	}
}

func TestGetAudio(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	audio := []byte("listen to this")
	withAudio, err := svc.Create(ctx, 1, CreateInput{Text: "a", Duration: 1, AudioData: audio, AudioName: "b.webm"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	noAudio, err := svc.Create(ctx, 1, CreateInput{Text: "b", Duration: 1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	data, contentType, err := svc.GetAudio(ctx, 1, withAudio.ID)
	if err != nil {
		t.Fatalf("GetAudio failed: %v", err)
	}
	if !bytes.Equal(data, audio) {
		t.Fatal("audio bytes mismatch")
	}
	if contentType != "audio/webm" {
		t.Fatalf("expected audio/webm, got %q", contentType)
	}

	if _, _, err := svc.GetAudio(ctx, 1, noAudio.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for audioless session, got %v", err)
	}
	if _, _, err := svc.GetAudio(ctx, 2, withAudio.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		if _, err := svc.Create(ctx, 1, CreateInput{Text: fmt.Sprintf("s-%02d", i), Duration: float64(i)}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	page, err := svc.List(ctx, 1, ListQuery{Page: 2, Limit: 10, SortBy: SortByDuration, Order: OrderAsc})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if page.Meta.Total != 25 || page.Meta.TotalPages != 3 || page.Meta.Page != 2 {
		t.Fatalf("unexpected meta: %#v", page.Meta)
	}
	if len(page.Data) != 10 {
		t.Fatalf("expected 10 items, got %d", len(page.Data))
	}
	if page.Data[0].Duration != 11 || page.Data[9].Duration != 20 {
		t.Fatalf("expected items 11-20, got %v..%v", page.Data[0].Duration, page.Data[9].Duration)
	}
}

func TestListDefaultsAndCaps(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	page, err := svc.List(ctx, 1, ListQuery{Page: -3, Limit: 1000, SortBy: "bogus", Order: "sideways"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Meta.Page != 1 || page.Meta.Limit != maxLimit {
		t.Fatalf("expected normalized paging, got %#v", page.Meta)
	}
}

func TestStats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	durations := []float64{10, 20, 30}
	audioSizes := []int64{0, 100, 200}
	for i := range durations {
		sess := Session{UserID: 5, Text: "t", Duration: durations[i], AudioSize: audioSizes[i]}
		if audioSizes[i] > 0 {
			sess.AudioURL = fmt.Sprintf("5/a%d.webm", i)
		}
		if err := store.Insert(ctx, &sess); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, 5)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSessions != 3 || stats.TotalDuration != 60 || stats.AverageDuration != 20 || stats.TotalAudioSize != 300 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	empty, err := svc.Stats(ctx, 99)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if empty.TotalSessions != 0 || empty.AverageDuration != 0 {
		t.Fatalf("expected zero stats without division by zero, got %#v", empty)
	}
}
