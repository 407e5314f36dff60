package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matozai/scribe/internal/blob"
)

// Service couples the session record lifecycle to the audio blob lifecycle.
// Ownership and existence checks happen here, once; callers never re-derive
// them.
type Service struct {
	store  Store
	blobs  blob.Store
	logger zerolog.Logger
}

func NewService(store Store, blobs blob.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger.With().Str("component", "sessions").Logger(),
	}
}

// CreateInput carries a create request. AudioName is the uploaded filename,
// used only for its extension.
type CreateInput struct {
	Text      string
	Duration  float64
	Script    Script
	AudioData []byte
	AudioName string
}

// Create persists the record first, so it always has an id, then uploads
// the audio and patches the record with pointer and size. If the upload
// fails the text-only record stays and the error propagates; there is no
// rollback.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (Session, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Session{}, fmt.Errorf("%w: text is required", ErrInvalid)
	}
	if in.Duration < 0 {
		return Session{}, fmt.Errorf("%w: duration must not be negative", ErrInvalid)
	}

	script := in.Script
	if script == "" {
		script = DefaultScript
	}
	if !script.Valid() {
		return Session{}, fmt.Errorf("%w: unknown script %q", ErrInvalid, script)
	}

	sess := Session{
		UserID:   userID,
		Text:     in.Text,
		Duration: in.Duration,
		Script:   script,
	}
	if err := s.store.Insert(ctx, &sess); err != nil {
		return Session{}, err
	}

	s.logger.Info().Int64("user_id", userID).Str("session_id", sess.ID).Msg("session created")

	if len(in.AudioData) > 0 {
		key := blob.Key(userID, sess.ID, in.AudioName)

		pointer, err := s.blobs.Put(ctx, key, in.AudioData, blob.ContentTypeForKey(key))
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("audio upload failed, session kept without audio")
			return Session{}, fmt.Errorf("upload audio for session %s: %w", sess.ID, err)
		}

		size := int64(len(in.AudioData))
		sess, err = s.store.Update(ctx, sess.ID, UpdateFields{AudioURL: &pointer, AudioSize: &size})
		if err != nil {
			return Session{}, err
		}

		s.logger.Info().
			Str("session_id", sess.ID).
			Str("audio_url", pointer).
			Int64("audio_size", size).
			Msg("session audio attached")
	}

	return s.withRetrievalURL(sess), nil
}

// ListQuery is a page request; zero values take the defaults.
type ListQuery struct {
	Page   int
	Limit  int
	SortBy SortField
	Order  SortOrder
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (q ListQuery) normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if !q.SortBy.Valid() {
		q.SortBy = SortByCreatedAt
	}
	if !q.Order.Valid() {
		q.Order = OrderDesc
	}
	return q
}

// Page is one page of a user's sessions plus paging metadata.
type Page struct {
	Data []Session `json:"data"`
	Meta PageMeta  `json:"meta"`
}

type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

func (s *Service) List(ctx context.Context, userID int64, query ListQuery) (Page, error) {
	q := query.normalize()

	items, err := s.store.List(ctx, userID, ListOptions{
		Skip:   (q.Page - 1) * q.Limit,
		Take:   q.Limit,
		SortBy: q.SortBy,
		Order:  q.Order,
	})
	if err != nil {
		return Page{}, err
	}

	total, err := s.store.Count(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	for i := range items {
		items[i] = s.withRetrievalURL(items[i])
	}

	return Page{
		Data: items,
		Meta: PageMeta{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: (total + int64(q.Limit) - 1) / int64(q.Limit),
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, userID int64, id string) (Session, error) {
	sess, err := s.owned(ctx, userID, id)
	if err != nil {
		return Session{}, err
	}
	return s.withRetrievalURL(sess), nil
}

// UpdateInput mutates transcript text and script only; duration and audio
// fields never change through this path.
type UpdateInput struct {
	Text   *string
	Script *Script
}

func (s *Service) Update(ctx context.Context, userID int64, id string, in UpdateInput) (Session, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return Session{}, err
	}

	if in.Text != nil && strings.TrimSpace(*in.Text) == "" {
		return Session{}, fmt.Errorf("%w: text must not be empty", ErrInvalid)
	}
	if in.Script != nil && !in.Script.Valid() {
		return Session{}, fmt.Errorf("%w: unknown script %q", ErrInvalid, *in.Script)
	}

	sess, err := s.store.Update(ctx, id, UpdateFields{Text: in.Text, Script: in.Script})
	if err != nil {
		return Session{}, err
	}

	s.logger.Info().Str("session_id", id).Msg("session updated")
	return s.withRetrievalURL(sess), nil
}

// Remove deletes the session and its audio blob. Blob deletion is
// best-effort: a failure is logged and swallowed so the record can still be
// deleted, preferring a leaked blob over an undeletable session.
func (s *Service) Remove(ctx context.Context, userID int64, id string) error {
	sess, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if sess.HasAudio() {
		if err := s.blobs.Delete(ctx, sess.AudioURL); err != nil {
			s.logger.Error().Err(err).
				Str("session_id", id).
				Str("audio_url", sess.AudioURL).
				Msg("audio delete failed, removing record anyway")
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", userID).Str("session_id", id).Msg("session deleted")
	return nil
}

// GetAudio returns the session's audio bytes and content type. A session
// without audio and a vanished blob both surface as ErrNotFound; the caller
// cannot tell them apart.
func (s *Service) GetAudio(ctx context.Context, userID int64, id string) ([]byte, string, error) {
	sess, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	if !sess.HasAudio() {
		return nil, "", fmt.Errorf("audio for session %s: %w", id, ErrNotFound)
	}

	data, err := s.blobs.Get(ctx, sess.AudioURL)
	if err != nil {
		return nil, "", err
	}

	return data, blob.ContentTypeForKey(sess.AudioURL), nil
}

func (s *Service) Stats(ctx context.Context, userID int64) (Stats, error) {
	sessions, err := s.store.List(ctx, userID, ListOptions{})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalSessions: int64(len(sessions))}
	for _, sess := range sessions {
		stats.TotalDuration += sess.Duration
		stats.TotalAudioSize += sess.AudioSize
	}
	if stats.TotalSessions > 0 {
		stats.AverageDuration = stats.TotalDuration / float64(stats.TotalSessions)
	}

	return stats, nil
}

// owned fetches the raw record and enforces ownership. Unknown id is
// ErrNotFound; existing but foreign is ErrForbidden. The two are reported
// differently on purpose.
func (s *Service) owned(ctx context.Context, userID int64, id string) (Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}

	if sess.UserID != userID {
		s.logger.Warn().
			Int64("user_id", userID).
			Int64("owner_id", sess.UserID).
			Str("session_id", id).
			Msg("cross-user session access denied")
		return Session{}, fmt.Errorf("session %s: %w", id, ErrForbidden)
	}

	return sess, nil
}

// withRetrievalURL rewrites a local backend pointer to the caller-facing
// audio endpoint. Remote pointers are already absolute URLs and pass
// through untouched.
func (s *Service) withRetrievalURL(sess Session) Session {
	if sess.HasAudio() && !strings.HasPrefix(sess.AudioURL, "http://") && !strings.HasPrefix(sess.AudioURL, "https://") {
		sess.AudioURL = "/api/sessions/" + sess.ID + "/audio"
	}
	return sess
}
