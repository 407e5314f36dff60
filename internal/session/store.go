package session

import "context"

// UpdateFields is a partial update; nil fields are left untouched.
type UpdateFields struct {
	Text      *string
	Script    *Script
	AudioURL  *string
	AudioSize *int64
}

// ListOptions control pagination and ordering of a user's sessions.
// Take <= 0 means no limit.
type ListOptions struct {
	Skip   int
	Take   int
	SortBy SortField
	Order  SortOrder
}

// Store is the persistent session record store. Implementations are
// responsible for their own write atomicity; callers do not serialize
// access to a single id.
type Store interface {
	// Insert persists a new record, assigning its id and timestamps.
	Insert(ctx context.Context, s *Session) error

	// Get returns the record, or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// Update applies the non-nil fields and returns the updated record,
	// or ErrNotFound.
	Update(ctx context.Context, id string, fields UpdateFields) (Session, error)

	// Delete removes the record, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the user's sessions ordered and paged per opts.
	List(ctx context.Context, userID int64, opts ListOptions) ([]Session, error)

	// Count returns the user's total session count, unaffected by paging.
	Count(ctx context.Context, userID int64) (int64, error)
}
