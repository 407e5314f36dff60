// Package blob provides uniform binary object storage over either the local
// filesystem or an S3-compatible remote store. Callers address content by a
// pointer, which is a relative key on the local backend and a public URL on
// the remote backend; Get, Delete and Size accept either form.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// DefaultExt is the audio container extension used when the source
// filename carries none.
const DefaultExt = ".webm"

// ErrNotFound is returned by Get when no object exists at the pointer.
var ErrNotFound = errors.New("blob not found")

// Backend selector values for Config.Backend.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

type Store interface {
	// Put writes data under key and returns the pointer callers should
	// persist. Existing content at the key is overwritten.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the full content at the pointer, or ErrNotFound.
	Get(ctx context.Context, pointer string) ([]byte, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, pointer string) error

	// Size reports the object's byte size, or 0 if it is absent.
	Size(ctx context.Context, pointer string) (int64, error)
}

// Config selects and parameterizes a backend. Exactly one backend is chosen
// at process start; nothing outside Open branches on the backend identity.
type Config struct {
	Backend  string
	LocalDir string

	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

// Open constructs the configured backend. A remote selection with missing
// endpoint, credentials or bucket fails here, at startup, not at first use.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocal(cfg.LocalDir)
	case BackendRemote:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Key derives the storage key for a session's audio:
// {ownerID}/{sessionID}{ext}. The extension comes from the uploaded
// filename, falling back to DefaultExt.
func Key(ownerID int64, sessionID, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("%d/%s%s", ownerID, sessionID, ext)
}

// ContentTypeForKey maps a key or filename extension to its audio MIME type.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
