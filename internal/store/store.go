package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrVersionMismatch is returned by WriteIf when the document changed (or
// appeared/disappeared) since the version the caller read.
var ErrVersionMismatch = errors.New("document version mismatch")

// Snapshot is the result of reading a path: the raw document plus the
// version to hand back to WriteIf for a conditional overwrite.
type Snapshot struct {
	Value   json.RawMessage
	Version int64
}

// Decode unmarshals the snapshot document into dest.
func (s *Snapshot) Decode(dest interface{}) error {
	return json.Unmarshal(s.Value, dest)
}

// Event describes a change observed by a watcher.
type Event struct {
	Path    string
	Value   json.RawMessage
	Deleted bool
}

// Store is the path-keyed document store the ledger, catalog and directory
// are written against. Individual operations are atomic per path; there is
// no atomicity across paths (see Update).
type Store interface {
	// Read returns the document at path, or nil when absent.
	Read(ctx context.Context, path string) (*Snapshot, error)

	// Write unconditionally creates or replaces the document at path.
	Write(ctx context.Context, path string, value interface{}) error

	// WriteIf replaces the document at path only when its current version
	// matches. Version 0 means "create only if absent". Returns
	// ErrVersionMismatch otherwise.
	WriteIf(ctx context.Context, path string, value interface{}, version int64) error

	// Update applies a multi-path write. Each path is written independently;
	// when only some writes land the error is a *PartialWriteError naming
	// which paths succeeded.
	Update(ctx context.Context, values map[string]interface{}) error

	// Delete removes the document at path. Deleting an absent path is not
	// an error.
	Delete(ctx context.Context, path string) error

	// List returns every document whose path starts with prefix.
	List(ctx context.Context, prefix string) (map[string]json.RawMessage, error)

	// Watch invokes fn for every subsequent change under prefix until the
	// returned stop function is called or ctx is cancelled.
	Watch(ctx context.Context, prefix string, fn func(Event)) (func(), error)
}

// Join builds a path from segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// ProviderError wraps a backend failure (network, connection, SQL). It is a
// distinct family from business-rule rejections so callers can decide to
// retry the whole operation.
type ProviderError struct {
	Op   string
	Path string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PartialWriteError reports a fan-out in which some path writes landed and
// others failed. Callers may retry only the failed paths; reissuing the
// whole operation would duplicate already-written records.
type PartialWriteError struct {
	Succeeded []string
	Failed    []string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d succeeded %v, %d failed %v: %v",
		len(e.Succeeded), e.Succeeded, len(e.Failed), e.Failed, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
