// Package kv defines the string-keyed blob store the core persists into,
// plus the in-memory and SQLite implementations. Keys in use:
// "conversations" (full list), "teachers" (full list), "activeConversation"
// (advisory last-active id) and one "messages_<id>" key per conversation.
//
// There is no transactional guarantee across keys; a crash between writing
// the conversation list and its message log can orphan either side. Callers
// must treat a missing log for a known conversation as a reportable failure.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a plain key-value store over JSON-serialized blobs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
