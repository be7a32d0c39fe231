package chalkboard

import (
	"github.com/chalkboard-ai/chalkboard/internal/completion"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/mailbox"
)

// ErrNotFound is returned by store implementations for a missing key.
var ErrNotFound = kv.ErrNotFound

// ErrMissingAPIKey is returned when a hosted model is requested without a
// configured OpenRouter key. Raised before any network activity.
var ErrMissingAPIKey = completion.ErrMissingAPIKey

// ErrClosed is returned when work is scheduled after Close.
var ErrClosed = mailbox.ErrMailboxClosed
