package chalkboard

// Functional options applied by New. Options record overrides; defaults
// for anything left unset are filled in after all options run.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/config"
	"github.com/chalkboard-ai/chalkboard/internal/identity"
	"github.com/chalkboard-ai/chalkboard/internal/kv"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithConfig replaces the environment-derived configuration.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.cfg = cfg
		return nil
	}
}

// WithStore replaces the persistence backend. The default is in-memory,
// or SQLite when CHALKBOARD_SQLITE_PATH is set.
func WithStore(store kv.Store) Option {
	return func(c *Client) error {
		if store == nil {
			return fmt.Errorf("store must not be nil")
		}
		c.store = store
		return nil
	}
}

// WithCompleter replaces the completion backend. Used by tests and by
// embedders with their own provider plumbing.
func WithCompleter(comp Completer) Option {
	return func(c *Client) error {
		if comp == nil {
			return fmt.Errorf("completer must not be nil")
		}
		c.comp = comp
		return nil
	}
}

// WithIdentityProvider replaces the teacher identity source.
func WithIdentityProvider(p identity.Provider) Option {
	return func(c *Client) error {
		if p == nil {
			return fmt.Errorf("identity provider must not be nil")
		}
		c.ident = p
		return nil
	}
}

// WithLogger replaces the default stdout JSON logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		c.logSet = true
		return nil
	}
}

// WithHTTPTimeout bounds each completion and identity request. Prefer
// per-request context deadlines; this is a coarse safety net.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.httpTimeout = d
		return nil
	}
}

// WithDebugLogging dumps completion HTTP traffic to the logger when
// enabled. Also switched on by CHALKBOARD_DEBUG=true or DEBUG=true.
// Request bodies include conversation text; keep it out of production.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.debug = enabled
		return nil
	}
}
