// Package convstore owns conversation metadata and message logs. It keeps
// an in-memory working set (the conversation list, the active conversation
// and its loaded log) and writes through to the key-value store on every
// mutation, mirroring the persistence shape of the browser client.
package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chalkboard-ai/chalkboard/internal/kv"
	"github.com/chalkboard-ai/chalkboard/internal/model"
)

const (
	conversationsKey = "conversations"
	activeKey        = "activeConversation"
)

// Store is the conversation registry. All methods are safe for concurrent
// use; the internal mutex is held across the matching kv write so readers
// never observe memory ahead of persistence.
type Store struct {
	mu sync.RWMutex

	kv  kv.Store
	log zerolog.Logger

	conversations []model.Conversation
	activeID      string
	// messages is the loaded log of the active conversation.
	messages []model.Message
}

// New builds a Store and hydrates it from the key-value store. A missing
// conversations blob means a fresh install and is not an error; a corrupt
// one is.
func New(ctx context.Context, store kv.Store, log zerolog.Logger) (*Store, error) {
	s := &Store{kv: store, log: log}

	raw, err := store.Get(ctx, conversationsKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		// fresh install
	case err != nil:
		return nil, fmt.Errorf("load conversations: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &s.conversations); err != nil {
			return nil, fmt.Errorf("decode conversations: %w", err)
		}
	}

	// The persisted active id is advisory: restore it only if it still
	// resolves to a conversation with a loadable log.
	if id, err := store.Get(ctx, activeKey); err == nil && id != "" {
		if _, ok := s.lookup(id); ok {
			if msgs, err := s.loadLog(ctx, id); err == nil {
				s.activeID = id
				s.messages = msgs
			} else {
				log.Warn().Str("conversation", id).Err(err).Msg("dropping stale active conversation")
			}
		}
	}
	return s, nil
}

// AddParams describes a conversation to create.
type AddParams struct {
	Title        string
	Model        string
	LogoURL      string
	AsstName     string
	SystemPrompt string
	TeacherID    string
}

// Add creates a conversation, persists an empty message log for it and
// makes it active. The returned id is a fresh UUID; the log key is derived
// from it once and never changes.
func (s *Store) Add(ctx context.Context, p AddParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	title := p.Title
	if title == "" {
		title = model.DefaultTitle
	}
	conv := model.Conversation{
		ID:             id,
		Title:          title,
		LastUpdated:    time.Now(),
		ContentPointer: model.ContentPointerFor(id),
		Model:          p.Model,
		LogoURL:        p.LogoURL,
		AsstName:       p.AsstName,
		SystemPrompt:   p.SystemPrompt,
		TeacherID:      p.TeacherID,
	}

	// The empty log is written before the list so a crash in between
	// leaves an unreferenced log rather than a conversation without one.
	if err := s.saveLogLocked(ctx, id, []model.Message{}); err != nil {
		return "", err
	}
	s.conversations = append(s.conversations, conv)
	if err := s.persistListLocked(ctx); err != nil {
		return "", err
	}

	s.activeID = id
	s.messages = []model.Message{}
	s.persistActiveLocked(ctx)
	return id, nil
}

// Update applies a partial update and persists the list. Returns false for
// an unknown id.
func (s *Store) Update(ctx context.Context, id string, u model.ConversationUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(id)
	if !ok {
		return false
	}
	u.Apply(c)
	if err := s.persistListLocked(ctx); err != nil {
		s.log.Error().Str("conversation", id).Err(err).Msg("persist conversation update")
	}
	return true
}

// Delete removes a conversation and its message log. Deleting the active
// conversation leaves no conversation active. Returns false for an unknown id.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	pointer := s.conversations[idx].ContentPointer
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if err := s.persistListLocked(ctx); err != nil {
		s.log.Error().Str("conversation", id).Err(err).Msg("persist conversation delete")
	}
	if err := s.kv.Delete(ctx, pointer); err != nil {
		s.log.Warn().Str("conversation", id).Err(err).Msg("delete message log")
	}

	if s.activeID == id {
		s.activeID = ""
		s.messages = nil
		s.persistActiveLocked(ctx)
	}
	return true
}

// Activate switches the active conversation and loads its log. Returns
// false when the id is unknown or the log cannot be loaded; the previous
// active conversation stays in place in that case.
func (s *Store) Activate(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(id); !ok {
		return false
	}
	msgs, err := s.loadLog(ctx, id)
	if err != nil {
		s.log.Error().Str("conversation", id).Err(err).Msg("activate: load message log")
		return false
	}
	s.activeID = id
	s.messages = msgs
	s.persistActiveLocked(ctx)
	return true
}

// ActiveID returns the active conversation id, if any.
func (s *Store) ActiveID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Has reports whether the conversation exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(id)
	return ok
}

// Get returns a copy of the conversation record.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.lookup(id); ok {
		return *c, true
	}
	return model.Conversation{}, false
}

// Conversations returns a copy of the conversation list in creation order.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ByTeacher returns all conversations owned by the teacher.
func (s *Store) ByTeacher(teacherID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Conversation
	for _, c := range s.conversations {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out
}

// Touch bumps LastUpdated and LastMessage after a completed turn.
func (s *Store) Touch(ctx context.Context, id, lastMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.lookup(id)
	if !ok {
		return
	}
	c.LastUpdated = time.Now()
	c.LastMessage = lastMessage
	if err := s.persistListLocked(ctx); err != nil {
		s.log.Error().Str("conversation", id).Err(err).Msg("persist touch")
	}
}

// lookup returns a pointer into the list; callers hold the lock.
func (s *Store) lookup(id string) (*model.Conversation, bool) {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return &s.conversations[i], true
		}
	}
	return nil, false
}

func (s *Store) persistListLocked(ctx context.Context) error {
	blob, err := json.Marshal(s.conversations)
	if err != nil {
		return fmt.Errorf("encode conversations: %w", err)
	}
	return s.kv.Set(ctx, conversationsKey, string(blob))
}

// persistActiveLocked records the advisory active id; failures are logged
// only, since the worst outcome is a cold start without a restored focus.
func (s *Store) persistActiveLocked(ctx context.Context) {
	var err error
	if s.activeID == "" {
		err = s.kv.Delete(ctx, activeKey)
	} else {
		err = s.kv.Set(ctx, activeKey, s.activeID)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("persist active conversation")
	}
}
