package convstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// Messages returns a copy of the active conversation's loaded log.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LoadLog reads a conversation's full message log from persistence.
func (s *Store) LoadLog(ctx context.Context, convID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLog(ctx, convID)
}

func (s *Store) loadLog(ctx context.Context, convID string) ([]model.Message, error) {
	raw, err := s.kv.Get(ctx, model.ContentPointerFor(convID))
	if err != nil {
		return nil, fmt.Errorf("load log for %s: %w", convID, err)
	}
	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("decode log for %s: %w", convID, err)
	}
	return msgs, nil
}

// Append adds a message to the conversation's log and persists it. The
// active view is refreshed when the conversation is the active one.
func (s *Store) Append(ctx context.Context, convID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.logLocked(ctx, convID)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	return s.saveLogLocked(ctx, convID, msgs)
}

// SaveLog replaces the conversation's persisted log wholesale.
func (s *Store) SaveLog(ctx context.Context, convID string, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLogLocked(ctx, convID, msgs)
}

// StreamText replaces the text of the identified message in memory only.
// Streaming deltas are deliberately never persisted; the finished turn is
// saved once via EditMessage. Deltas for a conversation that is not
// active, or for a message no longer in the log, are dropped. Matching by
// id keeps deltas off messages appended or deleted while the turn streams.
func (s *Store) StreamText(convID, msgID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if convID != s.activeID {
		return
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == msgID {
			s.messages[i].Text = text
			return
		}
	}
}

// EditMessage replaces a message's text in place and refreshes its
// timestamp. Later messages are untouched. Returns false when the
// conversation or message is unknown.
func (s *Store) EditMessage(ctx context.Context, convID, msgID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.logLocked(ctx, convID)
	if err != nil {
		return false
	}
	for i := range msgs {
		if msgs[i].ID == msgID {
			msgs[i].Text = text
			msgs[i].Timestamp = time.Now()
			if err := s.saveLogLocked(ctx, convID, msgs); err != nil {
				s.log.Error().Str("conversation", convID).Err(err).Msg("persist edit")
				return false
			}
			return true
		}
	}
	return false
}

// DeleteMessage removes exactly the message with the given id. Returns
// false when the conversation or message is unknown.
func (s *Store) DeleteMessage(ctx context.Context, convID, msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.logLocked(ctx, convID)
	if err != nil {
		return false
	}
	for i := range msgs {
		if msgs[i].ID == msgID {
			msgs = append(msgs[:i], msgs[i+1:]...)
			if err := s.saveLogLocked(ctx, convID, msgs); err != nil {
				s.log.Error().Str("conversation", convID).Err(err).Msg("persist message delete")
				return false
			}
			return true
		}
	}
	return false
}

// TruncateBefore drops the message with the given id and everything after
// it, keeping only the earlier history. Used to rewind before regenerating.
func (s *Store) TruncateBefore(ctx context.Context, convID, msgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.logLocked(ctx, convID)
	if err != nil {
		return false
	}
	for i := range msgs {
		if msgs[i].ID == msgID {
			if err := s.saveLogLocked(ctx, convID, msgs[:i]); err != nil {
				s.log.Error().Str("conversation", convID).Err(err).Msg("persist truncate")
				return false
			}
			return true
		}
	}
	return false
}

// logLocked returns the working log for convID, avoiding a kv read when it
// is the loaded active log.
func (s *Store) logLocked(ctx context.Context, convID string) ([]model.Message, error) {
	if convID == s.activeID {
		msgs := make([]model.Message, len(s.messages))
		copy(msgs, s.messages)
		return msgs, nil
	}
	return s.loadLog(ctx, convID)
}

func (s *Store) saveLogLocked(ctx context.Context, convID string, msgs []model.Message) error {
	blob, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode log for %s: %w", convID, err)
	}
	if err := s.kv.Set(ctx, model.ContentPointerFor(convID), string(blob)); err != nil {
		return fmt.Errorf("persist log for %s: %w", convID, err)
	}
	if convID == s.activeID {
		s.messages = msgs
	}
	return nil
}
