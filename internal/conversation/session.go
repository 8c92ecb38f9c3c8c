package conversation

import (
	"context"
	"time"

	"github.com/radeon-ai/reasoner/internal/reasoning"
)

// Turn is one completed query/answer exchange in a session.
type Turn struct {
	Query string           `json:"query"`
	Chain *reasoning.Chain `json:"chain"`
	At    time.Time        `json:"at"`
}

// SessionContext is the durable conversational state for one session id.
type SessionContext struct {
	SessionID  string    `json:"session_id"`
	History    []Turn    `json:"history"`
	LastTopics []string  `json:"last_topics"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a copy whose slices are detached from the receiver. Chains
// inside turns are shared; they are not mutated once a merge completes.
func (s *SessionContext) Clone() *SessionContext {
	if s == nil {
		return nil
	}
	out := *s
	out.History = append([]Turn(nil), s.History...)
	out.LastTopics = append([]string(nil), s.LastTopics...)
	return &out
}

// Store persists session contexts. Implementations must be safe for
// concurrent use. Get and Put operate on copies so callers never share
// mutable state with the store.
type Store interface {
	Get(ctx context.Context, sessionID string) (*SessionContext, bool, error)
	Put(ctx context.Context, sess *SessionContext) error
	Evict(ctx context.Context, sessionID string) error
}
