// Package memory holds the in-process conversational state of the bot:
// per-user chat history, pending image attachments and the display-name
// cache. Everything in this package lives for the lifetime of the process
// and is safe for concurrent use by the webhook dispatcher goroutines.
package memory

import "sync"

// Role identifies who produced a turn in a conversation.
type Role string

const (
	// RoleUser marks a turn written by the LINE user.
	RoleUser Role = "user"
	// RoleModel marks a turn written by the generative model.
	RoleModel Role = "model"
)

// Turn is a single utterance in a user's conversation history.
type Turn struct {
	Role Role
	Text string
}

// DefaultMaxTurns caps each user's history at ten exchanges.
const DefaultMaxTurns = 20

// ConversationStore keeps a rolling chat history per LINE user ID.
// Histories only grow through AppendExchange, which records a complete
// user/model pair, so the stored sequence always alternates user, model,
// user, model and is trimmed from the oldest end in whole pairs.
type ConversationStore struct {
	mu       sync.RWMutex
	turns    map[string][]Turn
	maxTurns int
}

// NewConversationStore creates a store capping each history at maxTurns
// individual turns. Values below one fall back to DefaultMaxTurns.
func NewConversationStore(maxTurns int) *ConversationStore {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	return &ConversationStore{
		turns:    make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// History returns a copy of the user's turns, oldest first. The copy is
// the caller's to keep; later appends never show through. Unknown users
// get an empty slice.
func (s *ConversationStore) History(userID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[userID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// AppendExchange records one completed exchange: the user's message and
// the model's reply, in that order. When the history exceeds the cap the
// oldest turns are dropped in complete pairs so a user turn never
// survives without its reply.
func (s *ConversationStore) AppendExchange(userID, userText, modelText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[userID],
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleModel, Text: modelText},
	)
	if excess := len(turns) - s.maxTurns; excess > 0 {
		if excess%2 != 0 {
			excess++
		}
		turns = turns[excess:]
	}
	s.turns[userID] = turns
}

// Len reports how many turns are stored for the user.
func (s *ConversationStore) Len(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[userID])
}

// Users reports how many distinct users currently have history.
func (s *ConversationStore) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}
