package memory

import "sync"

// Attachment is a downloaded media payload waiting to be paired with a
// follow-up text message.
type Attachment struct {
	Data []byte
	MIME string
}

// PendingStore holds at most one attachment per user. Sending a new image
// before the follow-up question replaces the previous one; consuming it
// removes it, so an attachment is used for exactly one model call.
type PendingStore struct {
	mu      sync.Mutex
	pending map[string]Attachment
}

// NewPendingStore creates an empty pending-attachment store.
func NewPendingStore() *PendingStore {
	return &PendingStore{pending: make(map[string]Attachment)}
}

// Put stores the attachment for the user, replacing any previous one.
func (s *PendingStore) Put(userID string, att Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = att
}

// Take removes and returns the user's pending attachment. The second
// return is false when nothing was pending. Remove-and-return is a single
// critical section, so two concurrent takers can never both receive it.
func (s *PendingStore) Take(userID string) (Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	return att, ok
}

// Len reports how many users currently have an attachment waiting.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
