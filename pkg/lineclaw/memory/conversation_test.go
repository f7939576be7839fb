package memory

import (
	"fmt"
	"sync"
	"testing"
)

func TestConversationStoreAppendAndHistory(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(20)
	store.AppendExchange("U1", "hello", "hi there")
	store.AppendExchange("U1", "how are you", "doing well")

	history := store.History("U1")
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(history))
	}

	expected := []Turn{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleModel, Text: "hi there"},
		{Role: RoleUser, Text: "how are you"},
		{Role: RoleModel, Text: "doing well"},
	}
	for i, turn := range expected {
		if history[i] != turn {
			t.Errorf("turn %d: expected %+v, got %+v", i, turn, history[i])
		}
	}
}

func TestConversationStoreTrimsOldestPairs(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(6)
	for i := 0; i < 5; i++ {
		store.AppendExchange("U1", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	history := store.History("U1")
	if len(history) != 6 {
		t.Fatalf("expected history capped at 6 turns, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Text != "question 2" {
		t.Errorf("expected oldest surviving turn to be question 2, got %+v", history[0])
	}
	if history[5].Role != RoleModel || history[5].Text != "answer 4" {
		t.Errorf("expected newest turn to be answer 4, got %+v", history[5])
	}

	// The trimmed history must still alternate user/model.
	for i, turn := range history {
		want := RoleUser
		if i%2 == 1 {
			want = RoleModel
		}
		if turn.Role != want {
			t.Errorf("turn %d: expected role %q, got %q", i, want, turn.Role)
		}
	}
}

func TestConversationStoreStabilizesAtCap(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(DefaultMaxTurns)
	for i := 1; i <= 25; i++ {
		store.AppendExchange("U1", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	history := store.History("U1")
	if len(history) != DefaultMaxTurns {
		t.Fatalf("expected history to stabilize at %d turns, got %d", DefaultMaxTurns, len(history))
	}
	// The ten most recent exchanges survive: 16 through 25.
	if history[0].Text != "question 16" {
		t.Errorf("expected oldest surviving turn to be question 16, got %q", history[0].Text)
	}
	if history[len(history)-1].Text != "answer 25" {
		t.Errorf("expected newest turn to be answer 25, got %q", history[len(history)-1].Text)
	}
}

func TestConversationStoreOddCapKeepsWholePairs(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(5)
	store.AppendExchange("U1", "a", "b")
	store.AppendExchange("U1", "c", "d")
	store.AppendExchange("U1", "e", "f")

	history := store.History("U1")
	if len(history) != 4 {
		t.Fatalf("expected 4 turns under an odd cap, got %d", len(history))
	}
	if history[0].Text != "c" {
		t.Errorf("expected oldest pair dropped whole, got first turn %+v", history[0])
	}
}

func TestConversationStoreIsolatesUsers(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(20)
	store.AppendExchange("U1", "alpha", "one")
	store.AppendExchange("U2", "beta", "two")

	if got := store.Len("U1"); got != 2 {
		t.Errorf("expected 2 turns for U1, got %d", got)
	}
	if got := store.Len("U2"); got != 2 {
		t.Errorf("expected 2 turns for U2, got %d", got)
	}
	if got := store.History("U1")[0].Text; got != "alpha" {
		t.Errorf("expected U1 history to start with alpha, got %q", got)
	}
	if got := store.Users(); got != 2 {
		t.Errorf("expected 2 users, got %d", got)
	}
}

func TestConversationStoreHistoryIsACopy(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(20)
	store.AppendExchange("U1", "original", "reply")

	history := store.History("U1")
	history[0].Text = "mutated"

	if got := store.History("U1")[0].Text; got != "original" {
		t.Errorf("store history mutated through returned copy: %q", got)
	}

	if got := store.History("unknown"); len(got) != 0 {
		t.Errorf("expected empty history for unknown user, got %d turns", len(got))
	}
}

func TestConversationStoreConcurrentAppends(t *testing.T) {
	t.Parallel()

	store := NewConversationStore(200)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				store.AppendExchange(fmt.Sprintf("U%d", n), "ping", "pong")
				store.History(fmt.Sprintf("U%d", n))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		if got := store.Len(fmt.Sprintf("U%d", i)); got != 10 {
			t.Errorf("user U%d: expected 10 turns, got %d", i, got)
		}
	}
}
