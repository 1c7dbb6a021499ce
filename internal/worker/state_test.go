package worker

import (
	"sync"
	"sync/atomic"
	"testing"

	"fabricguide/internal/models"
)

func TestConversationStateTransitions(t *testing.T) {
	state := newConversationState()

	if state.phase(1) != PhaseIdle {
		t.Fatalf("new conversation should be idle")
	}
	if !state.begin(1) {
		t.Fatalf("begin should succeed on idle conversation")
	}
	if state.begin(1) {
		t.Fatalf("begin should fail while awaiting reply")
	}
	if !state.begin(2) {
		t.Fatalf("other conversations are independent")
	}
	state.setTyping(1, true)
	if !state.isTyping(1) || state.phase(1) != PhaseAwaitingReply {
		t.Fatalf("expected typing and awaiting reply")
	}
	state.finish(1)
	if state.isTyping(1) || state.phase(1) != PhaseIdle {
		t.Fatalf("finish should return to idle")
	}
}

func TestConversationStateBeginIsExclusive(t *testing.T) {
	state := newConversationState()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state.begin(9) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestConversationStateHistoryCache(t *testing.T) {
	state := newConversationState()

	state.appendHistory(1, &models.Message{ID: 1})
	if _, ok := state.getHistory(1); ok {
		t.Fatalf("append must not create an uncached history")
	}

	state.setHistory(1, []*models.Message{{ID: 1}})
	state.appendHistory(1, &models.Message{ID: 2}, &models.Message{ID: 3})
	history, ok := state.getHistory(1)
	if !ok || len(history) != 3 || history[2].ID != 3 {
		t.Fatalf("history not updated: %#v", history)
	}

	history[0] = nil
	again, _ := state.getHistory(1)
	if again[0] == nil {
		t.Fatalf("getHistory must return a copy")
	}

	state.dropHistory(1)
	if _, ok := state.getHistory(1); ok {
		t.Fatalf("dropHistory did not clear entry")
	}
	state.setHistory(2, nil)
	state.reset()
	if _, ok := state.getHistory(2); ok {
		t.Fatalf("reset did not clear caches")
	}
}
