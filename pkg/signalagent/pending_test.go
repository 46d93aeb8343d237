package signalagent

import (
	"sync"
	"testing"
)

func TestPendingTable_ResolveDeliversMessage(t *testing.T) {
	table := newPendingTable()
	req := table.register(1)

	code := 0
	if !table.resolve(1, Message{Code: &code}) {
		t.Fatal("expected resolve to find pending slot")
	}

	msg := <-req.ch
	if msg.responseCode() != 0 {
		t.Errorf("expected code 0, got %d", msg.responseCode())
	}
	if table.pending() != 0 {
		t.Errorf("expected empty table after resolve, got %d slots", table.pending())
	}
}

func TestPendingTable_ResolveIsExactlyOnce(t *testing.T) {
	table := newPendingTable()
	table.register(7)

	code := 0
	if !table.resolve(7, Message{Code: &code}) {
		t.Fatal("first resolve should succeed")
	}
	if table.resolve(7, Message{Code: &code}) {
		t.Error("duplicate resolve should be a no-op")
	}
}

func TestPendingTable_ResolveUnknownSequence(t *testing.T) {
	table := newPendingTable()

	code := 0
	if table.resolve(42, Message{Code: &code}) {
		t.Error("resolving a never-registered sequence should be a no-op")
	}
}

func TestPendingTable_ResolveOldestPicksLowestSequence(t *testing.T) {
	table := newPendingTable()
	first := table.register(3)
	second := table.register(4)

	code := 0
	if !table.resolveOldest(Message{Code: &code}) {
		t.Fatal("expected resolveOldest to find a slot")
	}

	select {
	case <-first.ch:
	default:
		t.Fatal("expected the oldest request to be resolved first")
	}

	if !table.resolveOldest(Message{Code: &code}) {
		t.Fatal("expected second resolveOldest to find remaining slot")
	}
	select {
	case <-second.ch:
	default:
		t.Fatal("expected the remaining request to be resolved second")
	}

	if table.resolveOldest(Message{Code: &code}) {
		t.Error("resolveOldest on an empty table should be a no-op")
	}
}

func TestPendingTable_ExpireIsIdempotent(t *testing.T) {
	table := newPendingTable()
	req := table.register(5)

	table.expire(5)
	table.expire(5)

	if table.pending() != 0 {
		t.Errorf("expected empty table, got %d slots", table.pending())
	}

	select {
	case <-req.ch:
		t.Error("expired slot must not be fulfilled")
	default:
	}
}

func TestPendingTable_ConcurrentResolveAndExpire(t *testing.T) {
	table := newPendingTable()
	req := table.register(1)

	code := 0
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		table.resolve(1, Message{Code: &code})
	}()
	go func() {
		defer wg.Done()
		table.expire(1)
	}()
	wg.Wait()

	if table.pending() != 0 {
		t.Errorf("expected empty table, got %d slots", table.pending())
	}

	// Whichever won, the channel holds at most one message.
	select {
	case <-req.ch:
	default:
	}
	select {
	case <-req.ch:
		t.Error("slot fulfilled more than once")
	default:
	}
}
