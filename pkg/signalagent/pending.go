package signalagent

import (
	"sync"
	"time"
)

// pendingRequest is a single in-flight command awaiting its response.
// The channel is buffered and receives at most one message.
type pendingRequest struct {
	seq     int
	created time.Time
	ch      chan Message
}

// pendingTable correlates outgoing sequence ids with their response slots.
// It is safe for concurrent use by the receive goroutine and command
// callers. A slot is fulfilled exactly once: resolution removes it from the
// table, so late or duplicate resolutions find nothing and are no-ops.
type pendingTable struct {
	mu    sync.Mutex
	slots map[int]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		slots: make(map[int]*pendingRequest),
	}
}

// register creates a pending slot for the given sequence id.
func (t *pendingTable) register(seq int) *pendingRequest {
	req := &pendingRequest{
		seq:     seq,
		created: time.Now(),
		ch:      make(chan Message, 1),
	}

	t.mu.Lock()
	t.slots[seq] = req
	t.mu.Unlock()

	return req
}

// resolve fulfills the slot for seq with msg. Returns false if no slot was
// pending for seq; callers must not treat that as an error, since late and
// duplicate resolutions are expected.
func (t *pendingTable) resolve(seq int, msg Message) bool {
	t.mu.Lock()
	req, ok := t.slots[seq]
	if ok {
		delete(t.slots, seq)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	req.ch <- msg
	return true
}

// resolveOldest fulfills the oldest still-pending slot with msg. Used for
// the event-confirmation fallback where the relay confirms a command with
// an event instead of a direct response. Returns false if nothing was
// pending.
func (t *pendingTable) resolveOldest(msg Message) bool {
	t.mu.Lock()
	var oldest *pendingRequest
	for _, req := range t.slots {
		if oldest == nil || req.seq < oldest.seq {
			oldest = req
		}
	}
	if oldest != nil {
		delete(t.slots, oldest.seq)
	}
	t.mu.Unlock()

	if oldest == nil {
		return false
	}

	oldest.ch <- msg
	return true
}

// expire removes the slot for seq without fulfilling it. Idempotent; a slot
// already resolved is simply absent.
func (t *pendingTable) expire(seq int) {
	t.mu.Lock()
	delete(t.slots, seq)
	t.mu.Unlock()
}

// pending returns the number of unresolved slots.
func (t *pendingTable) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
