package client

import "sync"

// UnreadTracker counts unseen messages per room. Read receipts are
// all-or-nothing per room: activating a room zeroes its counter, there is no
// per-message decrement.
type UnreadTracker struct {
	mu     sync.Mutex
	selfID string
	counts map[string]int
}

// NewUnreadTracker builds a tracker for the local user.
func NewUnreadTracker(selfID string) *UnreadTracker {
	return &UnreadTracker{selfID: selfID, counts: make(map[string]int)}
}

// OnMessage bumps the room's counter unless the message is the user's own or
// the room is currently on screen.
func (t *UnreadTracker) OnMessage(roomID, senderID string, isActiveRoom bool) {
	if senderID == t.selfID || isActiveRoom {
		return
	}
	t.mu.Lock()
	t.counts[roomID]++
	t.mu.Unlock()
}

// OnActivate clears the room's counter.
func (t *UnreadTracker) OnActivate(roomID string) {
	t.mu.Lock()
	delete(t.counts, roomID)
	t.mu.Unlock()
}

// Count returns the current unread count for the room.
func (t *UnreadTracker) Count(roomID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[roomID]
}
