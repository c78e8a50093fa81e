package chat

import "sync"

// Hub fans change notifications out to live subscriptions. It carries no
// payload: a notified subscription re-queries its full result set, which
// gives every observer the snapshot-on-every-change contract and makes
// re-subscription a plain replay. Notifications are coalesced per
// subscriber, so the hub never blocks on a slow consumer.
type Hub struct {
	mu       sync.RWMutex
	chatSubs map[string]map[*waiter]struct{}
	userSubs map[uint64]map[*waiter]struct{}
}

type waiter struct {
	notify chan struct{}
}

func newWaiter() *waiter {
	return &waiter{notify: make(chan struct{}, 1)}
}

func (w *waiter) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func NewHub() *Hub {
	return &Hub{
		chatSubs: make(map[string]map[*waiter]struct{}),
		userSubs: make(map[uint64]map[*waiter]struct{}),
	}
}

func (h *Hub) attachChat(chatID string, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.chatSubs[chatID]
	if !ok {
		set = make(map[*waiter]struct{})
		h.chatSubs[chatID] = set
	}
	set[w] = struct{}{}
}

func (h *Hub) detachChat(chatID string, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.chatSubs[chatID]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.chatSubs, chatID)
		}
	}
}

func (h *Hub) attachUser(userID uint64, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.userSubs[userID]
	if !ok {
		set = make(map[*waiter]struct{})
		h.userSubs[userID] = set
	}
	set[w] = struct{}{}
}

func (h *Hub) detachUser(userID uint64, w *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.userSubs[userID]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.userSubs, userID)
		}
	}
}

// NotifyChat wakes every observer of a chat's message stream.
func (h *Hub) NotifyChat(chatID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.chatSubs[chatID] {
		w.wake()
	}
}

// NotifyUser wakes every observer of a user's chat list.
func (h *Hub) NotifyUser(userID uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.userSubs[userID] {
		w.wake()
	}
}
