// Package push holds the live-delivery side of notifications: an
// in-process registry of connected subscribers and a Redis bridge that
// fans deliveries out across instances. Both are ephemeral caches over
// the durable notification store, never a source of truth: a recipient
// with no live connection finds the row on its next fetch.
package push

import (
	"sync"

	"github.com/tracklite-io/tracklite/internal/domain"
)

const subscriberBuffer = 16

// Subscriber is one live connection for a recipient.
type Subscriber struct {
	userID string
	ch     chan domain.Notification
	once   sync.Once
}

// C returns the channel delivering notifications to this subscriber.
func (s *Subscriber) C() <-chan domain.Notification {
	return s.ch
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Registry maps recipient ids to their live subscribers.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a live connection for userID.
func (r *Registry) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		userID: userID,
		ch:     make(chan domain.Notification, subscriberBuffer),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[userID] == nil {
		r.subs[userID] = make(map[*Subscriber]struct{})
	}
	r.subs[userID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	if set, ok := r.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.subs, sub.userID)
		}
	}
	r.mu.Unlock()
	sub.close()
}

// Deliver hands the notification to every live subscriber for its
// recipient, never blocking: a slow consumer with a full buffer is
// skipped, since reconnect triggers a full re-fetch anyway. Returns the
// number of subscribers that received the notification.
func (r *Registry) Deliver(n domain.Notification) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for sub := range r.subs[n.RecipientID] {
		select {
		case sub.ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

// ConnectionCount reports live subscribers for a recipient.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[userID])
}
