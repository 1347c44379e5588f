// Package watch turns the per-user collections into live snapshot streams.
//
// Writes go through a Repository, which publishes a change on the Notifier
// after every successful write. Watch streams re-read the affected
// collections and emit a full snapshot.
package watch

import "sync"

// Collection names.
const (
	Batches     = "batches"
	Vessels     = "vessels"
	Ingredients = "ingredients"
)

// Notifier is an in-process pub/sub of collection changes, keyed by user.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	collections map[string]bool
	ch          chan struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe registers interest in changes to the given collections of one
// user. The returned channel receives a signal after one or more changes;
// signals that arrive while one is pending are merged. Call cancel to
// unsubscribe.
func (n *Notifier) Subscribe(userID string, collections ...string) (<-chan struct{}, func()) {
	sub := &subscription{
		collections: make(map[string]bool, len(collections)),
		ch:          make(chan struct{}, 1),
	}
	for _, c := range collections {
		sub.collections[c] = true
	}

	n.mu.Lock()
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[*subscription]struct{})
	}
	n.subs[userID][sub] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[userID], sub)
			if len(n.subs[userID]) == 0 {
				delete(n.subs, userID)
			}
			n.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish signals every subscriber of the user's collection. It never
// blocks.
func (n *Notifier) Publish(userID, collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for sub := range n.subs[userID] {
		if !sub.collections[collection] {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions for a user.
func (n *Notifier) Subscribers(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[userID])
}
