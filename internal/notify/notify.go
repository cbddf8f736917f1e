// Package notify provides change notification for editing-engine managers.
//
// Each manager owns its own Notifier and publishes typed Change values under
// dot-separated topics such as "selection.changed" or "history.undo".
// Observers subscribe to every change or to a topic prefix:
//
//	sub := n.SubscribeTopic("history", func(c notify.Change) { ... })
//	defer sub.Unsubscribe()
//
// Delivery is synchronous and happens outside the notifier lock, so
// observers may call back into the publishing manager.
package notify

import (
	"sort"
	"sync"
)

// Well-known topics published by the editing engine.
const (
	TopicSelectionChanged = "selection.changed"
	TopicMarqueeUpdated   = "selection.marquee"

	TopicAligned     = "layout.aligned"
	TopicDistributed = "layout.distributed"
	TopicMoved       = "layout.moved"

	TopicGroupCreated   = "group.created"
	TopicGroupDestroyed = "group.destroyed"
	TopicGroupChanged   = "group.changed"

	TopicElementInserted = "scene.inserted"
	TopicElementRemoved  = "scene.removed"
	TopicElementLocked   = "scene.locked"
	TopicElementHidden   = "scene.hidden"
	TopicElementUpdated  = "scene.updated"
	TopicSceneRestored   = "scene.restored"

	TopicHistorySaved    = "history.saved"
	TopicHistoryUndo     = "history.undo"
	TopicHistoryRedo     = "history.redo"
	TopicHistoryJump     = "history.jump"
	TopicHistoryCleared  = "history.cleared"
	TopicHistoryRejected = "history.rejected"

	TopicGuidesUpdated = "guides.updated"
	TopicGuidesCleared = "guides.cleared"

	TopicBatchNoop = "batch.noop"
)

// Change is a single notification.
type Change struct {
	// Topic is the dot-separated event name.
	Topic string

	// IDs are the element ids the change concerns, if any.
	IDs []string

	// Source identifies the component that published the change.
	Source string

	// Message is a human-readable description, used for no-op reports.
	Message string

	// Detail carries topic-specific data.
	Detail any
}

// Observer is called when a change is published.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	topic    string
	notifier *Notifier
}

// Unsubscribe removes this subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
		s.notifier = nil
	}
}

// Topic returns the subscribed topic prefix, empty for global observers.
func (s *Subscription) Topic() string {
	return s.topic
}

// Notifier manages change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	// Observers receiving every change
	globalObservers map[uint64]Observer

	// Observers keyed by topic prefix
	topicObservers map[string]map[uint64]Observer

	nextID uint64
	closed bool
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		globalObservers: make(map[uint64]Observer),
		topicObservers:  make(map[string]map[uint64]Observer),
	}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.globalObservers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribeTopic registers an observer for a topic and its sub-topics.
// Subscribing to "group" receives "group.created" and "group.destroyed".
func (n *Notifier) SubscribeTopic(topic string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.topicObservers[topic] == nil {
		n.topicObservers[topic] = make(map[uint64]Observer)
	}
	n.topicObservers[topic][id] = observer

	return &Subscription{id: id, topic: topic, notifier: n}
}

// Publish sends a change to all matching observers.
func (n *Notifier) Publish(change Change) {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()

	if !closed {
		n.deliver(change)
	}
}

// Emit is a convenience for Publish with a topic, source and ids.
func (n *Notifier) Emit(topic, source string, ids ...string) {
	n.Publish(Change{Topic: topic, Source: source, IDs: ids})
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := len(n.globalObservers)
	for _, obs := range n.topicObservers {
		count += len(obs)
	}
	return count
}

// Close stops delivery and drops every subscription. It is safe to call
// Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	clear(n.globalObservers)
	clear(n.topicObservers)
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)

	for topic, observers := range n.topicObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.topicObservers, topic)
		}
	}
}

// deliver calls every matching observer in subscription order.
func (n *Notifier) deliver(change Change) {
	n.mu.RLock()

	matched := make(map[uint64]Observer)
	for id, obs := range n.globalObservers {
		matched[id] = obs
	}
	for topic, observers := range n.topicObservers {
		if topic == change.Topic || isParentTopic(topic, change.Topic) {
			for id, obs := range observers {
				matched[id] = obs
			}
		}
	}

	n.mu.RUnlock()

	ids := make([]uint64, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		matched[id](change)
	}
}

// isParentTopic reports whether parent is a prefix topic of child,
// e.g. "group" is the parent of "group.created".
func isParentTopic(parent, child string) bool {
	if parent == "" {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '.'
}
