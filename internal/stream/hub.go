// Package stream fans committed store mutations out to live views. Delivery
// is best-effort: a subscriber that falls behind loses events and catches up
// from its next snapshot.
package stream

import (
	"sync"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/metrics"
	"github.com/curioapp/curio/internal/store"
)

// subscriptionBuffer bounds how far a subscriber may lag before events are
// dropped on the floor.
const subscriptionBuffer = 64

// Bridge mirrors locally-published events to other server instances.
type Bridge interface {
	Mirror(ownerID string, ch store.Change)
}

// Hub is the in-process change broker. It implements store.ChangeSink.
// Events are scoped per owner: a subscription only ever sees its own
// owner's changes.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	bridge Bridge
	log    logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscription]struct{}),
		log:  log,
	}
}

// AttachBridge sets the cross-instance bridge. Must be called before the
// first Publish.
func (h *Hub) AttachBridge(b Bridge) {
	h.bridge = b
}

// Publish delivers a change to every local subscription for ownerID and
// mirrors it across the bridge when one is attached.
func (h *Hub) Publish(ownerID string, ch store.Change) {
	metrics.ChangesPublishedTotal.WithLabelValues(string(ch.Table), string(ch.Kind)).Inc()
	h.deliver(ownerID, ch)
	if h.bridge != nil {
		h.bridge.Mirror(ownerID, ch)
	}
}

// deliver fans out to local subscribers only. The Redis bridge calls this for
// remote events so they are not mirrored back out again.
func (h *Hub) deliver(ownerID string, ch store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ownerID] {
		select {
		case sub.ch <- ch:
		default:
			// Subscriber too slow. Drop; the next snapshot resynchronizes.
			metrics.ChangesDroppedTotal.Inc()
			h.log.Warn("change event dropped",
				logger.String("owner", ownerID),
				logger.String("table", string(ch.Table)),
				logger.String("kind", string(ch.Kind)))
		}
	}
}

// BroadcastResync asks every live subscription, across all owners, to refetch
// a snapshot. Driven by the periodic resync scheduler.
func (h *Hub) BroadcastResync() {
	h.mu.Lock()
	owners := make([]string, 0, len(h.subs))
	for owner := range h.subs {
		owners = append(owners, owner)
	}
	h.mu.Unlock()

	for _, owner := range owners {
		h.deliver(owner, store.Change{Kind: store.Resync})
	}
}

// Subscribe opens a change channel scoped to ownerID. The caller must Close
// the subscription when its view goes away.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	sub := &Subscription{
		owner: ownerID,
		ch:    make(chan store.Change, subscriptionBuffer),
		hub:   h,
	}

	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	h.mu.Unlock()

	metrics.SubscriptionsActive.Inc()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.owner]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.owner)
	}
	close(sub.ch)
	metrics.SubscriptionsActive.Dec()
}

// Subscription is one live, owner-scoped change channel.
type Subscription struct {
	owner string
	ch    chan store.Change
	hub   *Hub
	once  sync.Once
}

// Events returns the receive side of the channel. It is closed by Close; no
// events are delivered after that.
func (s *Subscription) Events() <-chan store.Change {
	return s.ch
}

// Close tears the subscription down. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}
