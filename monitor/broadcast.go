package monitor

import "sync"

// broadcastBuffer is the per-subscriber buffer size. Snapshots that
// find a subscriber's buffer full are dropped for that subscriber and
// surfaced through Update.Skipped.
const broadcastBuffer = 100

// Update is one broadcast delivery. Skipped reports how many snapshots
// were dropped for this subscriber since its previous delivery; it is
// informational and never fatal.
type Update struct {
	Stats   Stats
	Skipped uint64
}

// Subscription is one consumer's view of a monitor's snapshot stream.
type Subscription struct {
	ch      chan Update
	skipped uint64 // guarded by the owning broadcaster's mutex
}

// C returns the delivery channel. It is closed exactly once, when the
// monitor stops or the subscription is cancelled.
func (s *Subscription) C() <-chan Update {
	return s.ch
}

// broadcaster fans snapshots out to any number of subscribers without
// ever blocking the producer. Slow subscribers lose snapshots; they
// never delay fast ones.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new consumer. Subscribing after close yields
// an already-closed subscription.
func (b *broadcaster) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Update, broadcastBuffer)}
	b.mu.Lock()
	if b.closed {
		close(sub.ch)
	} else {
		b.subs[sub] = struct{}{}
	}
	b.mu.Unlock()
	return sub
}

// Unsubscribe detaches sub and closes its channel. Unsubscribing an
// unknown or already-detached subscription is a no-op.
func (b *broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish delivers s to every subscriber with buffer room and counts a
// skip for every subscriber without. The accumulated skip count rides
// along with the next snapshot that fits.
func (b *broadcaster) Publish(s Stats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- Update{Stats: s, Skipped: sub.skipped}:
			sub.skipped = 0
		default:
			sub.skipped++
		}
	}
}

// Close closes every subscription exactly once and drops any further
// publishes.
func (b *broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
