// Package event is the publish/subscribe surface exposing round and
// validator state transitions to external subscribers, per spec.md
// §4.9 and §5: best-effort delivery in publication order per
// subscriber, bounded per-subscriber queues, drop-oldest on overflow,
// and a publish call that never blocks on a slow subscriber.
//
// The subscribe/unsubscribe/fan-out shape follows the Feed/Subscription
// idiom demonstrated in ethereum/go-ethereum's event package tests
// (Subscribe returns an unsubscribe handle; a feed fans values out to
// channels) without importing go-ethereum itself.
package event

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind tags which event a Event carries.
type Kind int

const (
	KindRoundStarted Kind = iota
	KindBlockProposed
	KindVoteReceived
	KindRoundCompleted
	KindRoundFailed
	KindReputationUpdated
	KindValidatorStateChanged
)

// Event is the tagged union of everything the bus can publish, per
// spec.md §4.9. Only the fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	Round       uint64
	Coordinator string
	BlockHash   string

	Voter       string
	Approve     bool
	VotingPower float64

	DurationMS   int64
	Participants []string

	FailReason string

	DID       string
	Delta     int64
	NewTotal  int64
	Active    bool
}

const defaultQueueSize = 256

// Subscription is an active subscriber's handle; Events delivers the
// feed in FIFO publication order, and Unsubscribe stops delivery and
// releases the subscriber's queue.
type Subscription struct {
	bus  *Bus
	ch   chan Event
	once sync.Once
}

// Events returns the channel this subscription receives events on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Unsubscribe stops delivery to this subscription. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.ch)
	})
}

// Bus fans published events out to subscribers without ever blocking
// the publisher: each subscriber has a bounded buffered channel, and a
// full channel has its oldest pending event dropped to make room.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}

	dropped prometheus.Counter
}

// NewBus returns an empty Bus. reg may be nil to skip metrics
// registration (e.g. in tests).
func NewBus(reg prometheus.Registerer) *Bus {
	b := &Bus{subs: make(map[*Subscription]struct{})}
	b.dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "poc_consensus_event_bus_dropped_total",
		Help: "Total events dropped because a subscriber's queue was full.",
	})
	if reg != nil {
		_ = reg.Register(b.dropped)
	}
	return b
}

// Subscribe registers a new subscriber with the default queue size.
func (b *Bus) Subscribe() *Subscription {
	return b.SubscribeBuffered(defaultQueueSize)
}

// SubscribeBuffered registers a new subscriber with a custom queue
// capacity.
func (b *Bus) SubscribeBuffered(capacity int) *Subscription {
	sub := &Subscription{bus: b, ch: make(chan Event, capacity)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers ev to every current subscriber. It never blocks: if
// a subscriber's queue is full, the oldest queued event for that
// subscriber is dropped to make room, per spec.md §5.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *Subscription, ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	// Queue full: drop the oldest pending event, then try once more.
	select {
	case <-s.ch:
		b.dropped.Inc()
	default:
	}
	select {
	case s.ch <- ev:
	default:
		// Another publisher raced us and refilled the queue; count this
		// event as dropped rather than block.
		b.dropped.Inc()
	}
}
