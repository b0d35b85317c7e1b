// Package eventbus fans out blockchain state-change notifications
// (extended chain, rebranch, new macro finality, epoch rollover) to
// interested subscribers: the validator, RPC layer and metrics exporter
// all drive off this stream instead of polling chain storage directly.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/albatross-go/consensus/types"
)

// EventKind enumerates the blockchain notifications a subscriber can see.
type EventKind uint8

const (
	// Extended fires when a block extends the current chain head without
	// a fork choice change.
	Extended EventKind = iota
	// Rebranched fires when a heavier fork displaces the previous head;
	// Event.RevertedBlocks lists the abandoned blocks, oldest first.
	Rebranched
	// Stored fires for a block accepted into storage but not (yet) part
	// of the main chain, e.g. while its branch is still being assembled.
	Stored
	// Finalized fires when a macro block's Tendermint justification is
	// accepted, finalizing every block up to and including it.
	Finalized
	// EpochFinalized fires when an election macro block finalizes,
	// installing the next epoch's validator set.
	EpochFinalized
	// HistoryAdopted fires once local history (accounts/transaction
	// indices) has been rebuilt to match a newly accepted branch.
	HistoryAdopted
)

func (k EventKind) String() string {
	switch k {
	case Extended:
		return "extended"
	case Rebranched:
		return "rebranched"
	case Stored:
		return "stored"
	case Finalized:
		return "finalized"
	case EpochFinalized:
		return "epoch-finalized"
	case HistoryAdopted:
		return "history-adopted"
	default:
		return "unknown"
	}
}

// BlockchainEvent is one notification emitted by the blockchain as it
// processes a push. AddedHashes lists the blocks this event adds: the
// pushed block's hash for Extended and Stored, every block adopted onto
// the main chain for Rebranched, and none for Finalized/EpochFinalized.
type BlockchainEvent struct {
	Kind            EventKind
	AddedHashes     []types.Hash
	RevertedBlocks  []types.Hash
	BlockNumber     types.BlockNumber
	Epoch           uint32
}

// ForkEvent is a supplemented notification (not in the base taxonomy)
// describing a detected-but-not-yet-adopted competing branch, useful for
// alerting/metrics without waiting for a rebranch to actually occur.
type ForkEvent struct {
	BlockNumber    types.BlockNumber
	CompetingHash  types.Hash
	CurrentHead    types.Hash
}

// subscriberBufferSize bounds how far a subscriber may lag the
// publisher before its oldest unread event is dropped. A slow consumer
// (e.g. a blocked RPC client) must never stall block processing.
const subscriberBufferSize = 256

type subscriber struct {
	id uuid.UUID
	ch chan BlockchainEvent
}

// EventBus broadcasts BlockchainEvents to any number of subscribers,
// each with its own bounded, drop-oldest queue.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*subscriber
	logger      *slog.Logger

	forkMu   sync.RWMutex
	forkSubs map[uuid.UUID]chan ForkEvent
}

// New returns an empty EventBus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subscribers: make(map[uuid.UUID]*subscriber),
		forkSubs:    make(map[uuid.UUID]chan ForkEvent),
		logger:      logger,
	}
}

// Subscription is a handle returned by Subscribe; Events yields the
// subscriber's channel and Unsubscribe tears it down.
type Subscription struct {
	id     uuid.UUID
	bus    *EventBus
	events <-chan BlockchainEvent
}

// Events returns the channel this subscription receives events on.
func (s *Subscription) Events() <-chan BlockchainEvent {
	return s.events
}

// Unsubscribe removes this subscription from the bus and closes its
// channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		close(sub.ch)
		delete(s.bus.subscribers, s.id)
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (b *EventBus) Subscribe() *Subscription {
	id := uuid.New()
	ch := make(chan BlockchainEvent, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[id] = &subscriber{id: id, ch: ch}
	b.mu.Unlock()

	return &Subscription{id: id, bus: b, events: ch}
}

// Publish broadcasts event to every current subscriber. A subscriber
// whose buffer is full has its oldest pending event dropped to make
// room, so Publish itself never blocks the caller.
func (b *EventBus) Publish(event BlockchainEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
				b.logger.Warn("eventbus: dropped event for slow subscriber", "subscriber", sub.id, "kind", event.Kind)
			}
		}
	}
}

// ForkSubscription mirrors Subscription for the supplemented fork stream.
type ForkSubscription struct {
	id     uuid.UUID
	bus    *EventBus
	events <-chan ForkEvent
}

// Events returns the channel this fork subscription receives on.
func (s *ForkSubscription) Events() <-chan ForkEvent {
	return s.events
}

// Unsubscribe tears down this fork subscription.
func (s *ForkSubscription) Unsubscribe() {
	s.bus.forkMu.Lock()
	defer s.bus.forkMu.Unlock()
	if ch, ok := s.bus.forkSubs[s.id]; ok {
		close(ch)
		delete(s.bus.forkSubs, s.id)
	}
}

// SubscribeForks registers a new fork-event subscriber.
func (b *EventBus) SubscribeForks() *ForkSubscription {
	id := uuid.New()
	ch := make(chan ForkEvent, subscriberBufferSize)

	b.forkMu.Lock()
	b.forkSubs[id] = ch
	b.forkMu.Unlock()

	return &ForkSubscription{id: id, bus: b, events: ch}
}

// PublishFork broadcasts a ForkEvent, dropping it for subscribers whose
// buffer is already full (forks are advisory, never required delivery).
func (b *EventBus) PublishFork(event ForkEvent) {
	b.forkMu.RLock()
	defer b.forkMu.RUnlock()

	for id, ch := range b.forkSubs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("eventbus: dropped fork event for slow subscriber", "subscriber", id)
		}
	}
}
