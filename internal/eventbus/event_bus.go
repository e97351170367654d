package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chaincore/chaincore/libs/log"
	"github.com/chaincore/chaincore/libs/service"
)

var (
	// ErrAlreadySubscribed is returned when a client subscribes twice to the
	// same topic.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrSubscriptionNotFound is returned when unsubscribing an unknown
	// subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrServerStopped is returned by Subscribe once the bus has stopped.
	ErrServerStopped = errors.New("event bus is stopped")
)

// Message is an event delivered to a subscriber.
type Message struct {
	Topic string
	Data  interface{}
}

// Subscription is a client's stream of events for one topic.
type Subscription struct {
	clientID string
	topic    string
	out      chan Message

	canceled chan struct{}
	once     sync.Once
}

// ID returns the identifier of the subscribing client.
func (s *Subscription) ID() string { return s.clientID }

// Topic returns the topic the subscription listens to.
func (s *Subscription) Topic() string { return s.topic }

// Out returns the channel events are delivered on.
func (s *Subscription) Out() <-chan Message { return s.out }

// Canceled is closed when the subscription is removed or the bus stops.
func (s *Subscription) Canceled() <-chan struct{} { return s.canceled }

// Next blocks until the next event, cancellation of the subscription, or ctx
// is done.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.out:
		return msg, nil
	case <-s.canceled:
		return Message{}, ErrSubscriptionNotFound
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *Subscription) cancel() {
	s.once.Do(func() { close(s.canceled) })
}

type subKey struct {
	clientID string
	topic    string
}

// EventBus is a common bus for all events going through the node. Publishing
// never blocks: a subscriber whose buffer is full misses the event and an error
// is logged.
type EventBus struct {
	service.BaseService
	logger log.Logger

	mtx     sync.RWMutex
	stopped bool
	subs    map[string]map[subKey]*Subscription
}

// NewDefault returns a new event bus.
func NewDefault(l log.Logger) *EventBus {
	logger := l.With("module", "eventbus")
	b := &EventBus{
		logger: logger,
		subs:   make(map[string]map[subKey]*Subscription),
	}
	b.BaseService = *service.NewBaseService(logger, "EventBus", b)
	return b
}

func (b *EventBus) OnStart(context.Context) error { return nil }

func (b *EventBus) OnStop() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.stopped = true
	for topic, subs := range b.subs {
		for _, sub := range subs {
			sub.cancel()
		}
		delete(b.subs, topic)
	}
}

// Subscribe registers clientID for events published on topic. capacity is the
// size of the subscription buffer.
func (b *EventBus) Subscribe(clientID, topic string, capacity int) (*Subscription, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("negative capacity %d", capacity)
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.stopped {
		return nil, ErrServerStopped
	}

	key := subKey{clientID: clientID, topic: topic}
	if _, ok := b.subs[topic][key]; ok {
		return nil, ErrAlreadySubscribed
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[subKey]*Subscription)
	}

	sub := &Subscription{
		clientID: clientID,
		topic:    topic,
		out:      make(chan Message, capacity),
		canceled: make(chan struct{}),
	}
	b.subs[topic][key] = sub
	return sub, nil
}

// Unsubscribe removes clientID's subscription to topic.
func (b *EventBus) Unsubscribe(clientID, topic string) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	key := subKey{clientID: clientID, topic: topic}
	sub, ok := b.subs[topic][key]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.cancel()
	delete(b.subs[topic], key)
	return nil
}

// NumClientSubscriptions returns the number of subscriptions held by clientID.
func (b *EventBus) NumClientSubscriptions(clientID string) int {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	n := 0
	for _, subs := range b.subs {
		for key := range subs {
			if key.clientID == clientID {
				n++
			}
		}
	}
	return n
}

// Publish delivers payload to every subscriber of topic.
func (b *EventBus) Publish(ctx context.Context, topic string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mtx.RLock()
	defer b.mtx.RUnlock()

	if b.stopped {
		return ErrServerStopped
	}

	msg := Message{Topic: topic, Data: payload}
	for _, sub := range b.subs[topic] {
		select {
		case sub.out <- msg:
		default:
			b.logger.Error("subscription out of capacity; dropping event",
				"client", sub.clientID,
				"topic", topic,
			)
		}
	}
	return nil
}
