// Package notification fans playback events out to subscribed sinks.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/akira-bot/deejay/internal/app/playback"
)

// sendTimeout bounds how long a single sink may block a broadcast.
const sendTimeout = 500 * time.Millisecond

// Sink receives playback events.
type Sink interface {
	Send(ctx context.Context, e playback.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e playback.Event) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, e playback.Event) error {
	return f(ctx, e)
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id   string
	sink Sink
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(sink Sink) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:   id,
		sink: sink,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish stamps e with the next sequence number and sends it to all subscribers.
// Each send runs in its own goroutine with a timeout so that a slow sink cannot stall the others.
func (m *Manager) Publish(e playback.Event) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	e.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.sink.Send(ctx, e)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Err(err).Str("subscription", s.id).Msgf("failed to deliver %s event", e.Type)
				}
			case <-ctx.Done():
				zlog.Warn().Str("subscription", s.id).Msgf("timed out delivering %s event", e.Type)
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
