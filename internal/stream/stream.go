// Package stream fans refresh lifecycle events out to SSE subscribers, giving
// operator dashboards a live view of what the coalescer is doing.
package stream

import (
	"context"
	"sync"

	"embedgate.io/internal/refresh"
)

// Stream fan-outs refresh events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan refresh.Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan refresh.Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan refresh.Event {
	ch := make(chan refresh.Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Slow subscribers are skipped
// rather than blocking the coalescer.
func (s *Stream) Publish(evt refresh.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
