package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/tuner/internal/domain"
	"github.com/mmcdole/tuner/internal/metrics"
)

const streamBuffer = 16

// ChildrenChangedEvent is the payload pushed to a subscriber's event stream
type ChildrenChangedEvent struct {
	SubscriberID string    `json:"subscriberId"`
	ParentID     string    `json:"parentId"`
	ItemCount    int       `json:"itemCount"`
	At           time.Time `json:"at"`
}

// EventHub fans notifications out to the open event streams of each
// subscriber. It implements domain.Notifier.
type EventHub struct {
	mu      sync.RWMutex
	closed  bool
	streams map[string][]chan ChildrenChangedEvent
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{streams: make(map[string][]chan ChildrenChangedEvent)}
}

// Stream is one open event stream for a subscriber
type Stream struct {
	hub          *EventHub
	subscriberID string
	ch           chan ChildrenChangedEvent
	once         sync.Once
}

// C delivers events until the stream or hub is closed
func (s *Stream) C() <-chan ChildrenChangedEvent {
	return s.ch
}

// Close detaches the stream from the hub
func (s *Stream) Close() {
	s.once.Do(func() {
		s.hub.detach(s)
	})
}

// Open attaches a new stream for subscriberID
func (h *EventHub) Open(subscriberID string) (*Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, domain.ErrClosed
	}
	s := &Stream{hub: h, subscriberID: subscriberID, ch: make(chan ChildrenChangedEvent, streamBuffer)}
	h.streams[subscriberID] = append(h.streams[subscriberID], s.ch)
	metrics.EventStreamsOpen.Inc()
	return s, nil
}

func (h *EventHub) detach(s *Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	lst := h.streams[s.subscriberID]
	out := lst[:0]
	found := false
	for _, c := range lst {
		if c == s.ch {
			found = true
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		delete(h.streams, s.subscriberID)
	} else {
		h.streams[s.subscriberID] = out
	}
	if found {
		close(s.ch)
		metrics.EventStreamsOpen.Dec()
	}
}

// NotifyChildrenChanged pushes an event to every open stream of sub without
// blocking. A stream whose buffer is full misses the event.
// It returns domain.ErrSubscriberGone when sub has no open stream and
// domain.ErrDeliveryDropped when every open stream was full.
func (h *EventHub) NotifyChildrenChanged(ctx context.Context, sub domain.Subscriber, parentID string, itemCount int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify %q: %w", sub.ID(), err)
	}
	ev := ChildrenChangedEvent{
		SubscriberID: sub.ID(),
		ParentID:     parentID,
		ItemCount:    itemCount,
		At:           time.Now().UTC(),
	}

	// Sends are non-blocking; the read lock keeps detach from closing a
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	chs := h.streams[sub.ID()]
	if h.closed || len(chs) == 0 {
		return fmt.Errorf("notify %q: %w", sub.ID(), domain.ErrSubscriberGone)
	}
	sent := 0
	for _, ch := range chs {
		select {
		case ch <- ev:
			sent++
		default:
		}
	}
	if sent == 0 {
		return fmt.Errorf("notify %q: %w", sub.ID(), domain.ErrDeliveryDropped)
	}
	return nil
}

// Connected reports whether subscriberID has at least one open stream
func (h *EventHub) Connected(subscriberID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[subscriberID]) > 0
}

// Close ends every open stream and rejects new ones
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, chs := range h.streams {
		for _, ch := range chs {
			close(ch)
			metrics.EventStreamsOpen.Dec()
		}
		delete(h.streams, id)
	}
}

var _ domain.Notifier = (*EventHub)(nil)
