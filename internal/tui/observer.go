package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/tuner/internal/domain"
)

// ChannelNotifier adapts domain.Notifier to a channel for Bubble Tea.
// It only accepts notifications addressed to its own subscriber.
type ChannelNotifier struct {
	self domain.Subscriber
	ch   chan ChildrenChangedMsg
}

// NewChannelNotifier creates a notifier for self with the given buffer size
func NewChannelNotifier(self domain.Subscriber, buffer int) *ChannelNotifier {
	return &ChannelNotifier{self: self, ch: make(chan ChildrenChangedMsg, buffer)}
}

// NotifyChildrenChanged queues the notification without blocking.
// It returns domain.ErrDeliveryDropped when the queue is full.
func (n *ChannelNotifier) NotifyChildrenChanged(ctx context.Context, sub domain.Subscriber, parentID string, itemCount int) error {
	if sub.ID() != n.self.ID() {
		return fmt.Errorf("notify %q: %w", sub.ID(), domain.ErrSubscriberGone)
	}
	select {
	case n.ch <- ChildrenChangedMsg{ParentID: parentID, ItemCount: itemCount}:
		return nil
	default:
		return fmt.Errorf("notify %q: %w", sub.ID(), domain.ErrDeliveryDropped)
	}
}

// Listen returns a command that waits for the next notification
func (n *ChannelNotifier) Listen() tea.Cmd {
	return func() tea.Msg {
		return <-n.ch
	}
}

var _ domain.Notifier = (*ChannelNotifier)(nil)
