package domain

import "context"

// Subscriber is an opaque handle to a remote browsing client, supplied by the host.
// The core only reads the ID (for logging and to key pending notifications) and
// hands the handle back to the Notifier unchanged.
type Subscriber interface {
	ID() string
}

// SubscriberID is the simplest Subscriber: a bare identifier.
type SubscriberID string

func (s SubscriberID) ID() string { return string(s) }

// Catalog produces nodes for the browse tree. Implementations must be pure:
// every call regenerates the result and has no side effects.
type Catalog interface {
	// Root returns the browse root node
	Root() Node

	// Children returns the ordered children of parentID.
	// Unknown parents yield an empty slice, or ErrUnknownParent under the strict policy.
	Children(parentID string) ([]Node, error)

	// Item returns a single node by ID, or ErrItemNotFound
	Item(id string) (Node, error)

	// Search returns playable nodes matching query, best match first
	Search(query string) []Node

	// IsDynamic reports whether a children query for parentID should be
	// followed by a children-changed notification
	IsDynamic(parentID string) bool
}

// Notifier is the host's outbound notification channel.
type Notifier interface {
	// NotifyChildrenChanged tells sub that the children of parentID should be
	// re-fetched. itemCount is a hint only; hosts re-query rather than trust it.
	// Returns ErrSubscriberGone when the subscriber's channel is torn down.
	NotifyChildrenChanged(ctx context.Context, sub Subscriber, parentID string, itemCount int) error
}

// NotifierFunc adapts an ordinary function to the Notifier interface.
type NotifierFunc func(ctx context.Context, sub Subscriber, parentID string, itemCount int) error

func (f NotifierFunc) NotifyChildrenChanged(ctx context.Context, sub Subscriber, parentID string, itemCount int) error {
	return f(ctx, sub, parentID, itemCount)
}
