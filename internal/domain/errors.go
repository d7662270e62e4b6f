package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrUnknownParent indicates a children query for an identifier the catalog
	// does not know. Only returned when the catalog runs with the strict policy.
	ErrUnknownParent = errors.New("unknown parent identifier")

	// ErrItemNotFound indicates the requested node does not exist
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrSubscriberGone indicates the notification channel for a subscriber is torn down
	ErrSubscriberGone = errors.New("subscriber is no longer reachable")

	// ErrDeliveryDropped indicates the subscriber is reachable but its queue is
	// full, so the notification was discarded
	ErrDeliveryDropped = errors.New("notification dropped, subscriber queue full")

	// ErrClosed indicates the service has been shut down
	ErrClosed = errors.New("service is closed")
)
