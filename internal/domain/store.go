package domain

import "time"

// DeliveryOutcome records what happened when a pending notification fired
type DeliveryOutcome string

const (
	OutcomeDelivered      DeliveryOutcome = "delivered"
	OutcomeNoSubscriber   DeliveryOutcome = "no_subscriber"
	OutcomeSubscriberGone DeliveryOutcome = "subscriber_gone"
	OutcomeDropped        DeliveryOutcome = "dropped"
	OutcomeFailed         DeliveryOutcome = "failed"
)

// NotificationRecord is one fired children-changed notification.
type NotificationRecord struct {
	Seq          uint64          `json:"seq"`
	SubscriberID string          `json:"subscriberId"` // Target at fire time ("" if none)
	ScheduledBy  string          `json:"scheduledBy"`  // Subscriber whose query scheduled it
	ParentID     string          `json:"parentId"`
	ItemCount    int             `json:"itemCount"`
	ScheduledAt  time.Time       `json:"scheduledAt"`
	FiredAt      time.Time       `json:"firedAt"`
	Outcome      DeliveryOutcome `json:"outcome"`
	Error        string          `json:"error,omitempty"`
}

// NotificationJournal keeps a bounded history of fired notifications.
// Keys are sequence numbers, so Recent can walk newest-first.
type NotificationJournal interface {
	// Append stores a record
	Append(rec NotificationRecord) error

	// Recent returns up to n records, newest first
	Recent(n int) ([]NotificationRecord, error)

	// Close releases the underlying storage
	Close() error
}
