// Package browse answers the host's browsing calls and schedules
// children-changed notifications back to the most recent subscriber.
package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/tuner/internal/domain"
	"github.com/mmcdole/tuner/internal/metrics"
)

const (
	// DefaultDelay is how long after a dynamic children query the
	// children-changed notification fires
	DefaultDelay = 5 * time.Second

	// DefaultItemCountHint is the item count sent with every notification.
	// It only signals "changed"; hosts re-query instead of trusting it.
	DefaultItemCountHint = 250

	defaultNotifyTimeout = 10 * time.Second
)

// UnsubscribePolicy decides what Unsubscribe does to the last-subscriber cell
type UnsubscribePolicy string

const (
	// UnsubscribeOverwrite records the unsubscribing client as the last subscriber
	UnsubscribeOverwrite UnsubscribePolicy = "overwrite"

	// UnsubscribeClear forgets the client and cancels the notifications it scheduled
	UnsubscribeClear UnsubscribePolicy = "clear"
)

// ParseUnsubscribePolicy converts a config string to a policy
func ParseUnsubscribePolicy(s string) (UnsubscribePolicy, error) {
	switch UnsubscribePolicy(s) {
	case "", UnsubscribeOverwrite:
		return UnsubscribeOverwrite, nil
	case UnsubscribeClear:
		return UnsubscribeClear, nil
	default:
		return "", fmt.Errorf("unknown unsubscribe policy %q", s)
	}
}

// Option configures a Controller
type Option func(*Controller)

// WithDelay overrides the notification delay
func WithDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// WithItemCountHint overrides the item count sent with notifications
func WithItemCountHint(n int) Option {
	return func(c *Controller) { c.itemCountHint = n }
}

// WithUnsubscribePolicy sets the unsubscribe behavior
func WithUnsubscribePolicy(p UnsubscribePolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithJournal records every fired notification
func WithJournal(j domain.NotificationJournal) Option {
	return func(c *Controller) { c.journal = j }
}

// Controller is the single point of contact for the host's browsing protocol.
//
// Every call records its subscriber as the last subscriber (last writer wins).
// A children query for a dynamic folder schedules a notification that, once
// the delay elapses, targets whoever is the last subscriber at that moment.
type Controller struct {
	catalog  domain.Catalog
	notifier domain.Notifier
	journal  domain.NotificationJournal
	logger   *slog.Logger

	delay         time.Duration
	itemCountHint int
	policy        UnsubscribePolicy
	notifyTimeout time.Duration

	mu   sync.Mutex
	last domain.Subscriber

	sched *scheduler
}

// NewController creates a controller serving catalog and notifying through notifier.
func NewController(catalog domain.Catalog, notifier domain.Notifier, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		catalog:       catalog,
		notifier:      notifier,
		logger:        logger,
		delay:         DefaultDelay,
		itemCountHint: DefaultItemCountHint,
		policy:        UnsubscribeOverwrite,
		notifyTimeout: defaultNotifyTimeout,
		sched:         newScheduler(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe records sub as the last subscriber. It always succeeds.
func (c *Controller) Subscribe(ctx context.Context, sub domain.Subscriber, parentID string) error {
	metrics.IncBrowseRequest("subscribe")
	c.setLast(sub)
	c.logger.Debug("subscribe", "subscriber", subscriberID(sub), "parentID", parentID)
	return nil
}

// Unsubscribe always succeeds. Under UnsubscribeOverwrite it records sub as
// the last subscriber. Under UnsubscribeClear, when sub is still the last
// subscriber, it forgets sub and cancels the notifications sub scheduled;
// otherwise those notifications target another subscriber and stay pending.
func (c *Controller) Unsubscribe(ctx context.Context, sub domain.Subscriber, parentID string) error {
	metrics.IncBrowseRequest("unsubscribe")

	if c.policy != UnsubscribeClear {
		c.setLast(sub)
		c.logger.Debug("unsubscribe", "subscriber", subscriberID(sub), "parentID", parentID)
		return nil
	}

	id := subscriberID(sub)
	c.mu.Lock()
	isLast := c.last != nil && c.last.ID() == id
	if isLast {
		c.last = nil
	}
	c.mu.Unlock()

	if !isLast {
		c.logger.Debug("unsubscribe", "subscriber", id, "parentID", parentID, "cancelled", 0)
		return nil
	}

	n := c.sched.cancel(func(k taskKey) bool { return k.subscriberID == id })
	for i := 0; i < n; i++ {
		metrics.IncCancelled("unsubscribe")
	}
	c.logger.Debug("unsubscribe", "subscriber", id, "parentID", parentID, "cancelled", n)
	return nil
}

// LibraryRoot records sub and returns the browse root.
func (c *Controller) LibraryRoot(ctx context.Context, sub domain.Subscriber) (domain.Node, error) {
	metrics.IncBrowseRequest("root")
	c.setLast(sub)
	c.logger.Debug("get root", "subscriber", subscriberID(sub))
	return c.catalog.Root(), nil
}

// Children records sub and returns every child of parentID. page and
// pageSize are accepted for protocol compatibility and ignored: the full
// sequence is always returned.
//
// For a dynamic parent a children-changed notification for the root is
// scheduled; it never delays or alters the returned children.
func (c *Controller) Children(ctx context.Context, sub domain.Subscriber, parentID string, page, pageSize int) ([]domain.Node, error) {
	metrics.IncBrowseRequest("children")
	c.setLast(sub)
	c.logger.Debug("get children", "subscriber", subscriberID(sub), "parentID", parentID, "page", page, "pageSize", pageSize)

	children, err := c.catalog.Children(parentID)
	if err != nil {
		return nil, err
	}

	if c.catalog.IsDynamic(parentID) {
		c.scheduleRootChanged(sub, parentID)
	}
	return children, nil
}

// Item records sub and returns a single node.
func (c *Controller) Item(ctx context.Context, sub domain.Subscriber, id string) (domain.Node, error) {
	metrics.IncBrowseRequest("item")
	c.setLast(sub)
	return c.catalog.Item(id)
}

// Search records sub and returns playable nodes matching query.
func (c *Controller) Search(ctx context.Context, sub domain.Subscriber, query string) ([]domain.Node, error) {
	metrics.IncBrowseRequest("search")
	c.setLast(sub)
	results := c.catalog.Search(query)
	c.logger.Debug("search", "subscriber", subscriberID(sub), "query", query, "results", len(results))
	return results, nil
}

// LastSubscriber returns the most recently seen subscriber, or nil.
func (c *Controller) LastSubscriber() domain.Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Pending returns the number of scheduled notifications that have not fired.
func (c *Controller) Pending() int {
	return c.sched.pending()
}

// Close cancels every pending notification and waits for deliveries already
// in progress until ctx is done. Calls made after Close are still answered
// but no longer schedule notifications.
func (c *Controller) Close(ctx context.Context) error {
	n, err := c.sched.close(ctx)
	for i := 0; i < n; i++ {
		metrics.IncCancelled("shutdown")
	}
	c.logger.Info("browse controller closed", "cancelled", n)
	if err != nil {
		return fmt.Errorf("waiting for in-flight notifications: %w", err)
	}
	return nil
}

func (c *Controller) setLast(sub domain.Subscriber) {
	c.mu.Lock()
	c.last = sub
	c.mu.Unlock()
}

func (c *Controller) scheduleRootChanged(by domain.Subscriber, queriedID string) {
	key := taskKey{parentID: domain.RootID, subscriberID: subscriberID(by)}
	armed := func(*pendingTask) { metrics.IncScheduled(domain.RootID) }
	task, err := c.sched.schedule(key, by, c.delay, armed, c.fire)
	if err != nil {
		c.logger.Warn("notification not scheduled", "parentID", queriedID, "error", err)
		return
	}
	c.logger.Debug("scheduled children changed", "seq", task.seq, "queried", queriedID, "target", domain.RootID, "delay", c.delay)
}

// fire runs on the timer goroutine. Failures are logged and recorded, never
// returned or retried.
func (c *Controller) fire(task *pendingTask) {
	sub := c.LastSubscriber()
	rec := domain.NotificationRecord{
		Seq:          task.seq,
		SubscriberID: subscriberID(sub),
		ScheduledBy:  subscriberID(task.scheduledBy),
		ParentID:     task.key.parentID,
		ItemCount:    c.itemCountHint,
		ScheduledAt:  task.scheduledAt,
		FiredAt:      time.Now(),
	}

	if sub == nil {
		rec.Outcome = domain.OutcomeNoSubscriber
		c.logger.Info("no subscriber for children changed", "seq", task.seq, "parentID", rec.ParentID)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), c.notifyTimeout)
		err := c.notify(ctx, sub, rec.ParentID)
		cancel()

		switch {
		case err == nil:
			rec.Outcome = domain.OutcomeDelivered
			c.logger.Debug("children changed delivered", "seq", task.seq, "subscriber", rec.SubscriberID, "parentID", rec.ParentID)
		case errors.Is(err, domain.ErrSubscriberGone):
			rec.Outcome = domain.OutcomeSubscriberGone
			rec.Error = err.Error()
			c.logger.Info("subscriber gone before children changed", "seq", task.seq, "subscriber", rec.SubscriberID)
		case errors.Is(err, domain.ErrDeliveryDropped):
			rec.Outcome = domain.OutcomeDropped
			rec.Error = err.Error()
			c.logger.Warn("children changed dropped", "seq", task.seq, "subscriber", rec.SubscriberID)
		default:
			rec.Outcome = domain.OutcomeFailed
			rec.Error = err.Error()
			c.logger.Warn("children changed delivery failed", "seq", task.seq, "subscriber", rec.SubscriberID, "error", err)
		}
	}

	metrics.IncFired(string(rec.Outcome))
	if c.journal != nil {
		if err := c.journal.Append(rec); err != nil {
			c.logger.Error("failed to journal notification", "seq", rec.Seq, "error", err)
		}
	}
}

// notify calls the host, converting a panic in the host channel into an error
func (c *Controller) notify(ctx context.Context, sub domain.Subscriber, parentID string) (err error) {
	if c.notifier == nil {
		return domain.ErrSubscriberGone
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return c.notifier.NotifyChildrenChanged(ctx, sub, parentID, c.itemCountHint)
}

func subscriberID(sub domain.Subscriber) string {
	if sub == nil {
		return ""
	}
	return sub.ID()
}
