package browse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mmcdole/tuner/internal/catalog"
	"github.com/mmcdole/tuner/internal/domain"
	"github.com/mmcdole/tuner/internal/log"
)

const testDelay = 30 * time.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type notification struct {
	subscriberID string
	parentID     string
	itemCount    int
}

// recordingNotifier captures every children-changed call
type recordingNotifier struct {
	ch  chan notification
	err error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan notification, 64)}
}

func (r *recordingNotifier) NotifyChildrenChanged(_ context.Context, sub domain.Subscriber, parentID string, itemCount int) error {
	r.ch <- notification{subscriberID: sub.ID(), parentID: parentID, itemCount: itemCount}
	return r.err
}

func (r *recordingNotifier) next(t *testing.T) notification {
	t.Helper()
	select {
	case n := <-r.ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return notification{}
	}
}

func (r *recordingNotifier) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case n := <-r.ch:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(wait):
	}
}

// memJournal is an in-memory NotificationJournal
type memJournal struct {
	mu   sync.Mutex
	recs []domain.NotificationRecord
}

func (j *memJournal) Append(rec domain.NotificationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) Recent(n int) ([]domain.NotificationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.NotificationRecord, 0, n)
	for i := len(j.recs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.recs[i])
	}
	return out, nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) waitLen(t *testing.T, n int) []domain.NotificationRecord {
	t.Helper()
	require.Eventually(t, func() bool {
		j.mu.Lock()
		defer j.mu.Unlock()
		return len(j.recs) >= n
	}, 2*time.Second, 5*time.Millisecond)
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.NotificationRecord(nil), j.recs...)
}

func newTestController(t *testing.T, notifier domain.Notifier, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithDelay(testDelay)}, opts...)
	c := NewController(catalog.NewTree(), notifier, log.NullLogger(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, c.Close(ctx))
	})
	return c
}

func TestLibraryRoot(t *testing.T) {
	c := newTestController(t, newRecordingNotifier())
	s1 := domain.SubscriberID("s1")

	root, err := c.LibraryRoot(context.Background(), s1)
	require.NoError(t, err)
	assert.Equal(t, domain.RootID, root.ID)
	assert.True(t, root.Browsable)
	assert.False(t, root.Playable)
	assert.Equal(t, s1, c.LastSubscriber())
}

func TestSubscribeRecordsLastSubscriber(t *testing.T) {
	c := newTestController(t, newRecordingNotifier())

	require.NoError(t, c.Subscribe(context.Background(), domain.SubscriberID("a"), domain.RootID))
	assert.Equal(t, "a", c.LastSubscriber().ID())

	require.NoError(t, c.Subscribe(context.Background(), domain.SubscriberID("b"), domain.RadiosID))
	assert.Equal(t, "b", c.LastSubscriber().ID())
}

func TestChildrenOfRootDoesNotSchedule(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)

	children, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RootID, 0, 10)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, domain.RadiosID, children[0].ID)

	assert.Zero(t, c.Pending())
	n.none(t, 3*testDelay)
}

func TestChildrenIgnoresPagination(t *testing.T) {
	c := newTestController(t, newRecordingNotifier(), WithDelay(time.Hour))

	children, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RadiosID, 3, 2)
	require.NoError(t, err)
	assert.Len(t, children, catalog.StationCount)
	assert.Equal(t, "0", children[0].ID)
}

func TestChildrenOfUnknownParent(t *testing.T) {
	c := newTestController(t, newRecordingNotifier())

	children, err := c.Children(context.Background(), domain.SubscriberID("s1"), "elsewhere", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.Zero(t, c.Pending())
}

func TestChildrenStrictCatalog(t *testing.T) {
	c := NewController(catalog.NewTree(catalog.WithStrict(true)), newRecordingNotifier(), log.NullLogger())
	defer c.Close(context.Background())

	_, err := c.Children(context.Background(), domain.SubscriberID("s1"), "elsewhere", 0, 0)
	require.ErrorIs(t, err, domain.ErrUnknownParent)
	assert.Equal(t, "s1", c.LastSubscriber().ID())
}

func TestRadiosQueryNotifiesRoot(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)

	start := time.Now()
	_, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pending())

	got := n.next(t)
	assert.GreaterOrEqual(t, time.Since(start), testDelay)
	assert.Equal(t, notification{subscriberID: "s1", parentID: domain.RootID, itemCount: DefaultItemCountHint}, got)
	assert.Eventually(t, func() bool { return c.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNotificationTargetsLastSubscriberAtFireTime(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	_, err = c.Children(ctx, domain.SubscriberID("b"), domain.RadiosID, 0, 0)
	require.NoError(t, err)

	first := n.next(t)
	second := n.next(t)
	assert.Equal(t, "b", first.subscriberID)
	assert.Equal(t, "b", second.subscriberID)
}

func TestLaterSubscribeRedirectsPendingNotification(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(ctx, domain.SubscriberID("c"), domain.RootID))

	assert.Equal(t, "c", n.next(t).subscriberID)
}

func TestConcurrentQueriesAreNotDeduplicated(t *testing.T) {
	const calls = 8
	n := newRecordingNotifier()
	c := newTestController(t, n)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Children(context.Background(), domain.SubscriberID("s"), domain.RadiosID, 0, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		got := n.next(t)
		assert.Equal(t, domain.RootID, got.parentID)
	}
	n.none(t, 3*testDelay)
}

func TestUnsubscribeOverwritesByDefault(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, c.Unsubscribe(ctx, domain.SubscriberID("b"), domain.RadiosID))

	assert.Equal(t, "b", c.LastSubscriber().ID())
	assert.Equal(t, "b", n.next(t).subscriberID)
}

func TestUnsubscribeClearCancelsOwnNotifications(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n, WithUnsubscribePolicy(UnsubscribeClear))
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, c.Pending())

	require.NoError(t, c.Unsubscribe(ctx, domain.SubscriberID("a"), domain.RadiosID))
	assert.Nil(t, c.LastSubscriber())
	assert.Zero(t, c.Pending())
	n.none(t, 3*testDelay)
}

func TestUnsubscribeClearLeavesOtherSubscriber(t *testing.T) {
	c := newTestController(t, newRecordingNotifier(), WithUnsubscribePolicy(UnsubscribeClear))
	ctx := context.Background()

	require.NoError(t, c.Subscribe(ctx, domain.SubscriberID("a"), domain.RootID))
	require.NoError(t, c.Unsubscribe(ctx, domain.SubscriberID("b"), domain.RootID))
	assert.Equal(t, "a", c.LastSubscriber().ID())
}

func TestUnsubscribeClearKeepsNotificationForNewerSubscriber(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n, WithUnsubscribePolicy(UnsubscribeClear))
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(ctx, domain.SubscriberID("b"), domain.RootID))
	require.NoError(t, c.Unsubscribe(ctx, domain.SubscriberID("a"), domain.RadiosID))

	assert.Equal(t, "b", c.LastSubscriber().ID())
	got := n.next(t)
	assert.Equal(t, "b", got.subscriberID)
	assert.Equal(t, domain.RootID, got.parentID)
}

func TestNoSubscriberAtFireTime(t *testing.T) {
	n := newRecordingNotifier()
	j := &memJournal{}
	c := newTestController(t, n, WithUnsubscribePolicy(UnsubscribeClear), WithJournal(j))
	ctx := context.Background()

	_, err := c.Children(ctx, domain.SubscriberID("a"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(ctx, domain.SubscriberID("b"), domain.RootID))
	require.NoError(t, c.Unsubscribe(ctx, domain.SubscriberID("b"), domain.RootID))

	recs := j.waitLen(t, 1)
	assert.Equal(t, domain.OutcomeNoSubscriber, recs[0].Outcome)
	assert.Equal(t, "a", recs[0].ScheduledBy)
	assert.Empty(t, recs[0].SubscriberID)
	n.none(t, testDelay)
}

func TestNotifierFailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name    string
		notify  domain.NotifierFunc
		outcome domain.DeliveryOutcome
	}{
		{
			name: "subscriber gone",
			notify: func(context.Context, domain.Subscriber, string, int) error {
				return domain.ErrSubscriberGone
			},
			outcome: domain.OutcomeSubscriberGone,
		},
		{
			name: "queue full",
			notify: func(context.Context, domain.Subscriber, string, int) error {
				return fmt.Errorf("notify: %w", domain.ErrDeliveryDropped)
			},
			outcome: domain.OutcomeDropped,
		},
		{
			name: "transport error",
			notify: func(context.Context, domain.Subscriber, string, int) error {
				return errors.New("broken pipe")
			},
			outcome: domain.OutcomeFailed,
		},
		{
			name: "panic",
			notify: func(context.Context, domain.Subscriber, string, int) error {
				panic("channel torn down")
			},
			outcome: domain.OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &memJournal{}
			c := newTestController(t, tt.notify, WithJournal(j))

			children, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
			require.NoError(t, err)
			assert.Len(t, children, catalog.StationCount)

			recs := j.waitLen(t, 1)
			assert.Equal(t, tt.outcome, recs[0].Outcome)
			assert.NotEmpty(t, recs[0].Error)
		})
	}
}

func TestCloseCancelsPendingNotifications(t *testing.T) {
	n := newRecordingNotifier()
	c := NewController(catalog.NewTree(), n, log.NullLogger(), WithDelay(time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Children(ctx, domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
		require.NoError(t, err)
	}
	require.Equal(t, 3, c.Pending())

	require.NoError(t, c.Close(ctx))
	assert.Zero(t, c.Pending())

	children, err := c.Children(ctx, domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, children, catalog.StationCount)
	assert.Zero(t, c.Pending())
	require.NoError(t, c.Close(ctx))
}

func TestCloseWaitsForInFlightDelivery(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	notifier := domain.NotifierFunc(func(context.Context, domain.Subscriber, string, int) error {
		close(entered)
		<-release
		return nil
	})
	c := NewController(catalog.NewTree(), notifier, log.NullLogger(), WithDelay(time.Millisecond))

	_, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
	require.NoError(t, err)
	<-entered

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.Close(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, c.Close(context.Background()))
}

func TestJournalRecordsDelivery(t *testing.T) {
	j := &memJournal{}
	c := newTestController(t, newRecordingNotifier(), WithJournal(j), WithItemCountHint(7))

	_, err := c.Children(context.Background(), domain.SubscriberID("s1"), domain.RadiosID, 0, 0)
	require.NoError(t, err)

	recs := j.waitLen(t, 1)
	rec := recs[0]
	assert.Equal(t, uint64(1), rec.Seq)
	assert.Equal(t, "s1", rec.SubscriberID)
	assert.Equal(t, "s1", rec.ScheduledBy)
	assert.Equal(t, domain.RootID, rec.ParentID)
	assert.Equal(t, 7, rec.ItemCount)
	assert.Equal(t, domain.OutcomeDelivered, rec.Outcome)
	assert.False(t, rec.FiredAt.Before(rec.ScheduledAt))
}

func TestItemAndSearch(t *testing.T) {
	c := newTestController(t, newRecordingNotifier())
	ctx := context.Background()

	item, err := c.Item(ctx, domain.SubscriberID("s1"), "4")
	require.NoError(t, err)
	assert.Equal(t, "Title 4", item.Title)

	_, err = c.Item(ctx, domain.SubscriberID("s1"), "missing")
	require.ErrorIs(t, err, domain.ErrItemNotFound)

	results, err := c.Search(ctx, domain.SubscriberID("s2"), "Title 10")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10", results[0].ID)
	assert.Equal(t, "s2", c.LastSubscriber().ID())
}

func TestEndToEnd(t *testing.T) {
	n := newRecordingNotifier()
	c := newTestController(t, n)
	ctx := context.Background()
	s1 := domain.SubscriberID("S1")

	require.NoError(t, c.Subscribe(ctx, s1, domain.RootID))

	root, err := c.LibraryRoot(ctx, s1)
	require.NoError(t, err)
	assert.Equal(t, domain.RootID, root.ID)

	folders, err := c.Children(ctx, s1, root.ID, 0, 20)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Radios", folders[0].Title)

	items, err := c.Children(ctx, s1, folders[0].ID, 0, 20)
	require.NoError(t, err)
	assert.Len(t, items, 11)

	assert.Equal(t, notification{subscriberID: "S1", parentID: domain.RootID, itemCount: 250}, n.next(t))
}

func TestParseUnsubscribePolicy(t *testing.T) {
	p, err := ParseUnsubscribePolicy("")
	require.NoError(t, err)
	assert.Equal(t, UnsubscribeOverwrite, p)

	p, err = ParseUnsubscribePolicy("clear")
	require.NoError(t, err)
	assert.Equal(t, UnsubscribeClear, p)

	_, err = ParseUnsubscribePolicy("drop")
	require.Error(t, err)
}
