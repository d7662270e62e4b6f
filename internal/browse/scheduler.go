package browse

import (
	"context"
	"sync"
	"time"

	"github.com/mmcdole/tuner/internal/domain"
)

// taskKey groups pending notifications for cancellation. It is not a
// dedup key: one key may hold any number of tasks.
type taskKey struct {
	parentID     string
	subscriberID string
}

// pendingTask is one scheduled children-changed notification
type pendingTask struct {
	seq         uint64
	key         taskKey
	scheduledBy domain.Subscriber
	scheduledAt time.Time
	timer       *time.Timer
}

// scheduler owns the registry of pending one-shot timers
type scheduler struct {
	mu       sync.Mutex
	closed   bool
	seq      uint64
	tasks    map[taskKey]map[uint64]*pendingTask
	inflight sync.WaitGroup
}

func newScheduler() *scheduler {
	return &scheduler{tasks: make(map[taskKey]map[uint64]*pendingTask)}
}

// schedule arms a timer that calls fire after delay. armed runs under the
// registry lock before the timer starts, so it happens before fire or any
// cancel of the task. fire runs on the timer's goroutine and only if the
// task was not cancelled first.
func (s *scheduler) schedule(key taskKey, by domain.Subscriber, delay time.Duration, armed, fire func(*pendingTask)) (*pendingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrClosed
	}

	s.seq++
	task := &pendingTask{
		seq:         s.seq,
		key:         key,
		scheduledBy: by,
		scheduledAt: time.Now(),
	}
	if s.tasks[key] == nil {
		s.tasks[key] = make(map[uint64]*pendingTask)
	}
	s.tasks[key][task.seq] = task

	if armed != nil {
		armed(task)
	}

	s.inflight.Add(1)
	task.timer = time.AfterFunc(delay, func() {
		defer s.inflight.Done()
		if !s.remove(task) {
			return // cancelled while the timer was firing
		}
		fire(task)
	})
	return task, nil
}

// remove deletes task from the registry, reporting whether it was still there
func (s *scheduler) remove(task *pendingTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.tasks[task.key]
	if _, ok := byKey[task.seq]; !ok {
		return false
	}
	delete(byKey, task.seq)
	if len(byKey) == 0 {
		delete(s.tasks, task.key)
	}
	return true
}

// cancel stops every pending task whose key matches and returns how many were stopped
func (s *scheduler) cancel(match func(taskKey) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(match)
}

func (s *scheduler) cancelLocked(match func(taskKey) bool) int {
	n := 0
	for key, byKey := range s.tasks {
		if !match(key) {
			continue
		}
		for _, task := range byKey {
			if task.timer.Stop() {
				s.inflight.Done()
			}
			n++
		}
		delete(s.tasks, key)
	}
	return n
}

// close cancels all pending tasks, refuses new ones, and waits for
// deliveries already in progress until ctx is done. Calling close again only waits.
func (s *scheduler) close(ctx context.Context) (int, error) {
	s.mu.Lock()
	n := 0
	if !s.closed {
		s.closed = true
		n = s.cancelLocked(func(taskKey) bool { return true })
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return n, nil
	case <-ctx.Done():
		return n, ctx.Err()
	}
}

// pending returns the number of scheduled tasks that have not fired
func (s *scheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, byKey := range s.tasks {
		n += len(byKey)
	}
	return n
}
