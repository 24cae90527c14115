// Package notify schedules one-shot alerts for tasks reaching their due time.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"taskdeck/internal/domain"
)

// Alert is emitted once when a scheduled task becomes due.
type Alert struct {
	ID    string
	Title string
	DueAt time.Time
}

type Notifier interface {
	Notify(Alert)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Alert)

func (f NotifierFunc) Notify(a Alert) { f(a) }

// Lookup reads the current version of a task from the authoritative store.
type Lookup func(id string) (domain.Task, bool)

type entry struct {
	due   time.Time
	timer Timer
	gen   uint64
}

// Scheduler keeps at most one pending timer per task id. It only reads tasks; it never
// changes them.
type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	lookup   Lookup
	notifier Notifier
	logger   *log.Logger
	entries  map[string]*entry
	gen      uint64
}

func New(clock Clock, lookup Lookup, notifier Notifier, logger *log.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		clock:    clock,
		lookup:   lookup,
		notifier: notifier,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Rebuild cancels every timer and schedules one for each incomplete task due in the future.
// It returns the number of timers now pending.
func (s *Scheduler) Rebuild(tasks []domain.Task) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := s.cancelAll()
	s.gen++
	now := s.clock.Now()
	for _, t := range tasks {
		if t.Completed || !t.DueAt.After(now) {
			continue
		}
		// First occurrence of a duplicated id wins, matching the store lookup at fire time.
		if _, dup := s.entries[t.ID]; dup {
			continue
		}
		id, gen := t.ID, s.gen
		e := &entry{due: t.DueAt, gen: gen}
		e.timer = s.clock.AfterFunc(t.DueAt.Sub(now), func() { s.fire(id, gen) })
		s.entries[id] = e
	}
	s.logger.Debug("rebuilt alert schedule", "cancelled", cancelled, "scheduled", len(s.entries))
	return len(s.entries)
}

// Stop cancels all pending timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAll()
	s.gen++
}

// Scheduled returns the ids with a pending timer, sorted.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) cancelAll() int {
	n := len(s.entries)
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
	return n
}

func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	s.mu.Unlock()

	t, ok := s.lookup(id)
	if !ok || t.Completed || !t.DueAt.Equal(e.due) {
		s.logger.Debug("dropped stale alert", "id", id)
		return
	}
	s.logger.Debug("alert fired", "id", id, "title", t.Title)
	if s.notifier != nil {
		s.notifier.Notify(Alert{ID: t.ID, Title: t.Title, DueAt: t.DueAt})
	}
}
