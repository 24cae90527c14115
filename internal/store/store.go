// Package store holds the session's authoritative, ordered list of tasks.
package store

import (
	"errors"
	"sync"

	"taskdeck/internal/domain"
)

var ErrNotFound = errors.New("task not found")

// Store is an ordered in-memory collection of tasks. The zero value is empty and ready to use.
type Store struct {
	mu    sync.RWMutex
	tasks []domain.Task
}

func New(tasks []domain.Task) *Store {
	s := &Store{}
	s.Replace(tasks)
	return s
}

// Replace swaps the whole collection, as a reload does. Later records repeating an id are dropped.
func (s *Store) Replace(tasks []domain.Task) {
	cp := make([]domain.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		cp = append(cp, t)
	}
	s.mu.Lock()
	s.tasks = cp
	s.mu.Unlock()
}

// Prepend inserts t at the front so the newest record comes first.
func (s *Store) Prepend(t domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]domain.Task{t}, s.tasks...)
}

// ReplaceByID overwrites the task with t.ID, keeping its position.
func (s *Store) ReplaceByID(t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(t.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.tasks[i] = t
	return nil
}

func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	return nil
}

// RemoveWhere drops every task matching fn and returns how many were removed.
func (s *Store) RemoveWhere(fn func(domain.Task) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !fn(t) {
			kept = append(kept, t)
		}
	}
	removed := len(s.tasks) - len(kept)
	s.tasks = kept
	return removed
}

func (s *Store) Get(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return domain.Task{}, false
	}
	return s.tasks[i], true
}

// Snapshot returns a copy of the tasks in store order.
func (s *Store) Snapshot() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Task, len(s.tasks))
	copy(cp, s.tasks)
	return cp
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) index(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
