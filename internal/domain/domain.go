package domain

import "time"

// Task is a single todo record as the remote service stores it.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt" format:"date-time"`
	DueAt       time.Time `json:"dueAt" format:"date-time"`
}

// Status is derived from a task and the current time. It is never stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
)

// Overdue reports whether t is incomplete and due strictly before now.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && t.DueAt.Before(now)
}

// StatusAt returns the derived status of t at now.
func (t Task) StatusAt(now time.Time) Status {
	switch {
	case t.Completed:
		return StatusCompleted
	case t.Overdue(now):
		return StatusOverdue
	default:
		return StatusPending
	}
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
	FilterOverdue   Filter = "overdue"
)

// Filters lists the accepted status filters.
var Filters = []Filter{FilterAll, FilterCompleted, FilterPending, FilterOverdue}

type SortKey string

const (
	SortDueAsc      SortKey = "dueAsc"
	SortDueDesc     SortKey = "dueDesc"
	SortCreatedAsc  SortKey = "createdAsc"
	SortCreatedDesc SortKey = "createdDesc"
)

// SortKeys lists the accepted sort orders.
var SortKeys = []SortKey{SortDueAsc, SortDueDesc, SortCreatedAsc, SortCreatedDesc}

// Mode is the light/dark display mode of the presentation layer.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// Toggle flips light and dark. Anything else becomes light, matching a fresh page.
func (m Mode) Toggle() Mode {
	if m == ModeLight {
		return ModeDark
	}
	return ModeLight
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
