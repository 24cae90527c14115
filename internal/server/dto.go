package server

import (
	"time"

	"taskdeck/internal/domain"
	"taskdeck/internal/engine"
)

// Request payloads

// TodoRequest is the body of create and replace calls. Clients may echo id back; it is ignored.
type TodoRequest struct {
	ID          string    `json:"id,omitempty" doc:"Ignored; the path or server decides the id"`
	Title       string    `json:"title" example:"Pay rent"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty" doc:"Defaults to the server time on create"`
	DueAt       time.Time `json:"dueAt" example:"2024-07-01T10:00:00Z"`
}

func (r TodoRequest) options(actorID string) engine.TodoOptions {
	return engine.TodoOptions{
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
		DueAt:       r.DueAt,
		ActorID:     actorID,
	}
}

// Response payloads

type TodoResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	DueAt       time.Time `json:"dueAt"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type" enum:"todo.created,todo.updated,todo.deleted"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type eventList struct {
	Items []EventResponse `json:"items"`
}

type healthResponse struct {
	Status        string `json:"status" example:"ok"`
	SchemaVersion int    `json:"schema_version"`
}

// Conversion helpers

func todoResponse(t domain.Task) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		DueAt:       t.DueAt.UTC(),
	}
}

func mapTodos(items []domain.Task) []TodoResponse {
	res := make([]TodoResponse, 0, len(items))
	for _, t := range items {
		res = append(res, todoResponse(t))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse(e)
}
