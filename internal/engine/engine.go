package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskdeck/internal/domain"
	"taskdeck/internal/events"
	"taskdeck/internal/repo"
)

// Engine applies todo mutations and records each one in the event log within the same transaction.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Now      func() time.Time
	NewID    func() string
	validate *validator.Validate
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Now:      time.Now,
		NewID:    uuid.NewString,
		validate: validator.New(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) check(v any) error {
	if e.validate == nil {
		return validator.New().Struct(v)
	}
	return e.validate.Struct(v)
}

// TodoOptions carry the client-editable fields of a todo.
type TodoOptions struct {
	Title       string `validate:"required"`
	Description string
	Completed   bool
	CreatedAt   time.Time
	DueAt       time.Time
	ActorID     string
}

func (o TodoOptions) normalized() TodoOptions {
	o.Title = strings.TrimSpace(o.Title)
	o.Description = strings.TrimSpace(o.Description)
	return o
}

// CreateTodo stores a new todo with a fresh id. A zero CreatedAt becomes the current time.
func (e Engine) CreateTodo(ctx context.Context, opts TodoOptions) (domain.Task, error) {
	opts = opts.normalized()
	if err := e.check(opts); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          e.newID(),
		Title:       opts.Title,
		Description: opts.Description,
		Completed:   opts.Completed,
		CreatedAt:   opts.CreatedAt,
		DueAt:       opts.DueAt,
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = e.now()
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertTodo(ctx, tx, t); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, "todo.created", "todo", t.ID, opts.ActorID, events.EventPayload{
			"title": t.Title,
			"dueAt": t.DueAt.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ReplaceTodo overwrites every field of todo id. A zero CreatedAt keeps the stored value.
func (e Engine) ReplaceTodo(ctx context.Context, id string, opts TodoOptions) (domain.Task, error) {
	opts = opts.normalized()
	if err := e.check(opts); err != nil {
		return domain.Task{}, err
	}
	var updated domain.Task
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		current, err := e.Repo.GetTodoTx(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = domain.Task{
			ID:          current.ID,
			Title:       opts.Title,
			Description: opts.Description,
			Completed:   opts.Completed,
			CreatedAt:   opts.CreatedAt,
			DueAt:       opts.DueAt,
		}
		if updated.CreatedAt.IsZero() {
			updated.CreatedAt = current.CreatedAt
		}
		if err := e.Repo.UpdateTodo(ctx, tx, updated); err != nil {
			return err
		}
		payload := events.EventPayload{"title": updated.Title, "completed": updated.Completed}
		if !updated.DueAt.Equal(current.DueAt) {
			payload["dueAt"] = updated.DueAt.UTC().Format(time.RFC3339)
		}
		return e.writer().Append(ctx, tx, "todo.updated", "todo", updated.ID, opts.ActorID, payload)
	})
	if err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// DeleteTodo removes todo id; repo.ErrNotFound when it does not exist.
func (e Engine) DeleteTodo(ctx context.Context, id, actorID string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteTodo(ctx, tx, id); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, "todo.deleted", "todo", id, actorID, nil)
	})
}

func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
