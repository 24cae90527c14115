package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdeck/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const todoColumns = `id,title,COALESCE(description,'') AS description,completed,created_at,due_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var completed int
	var createdAt, dueAt string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &completed, &createdAt, &dueAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, ErrNotFound
		}
		return t, err
	}
	t.Completed = completed != 0
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("todo %s created_at: %w", t.ID, err)
	}
	if t.DueAt, err = parseTime(dueAt); err != nil {
		return t, fmt.Errorf("todo %s due_at: %w", t.ID, err)
	}
	return t, nil
}

// ListTodos returns every todo in insertion order.
func (r Repo) ListTodos(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) GetTodo(ctx context.Context, id string) (domain.Task, error) {
	return scanTodo(r.DB.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id=?`, id))
}

func (r Repo) GetTodoTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTodo(tx.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id=?`, id))
}

func (r Repo) InsertTodo(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO todos(id,title,description,completed,created_at,due_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, boolInt(t.Completed), formatTime(t.CreatedAt), formatTime(t.DueAt))
	return err
}

func (r Repo) UpdateTodo(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE todos SET title=?, description=?, completed=?, created_at=?, due_at=? WHERE id=?`,
		t.Title, t.Description, boolInt(t.Completed), formatTime(t.CreatedAt), formatTime(t.DueAt), t.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r Repo) DeleteTodo(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// LatestEvents returns up to limit events, newest first, optionally filtered by type and entity.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var where []string
	var args []any
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		where = append(where, "entity_id=?")
		args = append(args, entityID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}
