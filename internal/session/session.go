// Package session is the command interface over one user's view of the todo list.
// It owns the record store, the alert scheduler and the current query criteria,
// and keeps them in step with the remote API.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"taskdeck/internal/domain"
	"taskdeck/internal/notify"
	"taskdeck/internal/query"
	"taskdeck/internal/store"
	taskdecksdk "taskdeck/sdk/go"
)

// Gateway is the remote CRUD API. *taskdecksdk.Client implements it.
type Gateway interface {
	ListTodos(ctx context.Context) ([]taskdecksdk.Todo, error)
	CreateTodo(ctx context.Context, t taskdecksdk.Todo) (taskdecksdk.Todo, error)
	UpdateTodo(ctx context.Context, id string, t taskdecksdk.Todo) (taskdecksdk.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
}

// Draft is the content of the create/edit form.
type Draft struct {
	Title       string    `validate:"required"`
	Description string
	DueAt       time.Time `validate:"required"`
}

// ValidationError reports form fields that blocked a submission.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: missing %s", strings.Join(e.Fields, ", "))
}

// ErrNoRecord means the server accepted a create but sent no record back.
var ErrNoRecord = errors.New("server returned no record")

// User-facing messages, one per outcome.
const (
	MsgRequired       = "Title & due date required"
	MsgAdded          = "Added"
	MsgSaveFailed     = "Save failed"
	MsgUpdated        = "Updated"
	MsgUpdateFailed   = "Update failed"
	MsgDeleted        = "Deleted"
	MsgDeleteFailed   = "Delete failed"
	MsgNothingToClear = "Nothing to clear"
	MsgCleared        = "Cleared completed"
	MsgClearFailed    = "Clear failed"
	MsgServerDown     = "Server not running"
	MsgLoadFailed     = "Load failed"
	MsgUnknownRecord  = "Task not found"
)

type Options struct {
	Gateway  Gateway
	Clock    notify.Clock
	Notifier notify.Notifier
	Logger   *log.Logger
	Criteria query.Criteria
	Mode     domain.Mode
}

// Session serializes every command; a command that waits on the gateway holds back the next one.
type Session struct {
	mu       sync.Mutex
	gateway  Gateway
	clock    notify.Clock
	store    *store.Store
	sched    *notify.Scheduler
	validate *validator.Validate
	logger   *log.Logger
	criteria query.Criteria
	mode     domain.Mode

	msgMu    sync.Mutex
	messages []string
}

func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = notify.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeLight
	}
	if opts.Criteria.Filter == "" {
		opts.Criteria.Filter = domain.FilterAll
	}
	st := store.New(nil)
	return &Session{
		gateway:  opts.Gateway,
		clock:    opts.Clock,
		store:    st,
		sched:    notify.New(opts.Clock, st.Get, opts.Notifier, opts.Logger),
		validate: validator.New(),
		logger:   opts.Logger,
		criteria: opts.Criteria,
		mode:     opts.Mode,
	}
}

// Close cancels every pending alert.
func (s *Session) Close() {
	s.sched.Stop()
}

// Load replaces the store with the remote list.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.gateway.ListTodos(ctx)
	if err != nil {
		var apiErr *taskdecksdk.APIError
		if errors.As(err, &apiErr) {
			s.say(MsgLoadFailed)
		} else {
			s.say(MsgServerDown)
		}
		return fmt.Errorf("load: %w", err)
	}
	tasks := make([]domain.Task, 0, len(items))
	for _, it := range items {
		tasks = append(tasks, fromWire(it))
	}
	s.store.Replace(tasks)
	s.rebuild()
	return nil
}

// SubmitCreate validates d, creates it remotely and puts the result first in the store.
func (s *Session) SubmitCreate(ctx context.Context, d Draft) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.check(d)
	if err != nil {
		return domain.Task{}, err
	}
	saved, err := s.gateway.CreateTodo(ctx, taskdecksdk.Todo{
		Title:       d.Title,
		Description: d.Description,
		Completed:   false,
		CreatedAt:   s.clock.Now().UTC(),
		DueAt:       d.DueAt.UTC(),
	})
	if err != nil {
		s.say(MsgSaveFailed)
		return domain.Task{}, fmt.Errorf("create: %w", err)
	}
	if saved.ID == "" {
		s.say(MsgSaveFailed)
		return domain.Task{}, fmt.Errorf("create: %w", ErrNoRecord)
	}
	t := fromWire(saved)
	s.store.Prepend(t)
	s.rebuild()
	s.say(MsgAdded)
	return t, nil
}

// SubmitEdit replaces title, description and due time of an existing task.
func (s *Session) SubmitEdit(ctx context.Context, id string, d Draft) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.lookup(id)
	if err != nil {
		return domain.Task{}, err
	}
	d, err = s.check(d)
	if err != nil {
		return domain.Task{}, err
	}
	current.Title = d.Title
	current.Description = d.Description
	current.DueAt = d.DueAt.UTC()
	return s.put(ctx, current, MsgUpdated, "edit")
}

// ToggleComplete flips the completed flag of a task.
func (s *Session) ToggleComplete(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.lookup(id)
	if err != nil {
		return domain.Task{}, err
	}
	current.Completed = !current.Completed
	return s.put(ctx, current, "", "toggle")
}

// DeleteRecord deletes a task remotely, then locally.
func (s *Session) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(id); err != nil {
		return err
	}
	if err := s.gateway.DeleteTodo(ctx, id); err != nil {
		s.say(MsgDeleteFailed)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if err := s.store.Remove(id); err != nil {
		return err
	}
	s.rebuild()
	s.say(MsgDeleted)
	return nil
}

// ClearCompleted deletes every completed task one at a time and stops at the first failure.
// Tasks deleted before the failure are dropped locally too; the rest stay.
func (s *Session) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var done []string
	for _, t := range s.store.Snapshot() {
		if t.Completed {
			done = append(done, t.ID)
		}
	}
	if len(done) == 0 {
		s.say(MsgNothingToClear)
		return 0, nil
	}
	cleared := 0
	for _, id := range done {
		if err := s.gateway.DeleteTodo(ctx, id); err != nil {
			s.rebuild()
			s.say(MsgClearFailed)
			return cleared, fmt.Errorf("clear completed: delete %s: %w", id, err)
		}
		if err := s.store.Remove(id); err == nil {
			cleared++
		}
	}
	s.rebuild()
	s.say(MsgCleared)
	return cleared, nil
}

func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Search = q
}

func (s *Session) SetFilter(f string) error {
	parsed, err := query.ParseFilter(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Filter = parsed
	return nil
}

func (s *Session) SetSort(k string) error {
	parsed, err := query.ParseSort(k)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Sort = parsed
	return nil
}

func (s *Session) Criteria() query.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// ToggleMode switches between light and dark and returns the new mode.
func (s *Session) ToggleMode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.mode.Toggle()
	return s.mode
}

func (s *Session) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// View returns the filtered, sorted tasks for the current criteria at the current time.
func (s *Session) View() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Apply(s.store.Snapshot(), s.criteria, s.clock.Now())
}

// Counts tallies every stored task by derived status.
func (s *Session) Counts() map[domain.Status]int {
	return query.Counts(s.store.Snapshot(), s.clock.Now())
}

// Tasks returns the store contents in store order.
func (s *Session) Tasks() []domain.Task {
	return s.store.Snapshot()
}

// Scheduled returns the ids that have a pending alert.
func (s *Session) Scheduled() []string {
	return s.sched.Scheduled()
}

// Messages drains the queued user-facing messages.
func (s *Session) Messages() []string {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	out := s.messages
	s.messages = nil
	return out
}

func (s *Session) put(ctx context.Context, t domain.Task, okMsg, op string) (domain.Task, error) {
	updated, err := s.gateway.UpdateTodo(ctx, t.ID, toWire(t))
	if err != nil {
		s.say(MsgUpdateFailed)
		return domain.Task{}, fmt.Errorf("%s %s: %w", op, t.ID, err)
	}
	res := fromWire(updated)
	if res.ID == "" {
		res = t
	}
	if err := s.store.ReplaceByID(res); err != nil {
		return domain.Task{}, err
	}
	s.rebuild()
	if okMsg != "" {
		s.say(okMsg)
	}
	return res, nil
}

func (s *Session) check(d Draft) (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if err := s.validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return d, err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			switch fe.Field() {
			case "DueAt":
				fields = append(fields, "due date")
			default:
				fields = append(fields, strings.ToLower(fe.Field()))
			}
		}
		s.say(MsgRequired)
		return d, &ValidationError{Fields: fields}
	}
	return d, nil
}

func (s *Session) lookup(id string) (domain.Task, error) {
	t, ok := s.store.Get(id)
	if !ok {
		s.say(MsgUnknownRecord)
		return domain.Task{}, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return t, nil
}

func (s *Session) rebuild() {
	s.sched.Rebuild(s.store.Snapshot())
}

func (s *Session) say(msg string) {
	s.logger.Debug("message", "text", msg)
	s.msgMu.Lock()
	s.messages = append(s.messages, msg)
	s.msgMu.Unlock()
}

func fromWire(t taskdecksdk.Todo) domain.Task {
	return domain.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		DueAt:       t.DueAt,
	}
}

func toWire(t domain.Task) taskdecksdk.Todo {
	return taskdecksdk.Todo{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		DueAt:       t.DueAt,
	}
}
