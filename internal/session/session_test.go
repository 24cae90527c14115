package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/domain"
	"taskdeck/internal/notify"
	"taskdeck/internal/query"
	"taskdeck/internal/store"
	taskdecksdk "taskdeck/sdk/go"
)

var start = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu       sync.Mutex
	todos    []taskdecksdk.Todo
	nextID   int
	calls    []string
	failOn   map[string]error
	failList error
}

func (g *fakeGateway) record(call string) error {
	g.calls = append(g.calls, call)
	if err, ok := g.failOn[call]; ok {
		return err
	}
	return nil
}

func (g *fakeGateway) ListTodos(ctx context.Context) ([]taskdecksdk.Todo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "list")
	if g.failList != nil {
		return nil, g.failList
	}
	out := make([]taskdecksdk.Todo, len(g.todos))
	copy(out, g.todos)
	return out, nil
}

func (g *fakeGateway) CreateTodo(ctx context.Context, t taskdecksdk.Todo) (taskdecksdk.Todo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("create"); err != nil {
		return taskdecksdk.Todo{}, err
	}
	g.nextID++
	t.ID = fmt.Sprintf("t-%d", g.nextID)
	g.todos = append([]taskdecksdk.Todo{t}, g.todos...)
	return t, nil
}

func (g *fakeGateway) UpdateTodo(ctx context.Context, id string, t taskdecksdk.Todo) (taskdecksdk.Todo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("update " + id); err != nil {
		return taskdecksdk.Todo{}, err
	}
	for i := range g.todos {
		if g.todos[i].ID == id {
			g.todos[i] = t
			return t, nil
		}
	}
	return taskdecksdk.Todo{}, &taskdecksdk.APIError{StatusCode: 404}
}

func (g *fakeGateway) DeleteTodo(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record("delete " + id); err != nil {
		return err
	}
	for i := range g.todos {
		if g.todos[i].ID == id {
			g.todos = append(g.todos[:i], g.todos[i+1:]...)
			return nil
		}
	}
	return &taskdecksdk.APIError{StatusCode: 404}
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type alerts struct {
	mu  sync.Mutex
	ids []string
}

func (a *alerts) Notify(al notify.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, al.ID)
}

func (a *alerts) got() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.ids...)
}

type env struct {
	gw     *fakeGateway
	clock  *notify.FakeClock
	alerts *alerts
	s      *Session
	ctx    context.Context
}

func newEnv(t *testing.T, todos ...taskdecksdk.Todo) env {
	t.Helper()
	gw := &fakeGateway{todos: todos, failOn: map[string]error{}}
	clock := notify.NewFakeClock(start)
	al := &alerts{}
	s := New(Options{Gateway: gw, Clock: clock, Notifier: al, Logger: log.New(io.Discard)})
	t.Cleanup(s.Close)
	return env{gw: gw, clock: clock, alerts: al, s: s, ctx: context.Background()}
}

func titles(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestLoadReplacesStoreAndSchedules(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "b", Title: "B", DueAt: start.Add(-time.Hour)},
	)
	require.NoError(t, e.s.Load(e.ctx))
	assert.Equal(t, []string{"A", "B"}, titles(e.s.View()))
	assert.Equal(t, []string{"a"}, e.s.Scheduled())

	require.NoError(t, e.s.SetFilter("overdue"))
	assert.Equal(t, []string{"B"}, titles(e.s.View()))
	require.NoError(t, e.s.SetFilter("pending"))
	assert.Equal(t, []string{"A"}, titles(e.s.View()))
}

func TestLoadFailureKeepsStore(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))
	e.s.Messages()

	e.gw.failList = errors.New("connection refused")
	err := e.s.Load(e.ctx)
	require.Error(t, err)
	assert.Equal(t, []string{MsgServerDown}, e.s.Messages())
	assert.Equal(t, []string{"A"}, titles(e.s.Tasks()))

	e.gw.failList = &taskdecksdk.APIError{StatusCode: 500}
	require.Error(t, e.s.Load(e.ctx))
	assert.Equal(t, []string{MsgLoadFailed}, e.s.Messages())
}

func TestCreateWithEmptyTitleIssuesNoCall(t *testing.T) {
	e := newEnv(t)
	_, err := e.s.SubmitCreate(e.ctx, Draft{Title: "   ", DueAt: start.Add(time.Hour)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title"}, verr.Fields)
	assert.Empty(t, e.gw.callLog())
	assert.Equal(t, []string{MsgRequired}, e.s.Messages())
	assert.Empty(t, e.s.Tasks())

	_, err = e.s.SubmitCreate(e.ctx, Draft{Title: "No due"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"due date"}, verr.Fields)
	assert.Empty(t, e.gw.callLog())
}

func TestCreatePrependsAndSchedules(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "old", Title: "Old", DueAt: start.Add(-time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))

	created, err := e.s.SubmitCreate(e.ctx, Draft{Title: "  New  ", Description: " desc ", DueAt: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "New", created.Title)
	assert.Equal(t, "desc", created.Description)
	assert.False(t, created.Completed)
	assert.True(t, created.CreatedAt.Equal(start))
	assert.Equal(t, []string{"New", "Old"}, titles(e.s.Tasks()))
	assert.Equal(t, []string{created.ID}, e.s.Scheduled())
	assert.Equal(t, []string{MsgAdded}, e.s.Messages())

	e.clock.Advance(time.Hour)
	assert.Equal(t, []string{created.ID}, e.alerts.got())
}

func TestCreateFailureLeavesStoreUnchanged(t *testing.T) {
	e := newEnv(t)
	e.gw.failOn["create"] = &taskdecksdk.APIError{StatusCode: 500}
	_, err := e.s.SubmitCreate(e.ctx, Draft{Title: "X", DueAt: start.Add(time.Hour)})
	require.Error(t, err)
	assert.Empty(t, e.s.Tasks())
	assert.Empty(t, e.s.Scheduled())
	assert.Equal(t, []string{MsgSaveFailed}, e.s.Messages())
}

func TestCreateWithEmptySuccessBodyLeavesStoreUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	clock := notify.NewFakeClock(start)
	s := New(Options{Gateway: taskdecksdk.New(srv.URL), Clock: clock, Logger: log.New(io.Discard)})
	t.Cleanup(s.Close)

	_, err := s.SubmitCreate(context.Background(), Draft{Title: "A", DueAt: start.Add(time.Hour)})
	require.ErrorIs(t, err, ErrNoRecord)
	assert.Empty(t, s.Tasks())
	assert.Empty(t, s.View())
	assert.Empty(t, s.Scheduled())
	assert.Equal(t, []string{MsgSaveFailed}, s.Messages())
}

func TestLoadWithDuplicateIDsKeepsFirst(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "x", Title: "First", DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "x", Title: "Second", DueAt: start.Add(2 * time.Hour)},
	)
	require.NoError(t, e.s.Load(e.ctx))
	assert.Equal(t, []string{"First"}, titles(e.s.Tasks()))
	assert.Equal(t, []string{"x"}, e.s.Scheduled())
	assert.Equal(t, 1, e.clock.Pending())

	e.clock.Advance(time.Hour)
	assert.Equal(t, []string{"x"}, e.alerts.got())

	e.s.Close()
	assert.Zero(t, e.clock.Pending())
}

func TestToggleCancelsPendingAlert(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))
	require.Equal(t, []string{"a"}, e.s.Scheduled())

	toggled, err := e.s.ToggleComplete(e.ctx, "a")
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	assert.Empty(t, e.s.Scheduled())

	e.clock.Advance(2 * time.Hour)
	assert.Empty(t, e.alerts.got())
	require.NoError(t, e.s.SetFilter("overdue"))
	assert.Empty(t, e.s.View())
	require.NoError(t, e.s.SetFilter("completed"))
	assert.Equal(t, []string{"A"}, titles(e.s.View()))

	_, err = e.s.ToggleComplete(e.ctx, "a")
	require.NoError(t, err)
	require.NoError(t, e.s.SetFilter("overdue"))
	assert.Equal(t, []string{"A"}, titles(e.s.View()))
	assert.Empty(t, e.s.Scheduled(), "past due tasks are not rescheduled")
}

func TestToggleFailureKeepsState(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))
	e.gw.failOn["update a"] = errors.New("timeout")

	_, err := e.s.ToggleComplete(e.ctx, "a")
	require.Error(t, err)
	got, _ := e.s.store.Get("a")
	assert.False(t, got.Completed)
	assert.Equal(t, []string{"a"}, e.s.Scheduled())
	assert.Contains(t, e.s.Messages(), MsgUpdateFailed)
}

func TestEditReplacesFieldsAndReschedules(t *testing.T) {
	created := start.Add(-24 * time.Hour)
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", CreatedAt: created, DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))

	edited, err := e.s.SubmitEdit(e.ctx, "a", Draft{Title: "A2", Description: "more", DueAt: start.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "A2", edited.Title)
	assert.True(t, edited.CreatedAt.Equal(created), "createdAt is immutable")
	assert.Equal(t, []string{"update a"}, e.gw.callLog()[1:])

	e.clock.Advance(2 * time.Hour)
	assert.Empty(t, e.alerts.got())
	e.clock.Advance(time.Hour)
	assert.Equal(t, []string{"a"}, e.alerts.got())
}

func TestEditValidatesAndUnknownID(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))

	_, err := e.s.SubmitEdit(e.ctx, "a", Draft{Title: "", DueAt: start})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = e.s.SubmitEdit(e.ctx, "zzz", Draft{Title: "x", DueAt: start})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"list"}, e.gw.callLog())
}

func TestDeleteRemovesFromEveryView(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "b", Title: "B", DueAt: start.Add(-time.Hour)},
	)
	require.NoError(t, e.s.Load(e.ctx))
	require.NoError(t, e.s.DeleteRecord(e.ctx, "a"))

	for _, f := range domain.Filters {
		require.NoError(t, e.s.SetFilter(string(f)))
		for _, task := range e.s.View() {
			assert.NotEqual(t, "a", task.ID, "filter %s", f)
		}
	}
	assert.Empty(t, e.s.Scheduled())
	e.clock.Advance(2 * time.Hour)
	assert.Empty(t, e.alerts.got())
}

func TestDeleteFailureKeepsRecord(t *testing.T) {
	e := newEnv(t, taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)})
	require.NoError(t, e.s.Load(e.ctx))
	e.gw.failOn["delete a"] = &taskdecksdk.APIError{StatusCode: 503}

	require.Error(t, e.s.DeleteRecord(e.ctx, "a"))
	assert.Len(t, e.s.Tasks(), 1)
	assert.Equal(t, []string{MsgDeleteFailed}, e.s.Messages())
}

func TestClearCompleted(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "A", Completed: true, DueAt: start},
		taskdecksdk.Todo{ID: "b", Title: "B", DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "c", Title: "C", Completed: true, DueAt: start},
	)
	require.NoError(t, e.s.Load(e.ctx))

	n, err := e.s.ClearCompleted(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"B"}, titles(e.s.Tasks()))
	assert.Equal(t, []string{MsgCleared}, e.s.Messages())

	n, err = e.s.ClearCompleted(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{MsgNothingToClear}, e.s.Messages())
}

func TestClearCompletedStopsAtFirstFailure(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "A", Completed: true, DueAt: start},
		taskdecksdk.Todo{ID: "b", Title: "B", Completed: true, DueAt: start},
		taskdecksdk.Todo{ID: "c", Title: "C", Completed: true, DueAt: start},
	)
	require.NoError(t, e.s.Load(e.ctx))
	e.gw.failOn["delete b"] = &taskdecksdk.APIError{StatusCode: 500}

	n, err := e.s.ClearCompleted(e.ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"B", "C"}, titles(e.s.Tasks()))
	assert.NotContains(t, e.gw.callLog(), "delete c")
	assert.Equal(t, []string{MsgClearFailed}, e.s.Messages())
}

func TestCriteriaAndMode(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "Groceries", Description: "milk", CreatedAt: start.Add(-time.Hour), DueAt: start.Add(2 * time.Hour)},
		taskdecksdk.Todo{ID: "b", Title: "Milk the cow", CreatedAt: start.Add(-2 * time.Hour), DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "c", Title: "Taxes", CreatedAt: start.Add(-3 * time.Hour), DueAt: start.Add(3 * time.Hour)},
	)
	require.NoError(t, e.s.Load(e.ctx))

	e.s.SetQuery("MILK")
	require.NoError(t, e.s.SetSort("dueAsc"))
	assert.Equal(t, []string{"Milk the cow", "Groceries"}, titles(e.s.View()))
	assert.Equal(t, query.Criteria{Search: "MILK", Filter: domain.FilterAll, Sort: domain.SortDueAsc}, e.s.Criteria())

	assert.Error(t, e.s.SetSort("sideways"))
	assert.Error(t, e.s.SetFilter("someday"))
	assert.Equal(t, domain.SortDueAsc, e.s.Criteria().Sort)

	assert.Equal(t, domain.ModeLight, e.s.Mode())
	assert.Equal(t, domain.ModeDark, e.s.ToggleMode())
	assert.Equal(t, domain.ModeLight, e.s.ToggleMode())
}

func TestCounts(t *testing.T) {
	e := newEnv(t,
		taskdecksdk.Todo{ID: "a", Title: "A", DueAt: start.Add(time.Hour)},
		taskdecksdk.Todo{ID: "b", Title: "B", DueAt: start.Add(-time.Hour)},
		taskdecksdk.Todo{ID: "c", Title: "C", Completed: true, DueAt: start},
	)
	require.NoError(t, e.s.Load(e.ctx))
	c := e.s.Counts()
	assert.Equal(t, 1, c[domain.StatusPending])
	assert.Equal(t, 1, c[domain.StatusOverdue])
	assert.Equal(t, 1, c[domain.StatusCompleted])

	e.clock.Advance(2 * time.Hour)
	c = e.s.Counts()
	assert.Equal(t, 0, c[domain.StatusPending])
	assert.Equal(t, 2, c[domain.StatusOverdue])
}
