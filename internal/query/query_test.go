package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/domain"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func titles(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func fixture() []domain.Task {
	return []domain.Task{
		{ID: "1", Title: "Buy milk", Description: "two litres", DueAt: now.Add(3 * time.Hour), CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "2", Title: "File taxes", Description: "", DueAt: now.Add(-2 * time.Hour), CreatedAt: now.Add(-9 * time.Hour)},
		{ID: "3", Title: "Call mom", Description: "about MILK delivery", Completed: true, DueAt: now.Add(-1 * time.Hour), CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "4", Title: "Renew passport", DueAt: now.Add(48 * time.Hour), CreatedAt: now.Add(-3 * time.Hour)},
	}
}

func TestApply_OverduePendingScenario(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", Title: "A", DueAt: now.Add(time.Hour)},
		{ID: "b", Title: "B", DueAt: now.Add(-time.Hour)},
	}
	assert.Equal(t, []string{"B"}, titles(Apply(tasks, Criteria{Filter: domain.FilterOverdue}, now)))
	assert.Equal(t, []string{"A"}, titles(Apply(tasks, Criteria{Filter: domain.FilterPending}, now)))
}

func TestApply_OverdueIffIncompleteAndPastDue(t *testing.T) {
	tasks := fixture()
	overdue := Apply(tasks, Criteria{Filter: domain.FilterOverdue}, now)
	pending := Apply(tasks, Criteria{Filter: domain.FilterPending}, now)

	inOverdue := map[string]bool{}
	for _, o := range overdue {
		inOverdue[o.ID] = true
	}
	for _, task := range tasks {
		want := !task.Completed && task.DueAt.Before(now)
		assert.Equal(t, want, inOverdue[task.ID], "task %s", task.ID)
	}
	for _, p := range pending {
		assert.False(t, inOverdue[p.ID], "task %s is both pending and overdue", p.ID)
	}
}

func TestApply_DueExactlyNowIsPending(t *testing.T) {
	tasks := []domain.Task{{ID: "x", Title: "X", DueAt: now}}
	assert.Empty(t, Apply(tasks, Criteria{Filter: domain.FilterOverdue}, now))
	assert.Len(t, Apply(tasks, Criteria{Filter: domain.FilterPending}, now), 1)
}

func TestApply_AllWithEmptySearchKeepsEverything(t *testing.T) {
	tasks := fixture()
	out := Apply(tasks, Criteria{Filter: domain.FilterAll}, now)
	assert.Len(t, out, len(tasks))
	assert.Equal(t, titles(tasks), titles(out))
}

func TestApply_SearchTitleOrDescription(t *testing.T) {
	out := Apply(fixture(), Criteria{Search: "  milk "}, now)
	assert.Equal(t, []string{"Buy milk", "Call mom"}, titles(out))

	out = Apply(fixture(), Criteria{Search: "PASS"}, now)
	assert.Equal(t, []string{"Renew passport"}, titles(out))

	assert.Empty(t, Apply(fixture(), Criteria{Search: "nothing here"}, now))
}

func TestApply_CompletedFilter(t *testing.T) {
	out := Apply(fixture(), Criteria{Filter: domain.FilterCompleted}, now)
	assert.Equal(t, []string{"Call mom"}, titles(out))
}

func TestApply_Sorts(t *testing.T) {
	tasks := fixture()
	assert.Equal(t, []string{"File taxes", "Call mom", "Buy milk", "Renew passport"},
		titles(Apply(tasks, Criteria{Sort: domain.SortDueAsc}, now)))
	assert.Equal(t, []string{"File taxes", "Buy milk", "Renew passport", "Call mom"},
		titles(Apply(tasks, Criteria{Sort: domain.SortCreatedAsc}, now)))
	assert.Equal(t, []string{"Call mom", "Renew passport", "Buy milk", "File taxes"},
		titles(Apply(tasks, Criteria{Sort: domain.SortCreatedDesc}, now)))
}

func TestApply_DueAscReversedIsDueDesc(t *testing.T) {
	tasks := fixture()
	asc := Apply(tasks, Criteria{Sort: domain.SortDueAsc}, now)
	desc := Apply(tasks, Criteria{Sort: domain.SortDueDesc}, now)
	require.Len(t, desc, len(asc))
	for i := range asc {
		assert.Equal(t, asc[i].ID, desc[len(desc)-1-i].ID)
	}
}

func TestApply_StableOnTies(t *testing.T) {
	due := now.Add(time.Hour)
	tasks := []domain.Task{
		{ID: "1", Title: "first", DueAt: due},
		{ID: "2", Title: "early", DueAt: now.Add(time.Minute)},
		{ID: "3", Title: "second", DueAt: due},
		{ID: "4", Title: "third", DueAt: due},
	}
	assert.Equal(t, []string{"early", "first", "second", "third"},
		titles(Apply(tasks, Criteria{Sort: domain.SortDueAsc}, now)))
	assert.Equal(t, []string{"first", "second", "third", "early"},
		titles(Apply(tasks, Criteria{Sort: domain.SortDueDesc}, now)))
}

func TestApply_UnknownSortKeepsOrder(t *testing.T) {
	tasks := fixture()
	out := Apply(tasks, Criteria{Sort: "byColour"}, now)
	assert.Equal(t, titles(tasks), titles(out))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tasks := fixture()
	before := titles(tasks)
	_ = Apply(tasks, Criteria{Sort: domain.SortDueDesc, Filter: domain.FilterPending}, now)
	assert.Equal(t, before, titles(tasks))
}

func TestApply_OverdueFollowsClock(t *testing.T) {
	tasks := []domain.Task{{ID: "a", Title: "A", DueAt: now.Add(time.Minute)}}
	assert.Empty(t, Apply(tasks, Criteria{Filter: domain.FilterOverdue}, now))
	assert.Len(t, Apply(tasks, Criteria{Filter: domain.FilterOverdue}, now.Add(2*time.Minute)), 1)
}

func TestCounts(t *testing.T) {
	c := Counts(fixture(), now)
	assert.Equal(t, 2, c[domain.StatusPending])
	assert.Equal(t, 1, c[domain.StatusOverdue])
	assert.Equal(t, 1, c[domain.StatusCompleted])
}

func TestParseFilterAndSort(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterAll, f)

	f, err = ParseFilter("Overdue")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterOverdue, f)

	_, err = ParseFilter("late")
	assert.Error(t, err)

	s, err := ParseSort("createddesc")
	require.NoError(t, err)
	assert.Equal(t, domain.SortCreatedDesc, s)

	s, err = ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, domain.SortKey(""), s)

	_, err = ParseSort("random")
	assert.Error(t, err)
}
