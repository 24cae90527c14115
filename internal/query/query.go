// Package query derives filtered, sorted views of a task list.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"taskdeck/internal/domain"
)

// Criteria are the three independent inputs of a view.
type Criteria struct {
	Search string
	Filter domain.Filter
	Sort   domain.SortKey
}

// Apply returns the tasks matching c, ordered by c.Sort. The input slice is not modified.
// Overdue and pending are evaluated against now.
func Apply(tasks []domain.Task, c Criteria, now time.Time) []domain.Task {
	needle := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if needle != "" && !matches(t, needle) {
			continue
		}
		if !keep(t, c.Filter, now) {
			continue
		}
		out = append(out, t)
	}
	if less := lessFunc(c.Sort, out); less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func matches(t domain.Task, needle string) bool {
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

func keep(t domain.Task, f domain.Filter, now time.Time) bool {
	switch f {
	case domain.FilterCompleted:
		return t.Completed
	case domain.FilterPending:
		return t.StatusAt(now) == domain.StatusPending
	case domain.FilterOverdue:
		return t.Overdue(now)
	default:
		return true
	}
}

func lessFunc(key domain.SortKey, out []domain.Task) func(i, j int) bool {
	switch key {
	case domain.SortDueAsc:
		return func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) }
	case domain.SortDueDesc:
		return func(i, j int) bool { return out[j].DueAt.Before(out[i].DueAt) }
	case domain.SortCreatedAsc:
		return func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) }
	case domain.SortCreatedDesc:
		return func(i, j int) bool { return out[j].CreatedAt.Before(out[i].CreatedAt) }
	default:
		return nil
	}
}

// Counts tallies tasks per derived status at now.
func Counts(tasks []domain.Task, now time.Time) map[domain.Status]int {
	counts := map[domain.Status]int{
		domain.StatusPending:   0,
		domain.StatusOverdue:   0,
		domain.StatusCompleted: 0,
	}
	for _, t := range tasks {
		counts[t.StatusAt(now)]++
	}
	return counts
}

// ParseFilter validates user input. Empty input means all.
func ParseFilter(s string) (domain.Filter, error) {
	if s == "" {
		return domain.FilterAll, nil
	}
	for _, f := range domain.Filters {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid filter %q (want one of %s)", s, joinFilters())
}

// ParseSort validates user input. Empty input keeps store order.
func ParseSort(s string) (domain.SortKey, error) {
	if s == "" {
		return "", nil
	}
	for _, k := range domain.SortKeys {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid sort %q (want one of %s)", s, joinSorts())
}

func joinFilters() string {
	parts := make([]string, len(domain.Filters))
	for i, f := range domain.Filters {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func joinSorts() string {
	parts := make([]string, len(domain.SortKeys))
	for i, k := range domain.SortKeys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
