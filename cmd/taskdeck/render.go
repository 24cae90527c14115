package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"taskdeck/internal/domain"
	"taskdeck/internal/notify"
	"taskdeck/internal/session"
	taskdecksdk "taskdeck/sdk/go"
)

const timeLayout = "2006-01-02 15:04"

func tableStyle(mode domain.Mode) table.Style {
	if mode == domain.ModeDark {
		return table.StyleColoredDark
	}
	return table.StyleLight
}

func statusText(st domain.Status, mode domain.Mode) string {
	if mode != domain.ModeDark {
		return string(st)
	}
	switch st {
	case domain.StatusOverdue:
		return text.FgHiRed.Sprint(st)
	case domain.StatusCompleted:
		return text.FgHiGreen.Sprint(st)
	default:
		return text.FgHiYellow.Sprint(st)
	}
}

func printTasks(w io.Writer, tasks []domain.Task, counts map[domain.Status]int, mode domain.Mode, now time.Time) error {
	if current.settings.JSON {
		return writeJSON(w, tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(tableStyle(mode))
	tw.AppendHeader(table.Row{"ID", "Title", "Description", "Due", "Status"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Description, t.DueAt.Local().Format(timeLayout), statusText(t.StatusAt(now), mode)})
	}
	if counts != nil {
		tw.AppendFooter(table.Row{"", fmt.Sprintf("%d shown", len(tasks)), "", "",
			fmt.Sprintf("%d pending / %d overdue / %d done",
				counts[domain.StatusPending], counts[domain.StatusOverdue], counts[domain.StatusCompleted])})
	}
	tw.Render()
	return nil
}

func printTask(t domain.Task, mode domain.Mode) error {
	return printTasks(os.Stdout, []domain.Task{t}, nil, mode, time.Now())
}

func printEvents(w io.Writer, evts []taskdecksdk.Event, mode domain.Mode) error {
	if current.settings.JSON {
		return writeJSON(w, evts)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(tableStyle(mode))
	tw.AppendHeader(table.Row{"ID", "Time", "Type", "Todo", "Actor", "Payload"})
	for _, e := range evts {
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityID, e.ActorID, e.Payload})
	}
	tw.Render()
	return nil
}

func printAlert(a notify.Alert) {
	if current.settings.JSON {
		_ = printJSON(a)
		return
	}
	fmt.Printf("Due: %s (%s)\n", a.Title, a.DueAt.Local().Format(timeLayout))
}

// printMessages writes queued user-facing messages to stderr.
func printMessages(s *session.Session) {
	for _, msg := range s.Messages() {
		fmt.Fprintln(os.Stderr, msg)
	}
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
