package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdeck/internal/domain"
	"taskdeck/internal/notify"
	"taskdeck/internal/query"
	"taskdeck/internal/session"
	taskdecksdk "taskdeck/sdk/go"
)

func listCmd() *cobra.Command {
	var search, filter, sortKey string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos matching search, filter and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), nil, func(ctx context.Context, s *session.Session) error {
				s.SetQuery(search)
				if cmd.Flags().Changed("filter") {
					if err := s.SetFilter(filter); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("sort") {
					if err := s.SetSort(sortKey); err != nil {
						return err
					}
				}
				return printTasks(os.Stdout, s.View(), s.Counts(), s.Mode(), time.Now())
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text in title or description")
	cmd.Flags().StringVar(&filter, "filter", "", "all, completed, pending or overdue")
	cmd.Flags().StringVar(&sortKey, "sort", "", "dueAsc, dueDesc, createdAsc or createdDesc")
	return cmd
}

func addCmd() *cobra.Command {
	var title, desc, due string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := session.Draft{Title: title, Description: desc}
			if strings.TrimSpace(due) != "" {
				parsed, err := parseDue(due, time.Local)
				if err != nil {
					return err
				}
				d.DueAt = parsed
			}
			return withSessionNoLoad(cmd.Context(), func(ctx context.Context, s *session.Session) error {
				t, err := s.SubmitCreate(ctx, d)
				if err != nil {
					return err
				}
				return printTask(t, s.Mode())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due time (RFC3339, 2006-01-02T15:04 or 2006-01-02)")
	return cmd
}

func editCmd() *cobra.Command {
	var title, desc, due string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit title, description or due time of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), nil, func(ctx context.Context, s *session.Session) error {
				id := args[0]
				var existing *domain.Task
				for _, t := range s.Tasks() {
					if t.ID == id {
						t := t
						existing = &t
						break
					}
				}
				d := session.Draft{}
				if existing != nil {
					d = session.Draft{Title: existing.Title, Description: existing.Description, DueAt: existing.DueAt}
				}
				if cmd.Flags().Changed("title") {
					d.Title = title
				}
				if cmd.Flags().Changed("description") {
					d.Description = desc
				}
				if cmd.Flags().Changed("due") {
					parsed, err := parseDue(due, time.Local)
					if err != nil {
						return err
					}
					d.DueAt = parsed
				}
				t, err := s.SubmitEdit(ctx, id, d)
				if err != nil {
					return err
				}
				return printTask(t, s.Mode())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", "new due time")
	return cmd
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the completed flag of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), nil, func(ctx context.Context, s *session.Session) error {
				t, err := s.ToggleComplete(ctx, args[0])
				if err != nil {
					return err
				}
				return printTask(t, s.Mode())
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), nil, func(ctx context.Context, s *session.Session) error {
				return s.DeleteRecord(ctx, args[0])
			})
		},
	}
}

func clearCompletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), nil, func(ctx context.Context, s *session.Session) error {
				n, err := s.ClearCompleted(ctx)
				if current.settings.JSON {
					if perr := printJSON(map[string]int{"cleared": n}); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print an alert whenever a todo falls due",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = current.settings.Interval
			}
			alerts := make(chan notify.Alert, 16)
			notifier := alertSink(cmd.Context(), alerts)
			return withSession(cmd.Context(), notifier, func(ctx context.Context, s *session.Session) error {
				fmt.Printf("Watching %d todos (%d alerts pending)\n", len(s.Tasks()), len(s.Scheduled()))
				var tick <-chan time.Time
				if interval > 0 {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					tick = ticker.C
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case a := <-alerts:
						printAlert(a)
					case <-tick:
						if err := s.Load(ctx); err != nil {
							current.logger.Warn("reload failed", "err", err)
						}
						printMessages(s)
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "reload interval (0 disables reloading)")
	return cmd
}

func modeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode",
		Short: "Toggle the display mode between light and dark",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(nil)
			if err != nil {
				return err
			}
			defer s.Close()
			mode := s.ToggleMode()
			if err := setEnvValue(dotEnvPath(current.settings.Workspace), "TASKDECK_MODE", string(mode)); err != nil {
				return err
			}
			if current.settings.JSON {
				return printJSON(map[string]string{"mode": string(mode)})
			}
			fmt.Println(mode)
			return nil
		},
	}
}

// --- helpers ---

// alertSink forwards alerts to ch until ctx is done; after that they are dropped.
func alertSink(ctx context.Context, ch chan<- notify.Alert) notify.NotifierFunc {
	return func(a notify.Alert) {
		select {
		case ch <- a:
		case <-ctx.Done():
		}
	}
}

func newClient(s settings) *taskdecksdk.Client {
	c := taskdecksdk.New(s.API)
	c.BearerToken = s.Token
	c.Timeout = s.Timeout
	return c
}

func newSession(notifier notify.Notifier) (*session.Session, error) {
	s := current.settings
	filter, err := query.ParseFilter(s.Filter)
	if err != nil {
		return nil, err
	}
	sortKey, err := query.ParseSort(s.Sort)
	if err != nil {
		return nil, err
	}
	mode, err := parseMode(s.Mode)
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Gateway:  newClient(s),
		Notifier: notifier,
		Logger:   current.logger,
		Criteria: query.Criteria{Filter: filter, Sort: sortKey},
		Mode:     mode,
	}), nil
}

// withSession loads the remote list before running fn and prints queued messages afterwards.
func withSession(ctx context.Context, notifier notify.Notifier, fn func(context.Context, *session.Session) error) error {
	s, err := newSession(notifier)
	if err != nil {
		return err
	}
	defer s.Close()
	defer printMessages(s)
	if err := s.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}

func withSessionNoLoad(ctx context.Context, fn func(context.Context, *session.Session) error) error {
	s, err := newSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()
	defer printMessages(s)
	return fn(ctx, s)
}

func parseMode(v string) (domain.Mode, error) {
	switch domain.Mode(strings.ToLower(strings.TrimSpace(v))) {
	case "", domain.ModeLight:
		return domain.ModeLight, nil
	case domain.ModeDark:
		return domain.ModeDark, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want light or dark)", v)
	}
}

var dueLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseDue accepts RFC3339 or a local date-time without zone.
func parseDue(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	for i, layout := range dueLayouts {
		var t time.Time
		var err error
		if i == 0 {
			t, err = time.Parse(layout, v)
		} else {
			t, err = time.ParseInLocation(layout, v, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due time %q (want RFC3339, 2006-01-02T15:04 or 2006-01-02)", v)
}
