package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"taskdeck/internal/db"
	"taskdeck/internal/migrate"
	"taskdeck/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the todo HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := current.settings
			if !cmd.Flags().Changed("addr") {
				addr = s.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = s.BasePath
			}
			conn, err := db.Open(db.Config{Workspace: s.Workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(cmd.Context(), conn); err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				DB:       conn,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: s.JWTSecret},
				Logger:   current.logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			current.logger.Info("serving todo API", "addr", "http://"+addr, "base_path", basePath, "db", db.Path(s.Workspace), "auth", s.JWTSecret != "")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3000", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/", "API base path")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	var save bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := current.settings
			if s.JWTSecret == "" {
				return fmt.Errorf("TASKDECK_JWT_SECRET (or server.jwt_secret) is required")
			}
			token, err := server.IssueToken(s.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			if save {
				if err := setEnvValue(dotEnvPath(s.Workspace), "TASKDECK_TOKEN", token); err != nil {
					return err
				}
			}
			if s.JSON {
				return printJSON(map[string]string{"token": token, "subject": subject})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject (recorded as the actor in the change log)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	cmd.Flags().BoolVar(&save, "save", false, "write the token to TASKDECK_TOKEN in the workspace .env")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Change log of the todo API"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest changes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := current.settings
			evts, err := newClient(s).Events(cmd.Context(), n)
			if err != nil {
				return err
			}
			mode, err := parseMode(s.Mode)
			if err != nil {
				return err
			}
			return printEvents(cmd.OutOrStdout(), evts, mode)
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

