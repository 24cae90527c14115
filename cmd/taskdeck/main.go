package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdeck/internal/config"
	"taskdeck/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Taskdeck CLI",
	Long: `Taskdeck keeps a todo list on a small REST API and reminds you when things fall due.
- Todos: a title, an optional description, a due time and a completed flag.
- Views: search, filter (all, completed, pending, overdue) and sort (dueAsc, dueDesc, createdAsc, createdDesc).
- Alerts: 'taskdeck watch' fires one alert per incomplete todo when its due time arrives.
- Server: 'taskdeck serve' runs the API on SQLite under .taskdeck/ with a change log ('taskdeck log tail').`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return prepare(viper.GetViper())
	},
}

// current is filled by prepare before any command runs.
var current struct {
	cfg      *config.Config
	settings settings
	logger   *log.Logger
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default: taskdeck.yml or taskdeck.toml in the workspace)")
	rootCmd.PersistentFlags().String("api", config.Default().API.BaseURL, "todo API base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the API")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("mode", "", "display mode (light or dark)")
	for _, name := range []string{"workspace", "config", "api", "token", "json", "log-level", "mode"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(clearCompletedCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(intersectCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

// settings is the effective configuration after flags, environment and file are merged.
type settings struct {
	Workspace string
	API       string
	Token     string
	Timeout   time.Duration
	JSON      bool
	LogLevel  string
	LogFormat string
	Mode      string
	Filter    string
	Sort      string
	Interval  time.Duration
	Addr      string
	BasePath  string
	JWTSecret string
}

// prepare loads the workspace .env and config file, then resolves settings.
// Precedence: flag, then TASKDECK_* environment, then config file, then built-in defaults.
func prepare(v *viper.Viper) error {
	workspace := v.GetString("workspace")
	if err := loadDotEnv(workspace); err != nil {
		return err
	}
	cfg, err := loadConfig(workspace, v.GetString("config"))
	if err != nil {
		return err
	}
	s := resolveSettings(v, cfg)
	logger, err := logging.New(os.Stderr, logging.Options{Level: s.LogLevel, Formatter: s.LogFormat})
	if err != nil {
		return err
	}
	current.cfg = cfg
	current.settings = s
	current.logger = logger
	return nil
}

func loadDotEnv(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	err := godotenv.Load(filepath.Join(workspace, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func loadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

func resolveSettings(v *viper.Viper, cfg *config.Config) settings {
	v.SetDefault("api", cfg.API.BaseURL)
	v.SetDefault("token", cfg.API.Token)
	v.SetDefault("timeout", cfg.API.Timeout.Duration)
	v.SetDefault("log-level", cfg.Log.Level)
	v.SetDefault("log-format", cfg.Log.Format)
	v.SetDefault("mode", cfg.View.Mode)
	v.SetDefault("filter", cfg.View.Filter)
	v.SetDefault("sort", cfg.View.Sort)
	v.SetDefault("interval", cfg.Watch.Interval.Duration)
	v.SetDefault("addr", cfg.Server.Addr)
	v.SetDefault("base-path", cfg.Server.BasePath)
	v.SetDefault("jwt-secret", cfg.Server.JWTSecret)
	return settings{
		Workspace: v.GetString("workspace"),
		API:       v.GetString("api"),
		Token:     v.GetString("token"),
		Timeout:   v.GetDuration("timeout"),
		JSON:      v.GetBool("json"),
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
		Mode:      v.GetString("mode"),
		Filter:    v.GetString("filter"),
		Sort:      v.GetString("sort"),
		Interval:  v.GetDuration("interval"),
		Addr:      v.GetString("addr"),
		BasePath:  v.GetString("base-path"),
		JWTSecret: v.GetString("jwt-secret"),
	}
}
