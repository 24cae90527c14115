package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskdeck/internal/config"
	"taskdeck/internal/intersect"
)

func intersectCmd() *cobra.Command {
	var membersPath, seqPath string
	cmd := &cobra.Command{
		Use:   "intersect",
		Short: "Print the lines of --seq that also appear in --members, in --seq order",
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := readLines(membersPath)
			if err != nil {
				return err
			}
			seq, err := readLines(seqPath)
			if err != nil {
				return err
			}
			out := intersect.Ordered(members, seq)
			if current.settings.JSON {
				return printJSON(out)
			}
			for _, v := range out {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&membersPath, "members", "", "file with one member per line")
	cmd.Flags().StringVar(&seqPath, "seq", "", "file with the sequence to filter, one item per line")
	_ = cmd.MarkFlagRequired("members")
	_ = cmd.MarkFlagRequired("seq")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or create the client config file"}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config file values in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := redacted(current.cfg)
			if current.settings.JSON {
				return printJSON(shown)
			}
			out, err := yaml.Marshal(shown)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented taskdeck.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(current.settings.Workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.API.Token != "" {
		c.API.Token = "***"
	}
	if c.Server.JWTSecret != "" {
		c.Server.JWTSecret = "***"
	}
	return c
}

// readLines returns the trimmed, non-blank lines of a file.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func dotEnvPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// setEnvValue sets key in the .env file at path, keeping the other entries.
func setEnvValue(path, key, value string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		values = map[string]string{}
	}
	values[key] = value
	return godotenv.Write(values, path)
}
