package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gleanlang/glean/internal/config"
	"github.com/gleanlang/glean/internal/home"
	"github.com/gleanlang/glean/internal/svcctx"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the glean config file",
	Long: `Manage the glean config file.

Config is read from --config, ./config.yaml or ~/.glean/config.yaml, with
GLEAN_* environment variables taking precedence. The model token may use
${ENV_VAR} syntax; GITHUB_TOKEN is read directly for GitHub Models.

Examples:
  glean config init   # Write a commented default config
  glean config show   # Print the effective configuration`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a commented default config file to the glean home directory
(default: ~/.glean/config.yaml). Existing files are not overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() {
			return fmt.Errorf("%s already exists", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *svcctx.ConfigFrom(cmd.Context()).Get()
		// Placeholders are safe to show; resolved secrets are not.
		if cfg.Token != "" && !strings.HasPrefix(cfg.Token, "${") {
			cfg.Token = "<redacted>"
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
