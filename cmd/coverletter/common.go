package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/auth"
	"github.com/jonathan/coverletter/internal/backend"
	"github.com/jonathan/coverletter/internal/config"
	"github.com/jonathan/coverletter/internal/observability"
	"github.com/jonathan/coverletter/internal/sessionid"
	"github.com/jonathan/coverletter/internal/workspace"
)

// loadSettings layers defaults, the config file, the environment and flags,
// in that order.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("token") {
		cfg.Token = apiToken
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// logger writes component logs to stderr in verbose mode and drops them otherwise.
func logger(cmd *cobra.Command, cfg *config.Config) *log.Logger {
	if cfg.Verbose {
		return log.New(cmd.ErrOrStderr(), "", log.Ltime)
	}
	return log.New(io.Discard, "", 0)
}

func printer(cmd *cobra.Command) *observability.Printer {
	return observability.NewPrinter(cmd.OutOrStdout())
}

func newClient(cfg *config.Config) (*backend.Client, error) {
	return backend.NewClient(cfg.APIURL, &backend.Options{Tokens: auth.Static(cfg.Token)})
}

// resolveSession accepts a raw id, an encoded token or a result link.
func resolveSession(arg string) (string, error) {
	id, err := sessionid.Resolve(arg)
	if err != nil {
		return "", fmt.Errorf("cannot read session %q: %w", arg, err)
	}
	return id, nil
}

// openWorkspace resolves arg and loads the session from the backend.
func openWorkspace(ctx context.Context, cmd *cobra.Command, cfg *config.Config, arg string) (*workspace.Workspace, error) {
	id, err := resolveSession(arg)
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(client, id, workspace.WithLogger(logger(cmd, cfg)))
	if err != nil {
		return nil, err
	}
	if err := ws.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return ws, nil
}
