package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/verbas/internal"
	pkgconfig "github.com/starford/verbas/pkg/config"
)

var version = "dev"

// loadConfig reads the config file. Interactive commands fall back to
// defaults when it is missing.
func loadConfig(cmd *cli.Command, required bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOrDefault[internal.Config]
	if required {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runShell(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.RunShell(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func setToken(_ context.Context, cmd *cli.Command) error {
	token := cmd.Args().First()
	if token == "" {
		return errors.New("usage: verbas token set <token>")
	}
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.StoreToken(cfg, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Fprintf(os.Stdout, "token stored for %s\n", cfg.Backend.URL)
	return nil
}

func deleteToken(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.ForgetToken(cfg); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	fmt.Fprintf(os.Stdout, "token removed for %s\n", cfg.Backend.URL)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "verbas",
		Usage:  "Markdown book authoring with project workflows, a live editor and pluggable storage backends",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serve,
			},
			{
				Name:   "shell",
				Usage:  "Author a project interactively in the terminal",
				Action: runShell,
			},
			{
				Name:   "mcp",
				Usage:  "Serve chapter tools over MCP on stdio",
				Action: runMCP,
			},
			{
				Name:  "token",
				Usage: "Manage the remote backend token in the OS keyring",
				Commands: []*cli.Command{
					{Name: "set", Usage: "Store a token", ArgsUsage: "<token>", Action: setToken},
					{Name: "delete", Usage: "Remove the stored token", Action: deleteToken},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(context.Context, *cli.Command) error {
					fmt.Fprintln(os.Stdout, version)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
