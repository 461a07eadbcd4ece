package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tunestats/internal/app"
	"github.com/florianilch/tunestats/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "tunestats",
		Usage: "Spotify listening statistics dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlphttp|otlpgrpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			dashboardCommand(),
			configCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

// serverFlags configure the local server. Login needs them too: the popup
// redirects to the server address.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "server--host",
			Usage: "server host",
			Value: app.DefaultConfigServerHost,
		},
		&cli.IntFlag{
			Name:  "server--port",
			Usage: "server port",
			Value: int(app.DefaultConfigServerPort),
		},
		&cli.StringFlag{
			Name:  "server--public-url",
			Usage: "address the browser reaches the server at; registered as redirect URI (default http://host:port/)",
		},
	}
}

// setup loads config, installs logging and creates the app.
// The returned cleanup flushes logs and must be called when done.
func setup(ctx context.Context, cmd *cli.Command) (*app.App, *app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.LogExporter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	return application, cfg, cleanup, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "serve the dashboard and login redirect page",
		Flags:  serverFlags(),
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	application, _, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
