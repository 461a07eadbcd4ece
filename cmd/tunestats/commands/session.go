package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/tunestats/internal/handshake"
)

// loginHints are shown for classified login failures.
var loginHints = map[string]string{
	"missing_client_id": "set one with `tunestats config set-client-id` or pass --spotify--client-id",
	"popup_blocked":     "no browser could be started; open the dashboard and log in from there",
	"cancelled":         "the login window was closed before Spotify answered",
	"timeout":           "no answer from Spotify; check that the redirect URI is registered for your app",
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in with Spotify in a browser window",
		Flags: append(serverFlags(),
			&cli.StringFlag{
				Name:  "spotify--client-id",
				Usage: "Spotify application client ID (stored for later logins)",
			},
			&cli.DurationFlag{
				Name:  "login--timeout",
				Usage: "how long to wait for the browser",
				Value: handshake.DefaultTimeout,
			},
		),
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	application, cfg, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.RequireWritableStorage(); err != nil {
		return err
	}

	out := cmd.Root().Writer
	fmt.Fprintf(out, "Opening Spotify login. Redirect URI: %s\n", application.RedirectURI())

	if err := application.Login(ctx, cmd.String("spotify--client-id")); err != nil {
		if hint, ok := loginHints[handshake.Kind(err)]; ok {
			return fmt.Errorf("login failed: %w (%s)", err, hint)
		}
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(out, "Logged in.")
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored Spotify credential",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, _, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := application.Logout(ctx); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.Root().Writer, "Logged out.")
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show whether a valid credential is stored",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, _, cleanup, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := application.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}

			out := cmd.Root().Writer
			if st.Authenticated {
				fmt.Fprintf(out, "Logged in, credential expires %s (in %s)\n",
					st.ExpiresAt.Local().Format(time.RFC1123), time.Until(st.ExpiresAt).Round(time.Second))
			} else {
				fmt.Fprintln(out, "Not logged in.")
			}
			fmt.Fprintf(out, "Client ID configured: %t\n", st.HasClientID)
			fmt.Fprintf(out, "Redirect URI: %s\n", application.RedirectURI())
			return nil
		},
	}
}
