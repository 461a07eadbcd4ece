package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "manage stored settings",
		Commands: []*cli.Command{
			{
				Name:      "set-client-id",
				Usage:     "store the Spotify application client ID",
				ArgsUsage: "[client-id]",
				Action:    setClientIDAction,
			},
		},
	}
}

func setClientIDAction(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		var err error
		if id, err = promptClientID(os.Stdin, cmd.Root().Writer); err != nil {
			return err
		}
	}
	if id == "" {
		return errors.New("client id must not be empty")
	}

	application, cfg, cleanup, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cfg.RequireWritableStorage(); err != nil {
		return err
	}

	if err := application.SetClientID(ctx, id); err != nil {
		return fmt.Errorf("failed to store client id: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Client ID stored. Register %s as redirect URI in the Spotify dashboard.\n", application.RedirectURI())
	return nil
}

// promptClientID reads one line from an interactive terminal.
func promptClientID(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("client id argument required when stdin is not a terminal")
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", fmt.Errorf("failed to prepare terminal: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, "Spotify Client ID: ")

	line, err := t.ReadLine()
	if err != nil {
		return "", fmt.Errorf("failed to read client id: %w", err)
	}
	return strings.TrimSpace(line), nil
}
