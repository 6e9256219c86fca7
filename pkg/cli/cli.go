package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

// Run executes the command tree and maps failures to an exit code.
func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "engram",
		Usage: "Conversational agent with long-term memory",
		Commands: []*cli.Command{
			chatCommand(),
			similarCommand(),
			recentCommand(),
			configureCommand(),
			archiveCommand(),
			exportCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
