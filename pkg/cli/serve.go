package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hiroq/engram/pkg/service/mcp"
	"github.com/hiroq/engram/pkg/utils/logging"
)

func serveCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve memory recall tools over MCP on stdin/stdout",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			mem, ledger, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = ledger.Close()
			}()

			logging.Default().Info("starting MCP server")
			return mcp.New(mem).Run(ctx)
		},
	}
}
