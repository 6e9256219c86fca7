package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func recentCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of exchanges to display",
			Value:       10,
			Sources:     cli.EnvVars("ENGRAM_RECENT_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "recent",
		Usage: "List the most recent exchanges",
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

			interactions := mem.KMostRecent(int(limit))
			if len(interactions) == 0 {
				fmt.Fprintf(c.Root().Writer, "No exchanges recorded yet\n")
				return nil
			}

			for _, interaction := range interactions {
				prior, err := mem.RenderPriorInteraction(interaction)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\n",
					prior.ID,
					prior.CreatedAt.Format("2006-01-02 15:04:05"),
					prior.UserText,
				)
			}

			return nil
		},
	}
}
