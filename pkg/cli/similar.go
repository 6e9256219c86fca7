package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of similar exchanges to display",
			Value:       5,
			Sources:     cli.EnvVars("ENGRAM_SIMILAR_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "similar",
		Usage:     "Find prior exchanges semantically similar to the given text",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return goerr.New("text is required")
			}

			mem, ledger, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = ledger.Close()
			}()

			interactions, err := mem.KMostSimilarInputs(ctx, text, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search similar exchanges")
			}

			if len(interactions) == 0 {
				fmt.Fprintf(c.Root().Writer, "No similar exchanges found\n")
				return nil
			}

			for i, interaction := range interactions {
				prior, err := mem.RenderPriorInteraction(interaction)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "%d. %s (%s)\n", i+1, prior.ID, prior.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(c.Root().Writer, "   user: %s\n", prior.UserText)
				fmt.Fprintf(c.Root().Writer, "   assistant: %s\n\n", prior.ResponseText)
			}

			return nil
		},
	}
}
