package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hiroq/engram/pkg/adapter"
)

func exportCommand() *cli.Command {
	var (
		cfg     config
		project string
		dataset string
		table   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bq-project",
			Usage:       "Google Cloud project ID for BigQuery",
			Required:    true,
			Sources:     cli.EnvVars("ENGRAM_BQ_PROJECT"),
			Destination: &project,
		},
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset ID",
			Required:    true,
			Sources:     cli.EnvVars("ENGRAM_BQ_DATASET"),
			Destination: &dataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table ID",
			Value:       "interactions",
			Sources:     cli.EnvVars("ENGRAM_BQ_TABLE"),
			Destination: &table,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export interaction records to BigQuery",
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

			bq, err := adapter.NewBigQuery(ctx, project)
			if err != nil {
				return err
			}

			interactions := mem.Interactions()
			rows := make([]*adapter.InteractionRow, 0, len(interactions))
			for _, interaction := range interactions {
				prior, err := mem.RenderPriorInteraction(interaction)
				if err != nil {
					return err
				}
				rows = append(rows, &adapter.InteractionRow{
					ID:            string(prior.ID),
					CreatedAt:     prior.CreatedAt,
					UserText:      prior.UserText,
					ResponseText:  prior.ResponseText,
					SystemCount:   len(interaction.SystemMessageIDs),
					RelevantCount: len(interaction.RelevantInteractionIDs),
					RecentCount:   len(interaction.RecentInteractionIDs),
				})
			}

			if err := bq.InsertInteractions(ctx, dataset, table, rows); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Exported %d interactions to %s.%s.%s\n", len(rows), project, dataset, table)
			return nil
		},
	}
}
