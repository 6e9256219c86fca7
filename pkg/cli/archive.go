package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/hiroq/engram/pkg/adapter"
)

// archiveEntry is one exchange in the JSON transcript written to the bucket.
type archiveEntry struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UserText     string    `json:"user_text"`
	ResponseText string    `json:"response_text"`
}

func archiveCommand() *cli.Command {
	var (
		cfg    config
		bucket string
		prefix string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for the transcript archive",
			Required:    true,
			Sources:     cli.EnvVars("ENGRAM_ARCHIVE_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object key prefix",
			Value:       "transcripts",
			Sources:     cli.EnvVars("ENGRAM_ARCHIVE_PREFIX"),
			Destination: &prefix,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "archive",
		Usage: "Archive the conversation transcript to Cloud Storage",
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

			store, err := adapter.NewStorage(ctx, bucket)
			if err != nil {
				return err
			}

			interactions := mem.Interactions()
			entries := make([]*archiveEntry, 0, len(interactions))
			for _, interaction := range interactions {
				prior, err := mem.RenderPriorInteraction(interaction)
				if err != nil {
					return err
				}
				entries = append(entries, &archiveEntry{
					ID:           string(prior.ID),
					CreatedAt:    prior.CreatedAt,
					UserText:     prior.UserText,
					ResponseText: prior.ResponseText,
				})
			}

			key := fmt.Sprintf("%s/%s.json", prefix, time.Now().UTC().Format("20060102-150405"))
			w, err := store.Put(ctx, key)
			if err != nil {
				return goerr.Wrap(err, "failed to open archive object", goerr.V("key", key))
			}

			if err := json.NewEncoder(w).Encode(entries); err != nil {
				_ = w.Close()
				return goerr.Wrap(err, "failed to write transcript", goerr.V("key", key))
			}
			if err := w.Close(); err != nil {
				return goerr.Wrap(err, "failed to finalize archive object", goerr.V("key", key))
			}

			fmt.Fprintf(c.Root().Writer, "Archived %d exchanges to gs://%s/%s\n", len(entries), bucket, key)
			return nil
		},
	}
}
