package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
)

// InteractionRow is the flattened interaction record streamed to BigQuery
// for offline analysis.
type InteractionRow struct {
	ID            string    `bigquery:"id"`
	CreatedAt     time.Time `bigquery:"created_at"`
	UserText      string    `bigquery:"user_text"`
	ResponseText  string    `bigquery:"response_text"`
	SystemCount   int       `bigquery:"system_count"`
	RelevantCount int       `bigquery:"relevant_count"`
	RecentCount   int       `bigquery:"recent_count"`
}

// BigQuery is the interface for exporting interaction records.
type BigQuery interface {
	// InsertInteractions streams rows into dataset.table
	InsertInteractions(ctx context.Context, dataset, table string, rows []*InteractionRow) error
}

type bigqueryClient struct {
	client *bigquery.Client
}

// NewBigQuery creates a new BigQuery client.
func NewBigQuery(ctx context.Context, projectID string) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}
	return &bigqueryClient{client: client}, nil
}

func (bq *bigqueryClient) InsertInteractions(ctx context.Context, dataset, table string, rows []*InteractionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := bq.client.Dataset(dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return goerr.Wrap(err, "failed to insert interaction rows",
			goerr.V("dataset", dataset), goerr.V("table", table), goerr.V("rows", len(rows)))
	}
	return nil
}
