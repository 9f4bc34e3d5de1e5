// Package athena implements a small query helper over AWS Athena: submit a
// query, wait for it to finish and page the full result set into records.
package athena

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/gurre/multidata/aws"
	"github.com/gurre/multidata/schema"
)

// Config holds the query execution parameters.
type Config struct {
	Database       string        // Glue/Athena database to run queries against
	OutputLocation string        // S3 staging URI for query results (s3://bucket/prefix)
	Workgroup      string        // Optional workgroup name
	PollInterval   time.Duration // State poll interval, defaults to 1s
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.OutputLocation == "" {
		return fmt.Errorf("output location is required")
	}
	if !strings.HasPrefix(c.OutputLocation, "s3://") {
		return fmt.Errorf("output location must start with s3://")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return nil
}

// Helper runs queries against Athena through the narrow client interface.
// Example:
//
//	client := athena.NewFromConfig(awsCfg)
//	helper, err := athena.NewHelper(aws.NewAthenaClient(client), athena.Config{
//	    Database:       "analytics",
//	    OutputLocation: "s3://staging-bucket/athena/",
//	})
type Helper struct {
	client aws.AthenaClient
	cfg    Config
	log    *slog.Logger
}

// NewHelper validates the configuration and returns a ready Helper.
func NewHelper(client aws.AthenaClient, cfg Config, log *slog.Logger) (*Helper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Helper{client: client, cfg: cfg, log: log}, nil
}

// Query submits sql, waits for completion and returns every result row as a
// record keyed by the header row's column names. Values are strings as
// returned by Athena; missing cells are nil.
func (h *Helper) Query(ctx context.Context, sql string) ([]schema.Record, error) {
	start, err := h.client.StartQueryExecution(ctx, &awsathena.StartQueryExecutionInput{
		QueryString: &sql,
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: &h.cfg.Database,
		},
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: &h.cfg.OutputLocation,
		},
		WorkGroup: optional(h.cfg.Workgroup),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start query execution: %w", err)
	}
	if start.QueryExecutionId == nil {
		return nil, fmt.Errorf("no query execution id returned")
	}
	queryID := *start.QueryExecutionId

	if err := h.waitForCompletion(ctx, queryID); err != nil {
		return nil, err
	}
	return h.fetchResults(ctx, queryID)
}

// waitForCompletion polls the execution state until it reaches a terminal
// state. Cancellation of ctx stops the wait.
func (h *Helper) waitForCompletion(ctx context.Context, queryID string) error {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		out, err := h.client.GetQueryExecution(ctx, &awsathena.GetQueryExecutionInput{
			QueryExecutionId: &queryID,
		})
		if err != nil {
			return fmt.Errorf("failed to poll query %s: %w", queryID, err)
		}
		if out.QueryExecution == nil || out.QueryExecution.Status == nil {
			return fmt.Errorf("no status returned for query %s", queryID)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case types.QueryExecutionStateSucceeded:
			return nil
		case types.QueryExecutionStateFailed, types.QueryExecutionStateCancelled:
			reason := "no reason given"
			if status.StateChangeReason != nil {
				reason = *status.StateChangeReason
			}
			return fmt.Errorf("query %s finished in state %s: %s", queryID, status.State, reason)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// fetchResults pages through the result set. The first row of the first page
// is the header row.
func (h *Helper) fetchResults(ctx context.Context, queryID string) ([]schema.Record, error) {
	var (
		header    []string
		records   []schema.Record
		nextToken *string
		firstPage = true
	)

	for {
		out, err := h.client.GetQueryResults(ctx, &awsathena.GetQueryResultsInput{
			QueryExecutionId: &queryID,
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get results for query %s: %w", queryID, err)
		}
		if out.ResultSet == nil {
			break
		}

		rows := out.ResultSet.Rows
		if firstPage && len(rows) > 0 {
			header = datumStrings(rows[0].Data)
			rows = rows[1:]
			firstPage = false
		}

		for _, row := range rows {
			rec := make(schema.Record, len(header))
			for i, col := range header {
				if i < len(row.Data) && row.Data[i].VarCharValue != nil {
					rec[col] = *row.Data[i].VarCharValue
				} else {
					rec[col] = nil
				}
			}
			records = append(records, rec)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	return records, nil
}

func datumStrings(data []types.Datum) []string {
	out := make([]string, len(data))
	for i, d := range data {
		if d.VarCharValue != nil {
			out[i] = *d.VarCharValue
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
