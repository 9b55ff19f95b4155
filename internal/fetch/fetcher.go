// Package fetch retrieves all source records updated after a project's
// watermark, across cursor pages, capped at a configured maximum count.
package fetch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/github"
)

// Querier is the paginated read capability of the source tracker.
type Querier interface {
	Search(ctx context.Context, q github.Query) (*github.Page, error)
}

// Project describes one fetch pass.
type Project struct {
	Owner        string
	Repo         string
	Board        string
	Watermark    string
	MaxBatchSize int // 0 disables the cap
	PageSize     int
	Fields       github.FieldNames
}

// Fetcher accumulates pages of source records.
type Fetcher struct {
	source Querier
	log    *logrus.Entry
}

// NewFetcher creates a fetcher reading from the given source.
func NewFetcher(source Querier, log *logrus.Entry) *Fetcher {
	return &Fetcher{source: source, log: log}
}

// Fetch returns all records updated strictly after the project's watermark,
// ascending by update time. When the accumulated count reaches MaxBatchSize
// the batch is truncated to exactly that size and remaining pages are left
// for the next run; the watermark only ever advances to the last included
// record. A page failure aborts the whole pass.
func (f *Fetcher) Fetch(ctx context.Context, p Project) ([]github.Record, error) {
	var records []github.Record
	cursor := ""

	for {
		page, err := f.source.Search(ctx, github.Query{
			Owner:    p.Owner,
			Repo:     p.Repo,
			Board:    p.Board,
			Since:    p.Watermark,
			Cursor:   cursor,
			PageSize: p.PageSize,
			Fields:   p.Fields,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page: %w", err)
		}

		f.log.WithFields(logrus.Fields{
			"cost":      page.RateLimit.Cost,
			"remaining": page.RateLimit.Remaining,
			"resetAt":   page.RateLimit.ResetAt,
		}).Debug("Source rate limit after page")

		records = append(records, page.Records...)

		if p.MaxBatchSize > 0 && len(records) >= p.MaxBatchSize {
			records = records[:p.MaxBatchSize]
			f.log.WithField("max", p.MaxBatchSize).Info("Batch size cap reached, leaving remaining records for the next run")
			break
		}
		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	return records, nil
}
