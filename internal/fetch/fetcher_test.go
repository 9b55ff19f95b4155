package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/github"
)

type fakeQuerier struct {
	pages   []github.Page
	queries []github.Query
	err     error
}

func (f *fakeQuerier) Search(_ context.Context, q github.Query) (*github.Page, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	index := len(f.queries) - 1
	if index >= len(f.pages) {
		return &github.Page{}, nil
	}
	page := f.pages[index]
	return &page, nil
}

func makeRecords(from, count int) []github.Record {
	records := make([]github.Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, github.Record{
			Number:    from + i,
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, from+i, 0, time.UTC),
		})
	}
	return records
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func TestFetchConsumesAllPages(t *testing.T) {
	source := &fakeQuerier{pages: []github.Page{
		{Records: makeRecords(1, 3), EndCursor: "c1", HasNextPage: true},
		{Records: makeRecords(4, 3), EndCursor: "c2", HasNextPage: true},
		{Records: makeRecords(7, 2)},
	}}

	records, err := NewFetcher(source, testLog()).Fetch(context.Background(), Project{
		Owner: "acme", Repo: "fleet", Board: "Fleet", Watermark: "2024-01-01T00:00:00Z", PageSize: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 8 {
		t.Errorf("expected 8 records, got %d", len(records))
	}
	if len(source.queries) != 3 {
		t.Errorf("expected 3 page queries, got %d", len(source.queries))
	}
	if source.queries[0].Cursor != "" || source.queries[1].Cursor != "c1" || source.queries[2].Cursor != "c2" {
		t.Errorf("unexpected cursors: %+v", source.queries)
	}
}

func TestFetchCapsBatchSize(t *testing.T) {
	source := &fakeQuerier{pages: []github.Page{
		{Records: makeRecords(1, 3), EndCursor: "c1", HasNextPage: true},
		{Records: makeRecords(4, 3), EndCursor: "c2", HasNextPage: true},
		{Records: makeRecords(7, 3), EndCursor: "c3", HasNextPage: true},
	}}

	records, err := NewFetcher(source, testLog()).Fetch(context.Background(), Project{
		Owner: "acme", Repo: "fleet", Board: "Fleet", Watermark: "2024-01-01T00:00:00Z", PageSize: 3, MaxBatchSize: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Truncated to exactly the cap even though the page overshot it and more
	// pages remained.
	if len(records) != 5 {
		t.Errorf("expected exactly 5 records, got %d", len(records))
	}
	if records[len(records)-1].Number != 5 {
		t.Errorf("expected the batch to end at record 5, got %d", records[len(records)-1].Number)
	}
	if len(source.queries) != 2 {
		t.Errorf("expected fetching to stop after 2 pages, got %d", len(source.queries))
	}
}

func TestFetchZeroCapMeansUnlimited(t *testing.T) {
	source := &fakeQuerier{pages: []github.Page{
		{Records: makeRecords(1, 3), EndCursor: "c1", HasNextPage: true},
		{Records: makeRecords(4, 3)},
	}}

	records, err := NewFetcher(source, testLog()).Fetch(context.Background(), Project{
		Owner: "acme", Repo: "fleet", Board: "Fleet", Watermark: "2024-01-01T00:00:00Z", PageSize: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 6 {
		t.Errorf("expected all 6 records, got %d", len(records))
	}
}

func TestFetchPropagatesPageFailure(t *testing.T) {
	source := &fakeQuerier{err: fmt.Errorf("boom")}

	if _, err := NewFetcher(source, testLog()).Fetch(context.Background(), Project{
		Owner: "acme", Repo: "fleet", Board: "Fleet", Watermark: "2024-01-01T00:00:00Z", PageSize: 3,
	}); err == nil {
		t.Errorf("expected a page failure to abort the fetch")
	}
}

func TestFetchPassesWatermarkAndFields(t *testing.T) {
	source := &fakeQuerier{pages: []github.Page{{}}}
	fields := github.FieldNames{Status: "State", Points: "Estimate", Sprint: "Iteration"}

	if _, err := NewFetcher(source, testLog()).Fetch(context.Background(), Project{
		Owner: "acme", Repo: "fleet", Board: "Fleet", Watermark: "2024-01-01T00:00:00Z", PageSize: 7, Fields: fields,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := source.queries[0]
	if q.Since != "2024-01-01T00:00:00Z" || q.PageSize != 7 || q.Fields != fields || q.Board != "Fleet" {
		t.Errorf("unexpected query: %+v", q)
	}
}
