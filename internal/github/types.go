package github

import "time"

// FieldNames are the display names of the project board fields requested for
// every fetched issue.
type FieldNames struct {
	Status string `yaml:"status"`
	Points string `yaml:"points"`
	Sprint string `yaml:"sprint"`
}

// DefaultFieldNames returns the board field names GitHub uses out of the box.
func DefaultFieldNames() FieldNames {
	return FieldNames{Status: "Status", Points: "Story Points", Sprint: "Sprint"}
}

// Query describes one page request against the source tracker.
type Query struct {
	Owner    string
	Repo     string
	Board    string
	Since    string // RFC3339, exclusive lower bound on updatedAt
	Cursor   string // empty for the first page
	PageSize int
	Fields   FieldNames
}

// Milestone is the milestone reference carried by a source record.
type Milestone struct {
	Title  string
	DueOn  *time.Time
	Closed bool
}

// Sprint is the iteration reference read from the project board.
type Sprint struct {
	Title     string
	StartDate string // YYYY-MM-DD, no offset
	Duration  int    // days
}

// Board holds the values of the configured project board fields for one record.
type Board struct {
	Status string
	Points *float64
	Sprint *Sprint
}

// Record is one fetched source issue, read-only downstream of the fetcher.
type Record struct {
	URL       string
	Number    int
	UpdatedAt time.Time
	Closed    bool
	Title     string
	Body      string
	Labels    []string
	Milestone *Milestone
	Board     *Board
}

// RateLimit is the source tracker's rate limit advisory for one query. It is
// logged but not acted upon.
type RateLimit struct {
	Cost      int
	Remaining int
	ResetAt   time.Time
}

// Page is one page of fetched records plus the continuation cursor.
type Page struct {
	Records     []Record
	EndCursor   string
	HasNextPage bool
	RateLimit   RateLimit
}
