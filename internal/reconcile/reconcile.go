// Package reconcile brings destination-side auxiliary entities (versions from
// milestones, sprints from board iterations) in line with source-derived data
// and builds the name→id lookup tables used during issue upserts.
package reconcile

import (
	"context"
	"time"

	"github.com/andygrunwald/go-jira"
)

// VersionClient is the destination capability needed to reconcile versions.
type VersionClient interface {
	ProjectVersions(ctx context.Context, projectKey string) ([]jira.Version, error)
	CreateVersion(ctx context.Context, version *jira.Version) (*jira.Version, error)
	UpdateVersion(ctx context.Context, version *jira.Version) (*jira.Version, error)
}

// SprintClient is the destination capability needed to reconcile sprints.
type SprintClient interface {
	Sprints(ctx context.Context, boardID int) ([]jira.Sprint, error)
	CreateSprint(ctx context.Context, boardID int, name string, start, end *time.Time) (*jira.Sprint, error)
	UpdateSprint(ctx context.Context, sprintID int, name string, start, end *time.Time) (*jira.Sprint, error)
}

// VersionName namespaces a milestone title with the project's display name.
// Multiple synced projects can share one destination project, so the bare
// milestone title is not unique.
func VersionName(displayName, milestoneTitle string) string {
	return displayName + " " + milestoneTitle
}

// day truncates a timestamp to day precision, ignoring the timezone. The
// source date fields carry no offset, so comparing beyond the day only causes
// spurious update churn.
func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// dayOfString reduces a destination date string to its day component.
func dayOfString(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
