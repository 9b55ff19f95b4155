// Package engine sequences one synchronization run: per configured project it
// fetches source records, reconciles versions and sprints, upserts issues and
// produces the project's next watermark.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/config"
	"github.com/gh2jira/gh2jira/internal/fetch"
	"github.com/gh2jira/gh2jira/internal/github"
	destjira "github.com/gh2jira/gh2jira/internal/jira"
	"github.com/gh2jira/gh2jira/internal/reconcile"
	"github.com/gh2jira/gh2jira/internal/state"
)

// Source is the read capability of the source tracker.
type Source interface {
	Search(ctx context.Context, q github.Query) (*github.Page, error)
}

// Destination is the full operation set the engine needs from the destination
// tracker.
type Destination interface {
	reconcile.VersionClient
	reconcile.SprintClient

	Check(ctx context.Context) error
	ResolveMeta(ctx context.Context, req destjira.MetaRequest) (*destjira.Meta, error)
	FindIssueByGlobalID(ctx context.Context, globalID string) (*jira.Issue, error)
	CreateIssue(ctx context.Context, projectKey, typeName, summary string) (*jira.Issue, error)
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	UpdateIssue(ctx context.Context, issue *jira.Issue) error
	UpsertRemoteLink(ctx context.Context, issueKey, globalID, url, title string) error
	Transitions(ctx context.Context, key string) ([]jira.Transition, error)
	DoTransition(ctx context.Context, key, transitionID string) error
	MoveIssueToSprint(ctx context.Context, sprintID int, issueKey string) error
}

// ProjectResult is one project's outcome: the watermark to persist for the
// next run.
type ProjectResult struct {
	Name      string
	Watermark string
}

// Engine runs the synchronization.
type Engine struct {
	cfg    *config.Config
	source Source
	dst    Destination
	marks  state.Watermarks
	log    *logrus.Logger
	sleep  func(time.Duration)
}

// New creates an engine over the given clients and persisted watermarks.
func New(cfg *config.Config, source Source, dst Destination, marks state.Watermarks, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		dst:    dst,
		marks:  marks,
		log:    log,
		sleep:  time.Sleep,
	}
}

// Run synchronizes all configured projects strictly sequentially. One
// project's failure does not prevent attempting the next; a failed project
// keeps its prior watermark. The returned results always cover every project
// so the caller can persist whatever progress was achieved.
func (e *Engine) Run(ctx context.Context) ([]ProjectResult, error) {
	results := make([]ProjectResult, 0, len(e.cfg.Projects))

	if err := e.dst.Check(ctx); err != nil {
		for _, project := range e.cfg.Projects {
			results = append(results, ProjectResult{Name: project.Name, Watermark: e.marks.For(project.Name, project.GitHub.Since)})
		}
		return results, fmt.Errorf("destination is not reachable: %w", err)
	}

	var failed []string
	for _, project := range e.cfg.Projects {
		log := e.log.WithField("project", project.Name)
		watermark := e.marks.For(project.Name, project.GitHub.Since)

		log.WithField("watermark", watermark).Info("Synchronizing project")
		next, err := e.syncProject(ctx, project, watermark, log)
		if err != nil {
			log.WithError(err).Error("Project synchronization failed, watermark not advanced")
			failed = append(failed, project.Name)
			next = watermark
		}
		results = append(results, ProjectResult{Name: project.Name, Watermark: next})
	}

	if len(failed) > 0 {
		return results, fmt.Errorf("synchronization failed for projects: %s", strings.Join(failed, ", "))
	}
	return results, nil
}

func (e *Engine) syncProject(ctx context.Context, project config.Project, watermark string, log *logrus.Entry) (string, error) {
	meta, err := e.dst.ResolveMeta(ctx, destjira.MetaRequest{
		Project:     project.Jira.Project,
		Component:   project.Jira.Component,
		Board:       project.Jira.Board,
		PointsField: e.cfg.Fields.StoryPoints,
		EpicField:   e.cfg.Fields.EpicName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve destination metadata: %w", err)
	}

	fetcher := fetch.NewFetcher(e.source, log)
	records, err := fetcher.Fetch(ctx, fetch.Project{
		Owner:        project.GitHub.Owner,
		Repo:         project.GitHub.Repo,
		Board:        project.GitHub.Board,
		Watermark:    watermark,
		MaxBatchSize: project.MaxBatchSize,
		PageSize:     project.PageSize,
		Fields:       project.GitHub.Fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch source records: %w", err)
	}
	log.WithField("records", len(records)).Info("Fetched source records")
	if len(records) == 0 {
		return watermark, nil
	}

	versions, err := reconcile.Versions(ctx, e.dst, reconcile.VersionParams{
		ProjectKey:  project.Jira.Project,
		ProjectID:   meta.ProjectID,
		DisplayName: project.Name,
	}, records, log)
	if err != nil {
		return "", fmt.Errorf("failed to reconcile versions: %w", err)
	}

	sprints, err := reconcile.Sprints(ctx, e.dst, meta.BoardID, records, log)
	if err != nil {
		return "", fmt.Errorf("failed to reconcile sprints: %w", err)
	}

	var failures []github.Record
	for _, record := range records {
		if err := e.upsertRecord(ctx, project, meta, record, versions, sprints, log); err != nil {
			log.WithError(err).WithField("issue", record.Number).Error("Failed to synchronize record, skipping")
			failures = append(failures, record)
		}
	}

	next := records[len(records)-1].UpdatedAt.UTC().Format(time.RFC3339)
	if prior, err := time.Parse(time.RFC3339, watermark); err == nil && !records[len(records)-1].UpdatedAt.After(prior) {
		next = watermark
	}

	if len(failures) > 0 {
		// Once the watermark advances past a failed record it is never
		// re-fetched; an operator has to rerun with an older start time.
		for _, record := range failures {
			log.WithFields(logrus.Fields{
				"issue":     record.Number,
				"updatedAt": record.UpdatedAt.UTC().Format(time.RFC3339),
			}).Warn("Record was not written and will not be retried automatically")
		}
	}

	return next, nil
}

// retryThrottled runs a single destination call and retries that call once
// after the configured cooldown when the destination throttled it. The retry
// never covers more than the one failed call, so steps of a record's upsert
// that already succeeded are not repeated.
func (e *Engine) retryThrottled(log *logrus.Entry, fn func() error) error {
	err := fn()
	if destjira.IsThrottled(err) {
		cooldown := e.cfg.Throttle.Cooldown.AsDuration()
		log.WithError(err).Warnf("Destination throttling detected, retrying once after %s", cooldown)
		e.sleep(cooldown)
		err = fn()
	}
	return err
}
