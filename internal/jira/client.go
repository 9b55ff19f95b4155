// Package jira wraps the destination tracker client. Every outbound call is
// routed through the call governor, so the wrapper exposes the same operation
// set as the underlying client but with serialized, rate-floored dispatch.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/governor"
)

// Client is the governed destination client.
type Client struct {
	api *jira.Client
	gov *governor.Governor
	log *logrus.Entry
}

// NewClient creates a client for the given endpoint, authenticated with a
// bearer token.
func NewClient(endpoint, token string, gov *governor.Governor, log *logrus.Entry) (*Client, error) {
	transport := jira.BearerAuthTransport{Token: token}
	api, err := jira.NewClient(transport.Client(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}

	return &Client{api: api, gov: gov, log: log}, nil
}

// Check verifies that the destination is reachable and the token is accepted.
func (c *Client) Check(ctx context.Context) error {
	return c.gov.Do(ctx, func() error {
		user, resp, err := c.api.User.GetSelfWithContext(ctx)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to verify Jira connection: %w", err)
		}
		c.log.WithField("user", user.Name).Debug("Connected to Jira")
		return nil
	})
}

// MetaRequest names the destination entities a project needs resolved before
// synchronization can start.
type MetaRequest struct {
	Project     string
	Component   string
	Board       string
	PointsField string
	EpicField   string
}

// Meta holds the opaque ids the names resolved to.
type Meta struct {
	ProjectID     int
	ProjectKey    string
	ComponentID   string
	BoardID       int
	PointsFieldID string
	EpicFieldID   string
}

// ResolveMeta resolves the configured names to destination ids. Any name that
// does not resolve is a configuration error for the project.
func (c *Client) ResolveMeta(ctx context.Context, req MetaRequest) (*Meta, error) {
	meta := &Meta{ProjectKey: req.Project}

	err := c.gov.Do(ctx, func() error {
		project, resp, err := c.api.Project.GetWithContext(ctx, req.Project)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to get project %s: %w", req.Project, err)
		}
		projectID, err := strconv.Atoi(project.ID)
		if err != nil {
			return fmt.Errorf("project %s has non-numeric id %q: %w", req.Project, project.ID, err)
		}
		meta.ProjectID = projectID
		for _, component := range project.Components {
			if component.Name == req.Component {
				meta.ComponentID = component.ID
				break
			}
		}
		if meta.ComponentID == "" {
			return fmt.Errorf("component %q not found in project %s", req.Component, req.Project)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = c.gov.Do(ctx, func() error {
		fields, resp, err := c.api.Field.GetListWithContext(ctx)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to list fields: %w", err)
		}
		for _, field := range fields {
			switch field.Name {
			case req.PointsField:
				meta.PointsFieldID = field.ID
			case req.EpicField:
				meta.EpicFieldID = field.ID
			}
		}
		if meta.PointsFieldID == "" {
			return fmt.Errorf("field %q not found", req.PointsField)
		}
		if meta.EpicFieldID == "" {
			return fmt.Errorf("field %q not found", req.EpicField)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = c.gov.Do(ctx, func() error {
		boards, resp, err := c.api.Board.GetAllBoardsWithContext(ctx, &jira.BoardListOptions{ProjectKeyOrID: req.Project})
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to list boards of project %s: %w", req.Project, err)
		}
		for _, board := range boards.Values {
			if board.Name == req.Board {
				meta.BoardID = board.ID
				break
			}
		}
		if meta.BoardID == 0 {
			return fmt.Errorf("board %q not found in project %s", req.Board, req.Project)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return meta, nil
}

// ProjectVersions lists the current versions of a project.
func (c *Client) ProjectVersions(ctx context.Context, projectKey string) ([]jira.Version, error) {
	var versions []jira.Version
	err := c.gov.Do(ctx, func() error {
		project, resp, err := c.api.Project.GetWithContext(ctx, projectKey)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to get project %s: %w", projectKey, err)
		}
		versions = project.Versions
		return nil
	})
	return versions, err
}

// CreateVersion creates a project version.
func (c *Client) CreateVersion(ctx context.Context, version *jira.Version) (*jira.Version, error) {
	var created *jira.Version
	err := c.gov.Do(ctx, func() error {
		v, resp, err := c.api.Version.CreateWithContext(ctx, version)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to create version %q: %w", version.Name, err)
		}
		created = v
		return nil
	})
	return created, err
}

// UpdateVersion updates an existing project version.
func (c *Client) UpdateVersion(ctx context.Context, version *jira.Version) (*jira.Version, error) {
	var updated *jira.Version
	err := c.gov.Do(ctx, func() error {
		v, resp, err := c.api.Version.UpdateWithContext(ctx, version)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to update version %q: %w", version.Name, err)
		}
		updated = v
		return nil
	})
	return updated, err
}

// Sprints lists all sprints of a board.
func (c *Client) Sprints(ctx context.Context, boardID int) ([]jira.Sprint, error) {
	var sprints []jira.Sprint
	err := c.gov.Do(ctx, func() error {
		list, resp, err := c.api.Board.GetAllSprintsWithContext(ctx, strconv.Itoa(boardID))
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to list sprints of board %d: %w", boardID, err)
		}
		sprints = list
		return nil
	})
	return sprints, err
}

type sprintPayload struct {
	Name          string `json:"name"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	OriginBoardID int    `json:"originBoardId,omitempty"`
}

func sprintDates(start, end *time.Time) (string, string) {
	var startDate, endDate string
	if start != nil {
		startDate = start.Format(time.RFC3339)
	}
	if end != nil {
		endDate = end.Format(time.RFC3339)
	}
	return startDate, endDate
}

// CreateSprint creates a sprint on the given board. The typed client has no
// wrapper for this agile endpoint, so it goes through the raw request plumbing.
func (c *Client) CreateSprint(ctx context.Context, boardID int, name string, start, end *time.Time) (*jira.Sprint, error) {
	startDate, endDate := sprintDates(start, end)
	payload := sprintPayload{Name: name, StartDate: startDate, EndDate: endDate, OriginBoardID: boardID}

	created := &jira.Sprint{}
	err := c.gov.Do(ctx, func() error {
		req, err := c.api.NewRequestWithContext(ctx, "POST", "rest/agile/1.0/sprint", payload)
		if err != nil {
			return fmt.Errorf("failed to build sprint create request: %w", err)
		}
		resp, err := c.api.Do(req, created)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to create sprint %q: %w", name, err)
		}
		return nil
	})
	return created, err
}

// UpdateSprint partially updates a sprint's name and dates.
func (c *Client) UpdateSprint(ctx context.Context, sprintID int, name string, start, end *time.Time) (*jira.Sprint, error) {
	startDate, endDate := sprintDates(start, end)
	payload := sprintPayload{Name: name, StartDate: startDate, EndDate: endDate}

	updated := &jira.Sprint{}
	err := c.gov.Do(ctx, func() error {
		req, err := c.api.NewRequestWithContext(ctx, "POST", fmt.Sprintf("rest/agile/1.0/sprint/%d", sprintID), payload)
		if err != nil {
			return fmt.Errorf("failed to build sprint update request: %w", err)
		}
		resp, err := c.api.Do(req, updated)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to update sprint %q: %w", name, err)
		}
		return nil
	})
	return updated, err
}

// FindIssueByGlobalID searches for the issue carrying the given remote-link
// global id. Returns nil when no issue matches.
func (c *Client) FindIssueByGlobalID(ctx context.Context, globalID string) (*jira.Issue, error) {
	var found *jira.Issue
	err := c.gov.Do(ctx, func() error {
		jql := fmt.Sprintf(`issue in issuesWithRemoteLinksByGlobalId("%s")`, globalID)
		issues, resp, err := c.api.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{MaxResults: 2})
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to search for global id %s: %w", globalID, err)
		}
		if len(issues) > 1 {
			c.log.WithField("globalId", globalID).Warn("Multiple issues carry the same global id, using the first")
		}
		if len(issues) > 0 {
			found = &issues[0]
		}
		return nil
	})
	return found, err
}

// CreateIssue creates an issue with the minimal required fields.
func (c *Client) CreateIssue(ctx context.Context, projectKey, typeName, summary string) (*jira.Issue, error) {
	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project: jira.Project{Key: projectKey},
			Type:    jira.IssueType{Name: typeName},
			Summary: summary,
		},
	}

	var created *jira.Issue
	err := c.gov.Do(ctx, func() error {
		i, resp, err := c.api.Issue.CreateWithContext(ctx, issue)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to create issue %q: %w", summary, err)
		}
		created = i
		return nil
	})
	return created, err
}

// GetIssue reads an issue including its current status.
func (c *Client) GetIssue(ctx context.Context, key string) (*jira.Issue, error) {
	var issue *jira.Issue
	err := c.gov.Do(ctx, func() error {
		i, resp, err := c.api.Issue.GetWithContext(ctx, key, nil)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to get issue %s: %w", key, err)
		}
		issue = i
		return nil
	})
	return issue, err
}

// UpdateIssue applies a full field update.
func (c *Client) UpdateIssue(ctx context.Context, issue *jira.Issue) error {
	return c.gov.Do(ctx, func() error {
		_, resp, err := c.api.Issue.UpdateWithContext(ctx, issue)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to update issue %s: %w", issue.Key, err)
		}
		return nil
	})
}

// UpsertRemoteLink creates or refreshes the remote link carrying the global
// id. Jira upserts remote links by global id on POST, so the same call covers
// both cases.
func (c *Client) UpsertRemoteLink(ctx context.Context, issueKey, globalID, url, title string) error {
	link := &jira.RemoteLink{
		GlobalID: globalID,
		Object: &jira.RemoteLinkObject{
			URL:   url,
			Title: title,
		},
	}

	return c.gov.Do(ctx, func() error {
		_, resp, err := c.api.Issue.AddRemoteLinkWithContext(ctx, issueKey, link)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to upsert remote link on %s: %w", issueKey, err)
		}
		return nil
	})
}

// Transitions lists the transitions currently available on an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]jira.Transition, error) {
	var transitions []jira.Transition
	err := c.gov.Do(ctx, func() error {
		list, resp, err := c.api.Issue.GetTransitionsWithContext(ctx, key)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to list transitions of %s: %w", key, err)
		}
		transitions = list
		return nil
	})
	return transitions, err
}

// DoTransition executes a status transition on an issue.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	return c.gov.Do(ctx, func() error {
		resp, err := c.api.Issue.DoTransitionWithContext(ctx, key, transitionID)
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to transition %s: %w", key, err)
		}
		return nil
	})
}

// MoveIssueToSprint assigns an issue to a sprint.
func (c *Client) MoveIssueToSprint(ctx context.Context, sprintID int, issueKey string) error {
	return c.gov.Do(ctx, func() error {
		resp, err := c.api.Sprint.MoveIssuesToSprintWithContext(ctx, sprintID, []string{issueKey})
		if err := classify(resp, err); err != nil {
			return fmt.Errorf("failed to move %s to sprint %d: %w", issueKey, sprintID, err)
		}
		return nil
	})
}

// StatusName extracts the current status name of an issue, empty when unset.
func StatusName(issue *jira.Issue) string {
	if issue == nil || issue.Fields == nil || issue.Fields.Status == nil {
		return ""
	}
	return issue.Fields.Status.Name
}

// SanitizeLabel converts a source label into a form Jira accepts. Jira labels
// must not contain spaces.
func SanitizeLabel(label string) string {
	return strings.ReplaceAll(label, " ", "-")
}
