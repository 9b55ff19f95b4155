package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"github.com/trivago/tgo/tcontainer"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/gh2jira/gh2jira/internal/config"
	"github.com/gh2jira/gh2jira/internal/github"
	destjira "github.com/gh2jira/gh2jira/internal/jira"
	"github.com/gh2jira/gh2jira/internal/markup"
	"github.com/gh2jira/gh2jira/internal/reconcile"
)

// defaultStoryPoints is applied when the source board carries no points value.
const defaultStoryPoints = 1.0

// GlobalID computes the idempotency key matching a source record to a
// destination issue across runs. Stable for the lifetime of a source record.
func GlobalID(prefix string, number int) string {
	return fmt.Sprintf("%s-%d", prefix, number)
}

func (e *Engine) upsertRecord(ctx context.Context, project config.Project, meta *destjira.Meta, record github.Record, versions map[string]string, sprints map[string]int, log *logrus.Entry) error {
	globalID := GlobalID(project.Jira.IDPrefix, record.Number)
	issueType := project.IssueTypes.Resolve(sets.New[string](record.Labels...))

	boardStatus := ""
	if record.Board != nil {
		boardStatus = record.Board.Status
	}
	targetStatus := project.Statuses.Resolve(boardStatus)

	var fixVersionID string
	if record.Milestone != nil {
		fixVersionID = versions[reconcile.VersionName(project.Name, record.Milestone.Title)]
	}
	sprintID := 0
	if record.Board != nil && record.Board.Sprint != nil {
		sprintID = sprints[record.Board.Sprint.Title]
	}

	var existing *jira.Issue
	if err := e.retryThrottled(log, func() error {
		var err error
		existing, err = e.dst.FindIssueByGlobalID(ctx, globalID)
		return err
	}); err != nil {
		return err
	}

	var key string
	if existing != nil {
		key = existing.Key
		log.WithFields(logrus.Fields{"globalId": globalID, "key": key}).Debug("Reusing existing issue")
	} else {
		var created *jira.Issue
		if err := e.retryThrottled(log, func() error {
			var err error
			created, err = e.dst.CreateIssue(ctx, project.Jira.Project, issueType, record.Title)
			return err
		}); err != nil {
			return err
		}
		key = created.Key
		log.WithFields(logrus.Fields{"globalId": globalID, "key": key}).Info("Created issue")
	}

	// Always re-applied, regardless of creation or reuse.
	linkTitle := fmt.Sprintf("%s/%s#%d", project.GitHub.Owner, project.GitHub.Repo, record.Number)
	if err := e.retryThrottled(log, func() error {
		return e.dst.UpsertRemoteLink(ctx, key, globalID, record.URL, linkTitle)
	}); err != nil {
		return err
	}

	points := defaultStoryPoints
	if record.Board != nil && record.Board.Points != nil {
		points = *record.Board.Points
	}
	unknowns := tcontainer.NewMarshalMap()
	unknowns[meta.PointsFieldID] = points
	if issueType == e.cfg.Jira.EpicType {
		unknowns[meta.EpicFieldID] = record.Title
	}

	labels := make([]string, 0, len(record.Labels))
	for _, label := range record.Labels {
		labels = append(labels, destjira.SanitizeLabel(label))
	}

	fields := &jira.IssueFields{
		Summary:     record.Title,
		Description: markup.ToJira(record.Body),
		Components:  []*jira.Component{{ID: meta.ComponentID}},
		Labels:      labels,
		Unknowns:    unknowns,
	}
	if fixVersionID != "" {
		fields.FixVersions = []*jira.FixVersion{{ID: fixVersionID}}
	}
	if err := e.retryThrottled(log, func() error {
		return e.dst.UpdateIssue(ctx, &jira.Issue{Key: key, Fields: fields})
	}); err != nil {
		return err
	}

	var current *jira.Issue
	if err := e.retryThrottled(log, func() error {
		var err error
		current, err = e.dst.GetIssue(ctx, key)
		return err
	}); err != nil {
		return err
	}
	currentStatus := destjira.StatusName(current)
	if !strings.EqualFold(currentStatus, targetStatus) {
		var transitions []jira.Transition
		if err := e.retryThrottled(log, func() error {
			var err error
			transitions, err = e.dst.Transitions(ctx, key)
			return err
		}); err != nil {
			return err
		}
		transitionID := ""
		for _, transition := range transitions {
			if strings.EqualFold(transition.To.Name, targetStatus) {
				transitionID = transition.ID
				break
			}
		}
		if transitionID == "" {
			// A destination-side workflow mismatch, not a transient condition.
			return fmt.Errorf("no transition from %q to %q available on %s", currentStatus, targetStatus, key)
		}
		if err := e.retryThrottled(log, func() error {
			return e.dst.DoTransition(ctx, key, transitionID)
		}); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"key": key, "status": targetStatus}).Info("Transitioned issue")
	}

	if sprintID != 0 {
		if err := e.retryThrottled(log, func() error {
			return e.dst.MoveIssueToSprint(ctx, sprintID, key)
		}); err != nil {
			return err
		}
	}

	return nil
}
