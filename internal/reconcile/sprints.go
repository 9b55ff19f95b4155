package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/github"
)

type sprintTarget struct {
	name  string
	start *time.Time
	end   *time.Time
}

// Sprints reconciles the destination board's sprints with the iterations
// referenced by the fetched records and returns the name→id lookup table.
func Sprints(ctx context.Context, dst SprintClient, boardID int, records []github.Record, log *logrus.Entry) (map[string]int, error) {
	existing, err := dst.Sprints(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	byName := make(map[string]jira.Sprint, len(existing))
	for _, sprint := range existing {
		byName[sprint.Name] = sprint
	}

	for _, target := range sprintTargets(records) {
		current, ok := byName[target.name]
		if !ok {
			log.WithField("sprint", target.name).Info("Creating sprint")
			if _, err := dst.CreateSprint(ctx, boardID, target.name, target.start, target.end); err != nil {
				return nil, fmt.Errorf("failed to create sprint %q: %w", target.name, err)
			}
			continue
		}

		if day(current.StartDate) == day(target.start) && day(current.EndDate) == day(target.end) {
			continue
		}
		log.WithField("sprint", target.name).Info("Updating sprint")
		if _, err := dst.UpdateSprint(ctx, current.ID, target.name, target.start, target.end); err != nil {
			return nil, fmt.Errorf("failed to update sprint %q: %w", target.name, err)
		}
	}

	final, err := dst.Sprints(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-list sprints: %w", err)
	}
	lookup := make(map[string]int, len(final))
	for _, sprint := range final {
		lookup[sprint.Name] = sprint.ID
	}

	return lookup, nil
}

// sprintTargets derives the deduplicated target sprint set from the fetched
// records, first occurrence of a name wins. The end date is derived from the
// iteration's start date plus its duration in days.
func sprintTargets(records []github.Record) []sprintTarget {
	var targets []sprintTarget
	seen := map[string]bool{}
	for _, record := range records {
		if record.Board == nil || record.Board.Sprint == nil {
			continue
		}
		iteration := record.Board.Sprint
		if seen[iteration.Title] {
			continue
		}
		seen[iteration.Title] = true

		target := sprintTarget{name: iteration.Title}
		if start, err := time.Parse("2006-01-02", iteration.StartDate); err == nil {
			end := start.AddDate(0, 0, iteration.Duration)
			target.start = &start
			target.end = &end
		}
		targets = append(targets, target)
	}
	return targets
}
