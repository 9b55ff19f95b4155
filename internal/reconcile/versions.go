package reconcile

import (
	"context"
	"fmt"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/github"
)

// VersionParams scope one version reconciliation pass.
type VersionParams struct {
	ProjectKey  string
	ProjectID   int
	DisplayName string
}

type versionTarget struct {
	name     string
	released bool
	dueDay   string
}

// Versions reconciles the destination's project versions with the milestones
// referenced by the fetched records and returns the name→id lookup table.
func Versions(ctx context.Context, dst VersionClient, p VersionParams, records []github.Record, log *logrus.Entry) (map[string]string, error) {
	existing, err := dst.ProjectVersions(ctx, p.ProjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	byName := make(map[string]jira.Version, len(existing))
	for _, version := range existing {
		byName[version.Name] = version
	}

	for _, target := range versionTargets(p.DisplayName, records) {
		current, ok := byName[target.name]
		if !ok {
			log.WithField("version", target.name).Info("Creating version")
			released := target.released
			if _, err := dst.CreateVersion(ctx, &jira.Version{
				Name:        target.name,
				ProjectID:   p.ProjectID,
				Released:    &released,
				ReleaseDate: target.dueDay,
			}); err != nil {
				return nil, fmt.Errorf("failed to create version %q: %w", target.name, err)
			}
			continue
		}

		currentReleased := current.Released != nil && *current.Released
		if currentReleased == target.released && dayOfString(current.ReleaseDate) == target.dueDay {
			continue
		}
		log.WithField("version", target.name).Info("Updating version")
		released := target.released
		if _, err := dst.UpdateVersion(ctx, &jira.Version{
			ID:          current.ID,
			ProjectID:   p.ProjectID,
			Name:        target.name,
			Released:    &released,
			ReleaseDate: target.dueDay,
		}); err != nil {
			return nil, fmt.Errorf("failed to update version %q: %w", target.name, err)
		}
	}

	// Re-fetch after mutation so the lookup table carries ids for versions
	// created in this pass.
	final, err := dst.ProjectVersions(ctx, p.ProjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to re-list versions: %w", err)
	}
	lookup := make(map[string]string, len(final))
	for _, version := range final {
		lookup[version.Name] = version.ID
	}

	return lookup, nil
}

// versionTargets derives the deduplicated target version set from the fetched
// records, first occurrence of a name wins.
func versionTargets(displayName string, records []github.Record) []versionTarget {
	var targets []versionTarget
	seen := map[string]bool{}
	for _, record := range records {
		if record.Milestone == nil {
			continue
		}
		name := VersionName(displayName, record.Milestone.Title)
		if seen[name] {
			continue
		}
		seen[name] = true
		targets = append(targets, versionTarget{
			name:     name,
			released: record.Milestone.Closed,
			dueDay:   day(record.Milestone.DueOn),
		})
	}
	return targets
}
