package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gh2jira/gh2jira/internal/github"
)

type fakeVersionClient struct {
	versions []jira.Version
	created  []jira.Version
	updated  []jira.Version
	nextID   int
}

func (f *fakeVersionClient) ProjectVersions(context.Context, string) ([]jira.Version, error) {
	out := make([]jira.Version, len(f.versions))
	copy(out, f.versions)
	return out, nil
}

func (f *fakeVersionClient) CreateVersion(_ context.Context, version *jira.Version) (*jira.Version, error) {
	f.nextID++
	created := *version
	created.ID = string(rune('0' + f.nextID))
	f.created = append(f.created, created)
	f.versions = append(f.versions, created)
	return &created, nil
}

func (f *fakeVersionClient) UpdateVersion(_ context.Context, version *jira.Version) (*jira.Version, error) {
	f.updated = append(f.updated, *version)
	for i := range f.versions {
		if f.versions[i].ID == version.ID {
			f.versions[i] = *version
		}
	}
	return version, nil
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func milestoneRecord(number int, title string, due time.Time, closed bool) github.Record {
	return github.Record{
		Number:    number,
		Milestone: &github.Milestone{Title: title, DueOn: &due, Closed: closed},
	}
}

func TestVersionsCreatesNamespacedVersions(t *testing.T) {
	dst := &fakeVersionClient{}
	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	records := []github.Record{
		milestoneRecord(1, "v2.0", due, false),
		{Number: 2}, // no milestone, must be skipped
	}

	lookup, err := Versions(context.Background(), dst, VersionParams{ProjectKey: "FLT", ProjectID: 10, DisplayName: "fleet"}, records, testLog())
	require.NoError(t, err)

	require.Len(t, dst.created, 1)
	assert.Equal(t, "fleet v2.0", dst.created[0].Name)
	assert.Equal(t, 10, dst.created[0].ProjectID)
	assert.Equal(t, "2024-06-30", dst.created[0].ReleaseDate)
	assert.Contains(t, lookup, "fleet v2.0")
}

func TestVersionsDeduplicatesByName(t *testing.T) {
	dst := &fakeVersionClient{}
	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	records := []github.Record{
		milestoneRecord(1, "v2.0", due, false),
		milestoneRecord(2, "v2.0", due, false),
	}

	lookup, err := Versions(context.Background(), dst, VersionParams{ProjectKey: "FLT", ProjectID: 10, DisplayName: "fleet"}, records, testLog())
	require.NoError(t, err)

	assert.Len(t, dst.created, 1, "two records sharing a milestone must collapse to one create")
	assert.Len(t, dst.updated, 0)
	assert.Contains(t, lookup, "fleet v2.0")
}

func TestVersionsUpdatesOnlyWhenDifferent(t *testing.T) {
	released := false
	dst := &fakeVersionClient{versions: []jira.Version{
		{ID: "100", Name: "fleet v2.0", Released: &released, ReleaseDate: "2024-06-30"},
	}}
	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	// Identical target: no update.
	_, err := Versions(context.Background(), dst, VersionParams{ProjectKey: "FLT", ProjectID: 10, DisplayName: "fleet"},
		[]github.Record{milestoneRecord(1, "v2.0", due, false)}, testLog())
	require.NoError(t, err)
	assert.Empty(t, dst.created)
	assert.Empty(t, dst.updated)

	// Closed milestone: released flag differs, update expected.
	_, err = Versions(context.Background(), dst, VersionParams{ProjectKey: "FLT", ProjectID: 10, DisplayName: "fleet"},
		[]github.Record{milestoneRecord(1, "v2.0", due, true)}, testLog())
	require.NoError(t, err)
	require.Len(t, dst.updated, 1)
	assert.True(t, *dst.updated[0].Released)
}

func TestVersionsIgnoresTimeOfDayInDates(t *testing.T) {
	released := false
	dst := &fakeVersionClient{versions: []jira.Version{
		{ID: "100", Name: "fleet v2.0", Released: &released, ReleaseDate: "2024-06-30"},
	}}
	// Same day, different time: must not churn.
	due := time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC)

	_, err := Versions(context.Background(), dst, VersionParams{ProjectKey: "FLT", ProjectID: 10, DisplayName: "fleet"},
		[]github.Record{milestoneRecord(1, "v2.0", due, false)}, testLog())
	require.NoError(t, err)
	assert.Empty(t, dst.updated)
}
