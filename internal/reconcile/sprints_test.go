package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gh2jira/gh2jira/internal/github"
)

type fakeSprintClient struct {
	sprints []jira.Sprint
	created []jira.Sprint
	updated []jira.Sprint
	nextID  int
}

func (f *fakeSprintClient) Sprints(context.Context, int) ([]jira.Sprint, error) {
	out := make([]jira.Sprint, len(f.sprints))
	copy(out, f.sprints)
	return out, nil
}

func (f *fakeSprintClient) CreateSprint(_ context.Context, boardID int, name string, start, end *time.Time) (*jira.Sprint, error) {
	f.nextID++
	sprint := jira.Sprint{ID: f.nextID, Name: name, StartDate: start, EndDate: end, OriginBoardID: boardID}
	f.created = append(f.created, sprint)
	f.sprints = append(f.sprints, sprint)
	return &sprint, nil
}

func (f *fakeSprintClient) UpdateSprint(_ context.Context, sprintID int, name string, start, end *time.Time) (*jira.Sprint, error) {
	sprint := jira.Sprint{ID: sprintID, Name: name, StartDate: start, EndDate: end}
	f.updated = append(f.updated, sprint)
	for i := range f.sprints {
		if f.sprints[i].ID == sprintID {
			f.sprints[i] = sprint
		}
	}
	return &sprint, nil
}

func sprintRecord(number int, title, startDate string, duration int) github.Record {
	return github.Record{
		Number: number,
		Board: &github.Board{
			Sprint: &github.Sprint{Title: title, StartDate: startDate, Duration: duration},
		},
	}
}

func TestSprintsCreatesWithDerivedEndDate(t *testing.T) {
	dst := &fakeSprintClient{}
	records := []github.Record{sprintRecord(1, "Sprint 7", "2024-01-08", 14)}

	lookup, err := Sprints(context.Background(), dst, 42, records, testLog())
	require.NoError(t, err)

	require.Len(t, dst.created, 1)
	created := dst.created[0]
	assert.Equal(t, "Sprint 7", created.Name)
	assert.Equal(t, 42, created.OriginBoardID)
	require.NotNil(t, created.StartDate)
	require.NotNil(t, created.EndDate)
	assert.Equal(t, "2024-01-08", created.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2024-01-22", created.EndDate.Format("2006-01-02"))
	assert.Equal(t, created.ID, lookup["Sprint 7"])
}

func TestSprintsDeduplicatesByTitle(t *testing.T) {
	dst := &fakeSprintClient{}
	records := []github.Record{
		sprintRecord(1, "Sprint 7", "2024-01-08", 14),
		sprintRecord(2, "Sprint 7", "2024-01-08", 14),
		{Number: 3}, // not on the board
	}

	_, err := Sprints(context.Background(), dst, 42, records, testLog())
	require.NoError(t, err)
	assert.Len(t, dst.created, 1)
}

func TestSprintsUpdatesWhenDatesMoved(t *testing.T) {
	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	dst := &fakeSprintClient{sprints: []jira.Sprint{{ID: 5, Name: "Sprint 7", StartDate: &start, EndDate: &end}}}

	// Same dates: no churn.
	_, err := Sprints(context.Background(), dst, 42, []github.Record{sprintRecord(1, "Sprint 7", "2024-01-08", 14)}, testLog())
	require.NoError(t, err)
	assert.Empty(t, dst.updated)

	// Sprint moved by a week: update expected.
	_, err = Sprints(context.Background(), dst, 42, []github.Record{sprintRecord(1, "Sprint 7", "2024-01-15", 14)}, testLog())
	require.NoError(t, err)
	require.Len(t, dst.updated, 1)
	assert.Equal(t, 5, dst.updated[0].ID)
	assert.Equal(t, "2024-01-15", dst.updated[0].StartDate.Format("2006-01-02"))
}
