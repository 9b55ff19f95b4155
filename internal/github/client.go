package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Client reads issues and their project board fields through the GitHub
// GraphQL API.
type Client struct {
	gql *githubv4.Client
}

// NewClient creates a client authenticated with the given token.
func NewClient(token string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gql: githubv4.NewClient(oauth2.NewClient(context.Background(), src))}
}

type projectField struct {
	Common struct {
		Name githubv4.String
	} `graphql:"... on ProjectV2FieldCommon"`
}

type fieldValueNode struct {
	TypeName     githubv4.String `graphql:"__typename"`
	SingleSelect struct {
		Name  githubv4.String
		Field projectField
	} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	Number struct {
		Number githubv4.Float
		Field  projectField
	} `graphql:"... on ProjectV2ItemFieldNumberValue"`
	Iteration struct {
		Title     githubv4.String
		StartDate githubv4.String
		Duration  githubv4.Int
		Field     projectField
	} `graphql:"... on ProjectV2ItemFieldIterationValue"`
}

type issueNode struct {
	URL       githubv4.URI
	Number    githubv4.Int
	UpdatedAt githubv4.DateTime
	Closed    githubv4.Boolean
	Title     githubv4.String
	Body      githubv4.String
	Labels    struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"labels(first: 50)"`
	Milestone *struct {
		Title  githubv4.String
		DueOn  *githubv4.DateTime
		Closed githubv4.Boolean
	}
	ProjectItems struct {
		Nodes []struct {
			Project struct {
				Title githubv4.String
			}
			FieldValues struct {
				Nodes []fieldValueNode
			} `graphql:"fieldValues(first: 20)"`
		}
	} `graphql:"projectItems(first: 10)"`
}

type issueSearchQuery struct {
	Search struct {
		PageInfo struct {
			EndCursor   githubv4.String
			HasNextPage githubv4.Boolean
		}
		Nodes []struct {
			Issue issueNode `graphql:"... on Issue"`
		}
	} `graphql:"search(query: $searchQuery, type: ISSUE, first: $pageSize, after: $cursor)"`
	RateLimit struct {
		Cost      githubv4.Int
		Remaining githubv4.Int
		ResetAt   githubv4.DateTime
	}
}

// Search fetches one page of issues updated strictly after the query's Since
// timestamp, ordered ascending by update time.
func (c *Client) Search(ctx context.Context, q Query) (*Page, error) {
	searchQuery := fmt.Sprintf("repo:%s/%s is:issue updated:>%s sort:updated-asc", q.Owner, q.Repo, q.Since)

	variables := map[string]interface{}{
		"searchQuery": githubv4.String(searchQuery),
		"pageSize":    githubv4.Int(q.PageSize),
		"cursor":      (*githubv4.String)(nil),
	}
	if q.Cursor != "" {
		variables["cursor"] = githubv4.NewString(githubv4.String(q.Cursor))
	}

	var query issueSearchQuery
	if err := c.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("failed to query issues of %s/%s: %w", q.Owner, q.Repo, err)
	}

	page := &Page{
		EndCursor:   string(query.Search.PageInfo.EndCursor),
		HasNextPage: bool(query.Search.PageInfo.HasNextPage),
		RateLimit: RateLimit{
			Cost:      int(query.RateLimit.Cost),
			Remaining: int(query.RateLimit.Remaining),
			ResetAt:   query.RateLimit.ResetAt.Time,
		},
	}
	for _, node := range query.Search.Nodes {
		page.Records = append(page.Records, convertIssue(node.Issue, q))
	}

	return page, nil
}

func convertIssue(issue issueNode, q Query) Record {
	record := Record{
		URL:       issue.URL.String(),
		Number:    int(issue.Number),
		UpdatedAt: issue.UpdatedAt.Time,
		Closed:    bool(issue.Closed),
		Title:     string(issue.Title),
		Body:      string(issue.Body),
	}
	for _, label := range issue.Labels.Nodes {
		record.Labels = append(record.Labels, string(label.Name))
	}
	if issue.Milestone != nil {
		milestone := &Milestone{
			Title:  string(issue.Milestone.Title),
			Closed: bool(issue.Milestone.Closed),
		}
		if issue.Milestone.DueOn != nil {
			due := issue.Milestone.DueOn.Time
			milestone.DueOn = &due
		}
		record.Milestone = milestone
	}

	for _, item := range issue.ProjectItems.Nodes {
		if string(item.Project.Title) != q.Board {
			continue
		}
		board := &Board{}
		for _, value := range item.FieldValues.Nodes {
			switch string(value.TypeName) {
			case "ProjectV2ItemFieldSingleSelectValue":
				if string(value.SingleSelect.Field.Common.Name) == q.Fields.Status {
					board.Status = string(value.SingleSelect.Name)
				}
			case "ProjectV2ItemFieldNumberValue":
				if string(value.Number.Field.Common.Name) == q.Fields.Points {
					points := float64(value.Number.Number)
					board.Points = &points
				}
			case "ProjectV2ItemFieldIterationValue":
				if string(value.Iteration.Field.Common.Name) == q.Fields.Sprint {
					board.Sprint = &Sprint{
						Title:     string(value.Iteration.Title),
						StartDate: string(value.Iteration.StartDate),
						Duration:  int(value.Iteration.Duration),
					}
				}
			}
		}
		record.Board = board
		break
	}

	return record
}
