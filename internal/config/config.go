package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gh2jira/gh2jira/internal/github"
	"github.com/gh2jira/gh2jira/internal/mappings"
)

// Duration parses YAML values like "500ms" or "1m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the wrapped time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// JiraConfig holds destination-wide settings.
type JiraConfig struct {
	Endpoint string `yaml:"endpoint"`
	// EpicType is the issue type whose required name field gets the issue
	// title on creation.
	EpicType string `yaml:"epicType"`
}

// ThrottleConfig governs the outbound call rate towards the destination.
type ThrottleConfig struct {
	// Interval is the minimum time between two consecutive call dispatches.
	Interval Duration `yaml:"interval"`
	// Cooldown is the wait before the single retry of a throttled write.
	Cooldown Duration `yaml:"cooldown"`
}

// FieldConfig names the destination custom fields resolved at startup.
type FieldConfig struct {
	StoryPoints string `yaml:"storyPoints"`
	EpicName    string `yaml:"epicName"`
}

// GitHubProject identifies the source side of one synchronized project.
type GitHubProject struct {
	Owner  string            `yaml:"owner"`
	Repo   string            `yaml:"repo"`
	Board  string            `yaml:"board"`
	Since  string            `yaml:"since"`
	Fields github.FieldNames `yaml:"fields"`
}

// JiraProject identifies the destination side of one synchronized project.
type JiraProject struct {
	Project   string `yaml:"project"`
	Component string `yaml:"component"`
	Board     string `yaml:"board"`
	IDPrefix  string `yaml:"idPrefix"`
}

// Project is the immutable per-project descriptor.
type Project struct {
	Name         string               `yaml:"name"`
	MaxBatchSize int                  `yaml:"maxBatchSize"`
	PageSize     int                  `yaml:"pageSize"`
	GitHub       GitHubProject        `yaml:"github"`
	Jira         JiraProject          `yaml:"jira"`
	IssueTypes   mappings.TypeTable   `yaml:"issueTypes"`
	Statuses     mappings.StatusTable `yaml:"statuses"`
}

// Config is the static configuration of one run.
type Config struct {
	Jira     JiraConfig     `yaml:"jira"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Fields   FieldConfig    `yaml:"fields"`
	Projects []Project      `yaml:"projects"`
}

const (
	defaultEpicType = "Epic"
	defaultPageSize = 50
)

// Load reads and validates the configuration file. Validation failures here
// are fatal for the whole run: nothing is synchronized on a broken config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Jira.EpicType == "" {
		c.Jira.EpicType = defaultEpicType
	}
	if c.Fields.StoryPoints == "" {
		c.Fields.StoryPoints = "Story Points"
	}
	if c.Fields.EpicName == "" {
		c.Fields.EpicName = "Epic Name"
	}
	defaults := github.DefaultFieldNames()
	for i := range c.Projects {
		project := &c.Projects[i]
		if project.PageSize == 0 {
			project.PageSize = defaultPageSize
		}
		if project.GitHub.Fields.Status == "" {
			project.GitHub.Fields.Status = defaults.Status
		}
		if project.GitHub.Fields.Points == "" {
			project.GitHub.Fields.Points = defaults.Points
		}
		if project.GitHub.Fields.Sprint == "" {
			project.GitHub.Fields.Sprint = defaults.Sprint
		}
	}
}

func (c *Config) validate() error {
	if c.Jira.Endpoint == "" {
		return fmt.Errorf("jira.endpoint must be configured")
	}
	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project must be configured")
	}

	names := map[string]bool{}
	for i := range c.Projects {
		project := &c.Projects[i]
		if project.Name == "" {
			return fmt.Errorf("project %d has no name", i)
		}
		if names[project.Name] {
			return fmt.Errorf("duplicate project name %q", project.Name)
		}
		names[project.Name] = true

		if err := project.validate(); err != nil {
			return fmt.Errorf("project %s: %w", project.Name, err)
		}
	}

	return nil
}

func (p *Project) validate() error {
	if p.GitHub.Owner == "" || p.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo must be configured")
	}
	if p.GitHub.Board == "" {
		return fmt.Errorf("github.board must be configured")
	}
	if p.GitHub.Since == "" {
		return fmt.Errorf("github.since must be configured")
	}
	if _, err := time.Parse(time.RFC3339, p.GitHub.Since); err != nil {
		return fmt.Errorf("github.since is not a valid RFC3339 timestamp: %w", err)
	}
	if p.Jira.Project == "" || p.Jira.Component == "" || p.Jira.Board == "" {
		return fmt.Errorf("jira.project, jira.component and jira.board must be configured")
	}
	if p.Jira.IDPrefix == "" {
		return fmt.Errorf("jira.idPrefix must be configured")
	}
	if p.MaxBatchSize < 0 {
		return fmt.Errorf("maxBatchSize must not be negative")
	}
	if err := p.IssueTypes.Validate(); err != nil {
		return err
	}
	if err := p.Statuses.Validate(); err != nil {
		return err
	}
	return nil
}
