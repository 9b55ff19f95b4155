package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/gh2jira/gh2jira/internal/config"
	"github.com/gh2jira/gh2jira/internal/engine"
	"github.com/gh2jira/gh2jira/internal/github"
	"github.com/gh2jira/gh2jira/internal/governor"
	destjira "github.com/gh2jira/gh2jira/internal/jira"
	"github.com/gh2jira/gh2jira/internal/state"
)

type options struct {
	configPath string
	statePath  string
	logLevel   string
}

func gatherOptions() options {
	var o options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	fs.StringVar(&o.configPath, "config", config.DefaultConfigPath(), "Path to the configuration file")
	fs.StringVar(&o.statePath, "state", config.DefaultStatePath(), "Path to the watermark state file")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		logrus.WithError(err).Fatalf("cannot parse args: '%s'", os.Args[1:])
	}

	return o
}

func (o *options) validate() error {
	if o.configPath == "" {
		return fmt.Errorf("--config must be specified and nonempty")
	}
	if o.statePath == "" {
		return fmt.Errorf("--state must be specified and nonempty")
	}
	if _, err := logrus.ParseLevel(o.logLevel); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	return nil
}

func main() {
	o := gatherOptions()
	if err := o.validate(); err != nil {
		logrus.WithError(err).Fatal("invalid options")
	}
	level, _ := logrus.ParseLevel(o.logLevel)
	logrus.SetLevel(level)

	// Tokens may come from a .env next to the binary; a missing file is fine.
	_ = godotenv.Load()

	githubToken := os.Getenv("GITHUB_TOKEN")
	if githubToken == "" {
		logrus.Fatal("GITHUB_TOKEN must be set")
	}
	jiraToken := os.Getenv("JIRA_TOKEN")
	if jiraToken == "" {
		logrus.Fatal("JIRA_TOKEN must be set")
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		logrus.WithError(err).Fatal("cannot load configuration")
	}

	store := state.NewStore(o.statePath)
	watermarks, err := store.Load()
	if err != nil {
		logrus.WithError(err).Fatal("cannot load watermark state")
	}

	gov := governor.New(cfg.Throttle.Interval.AsDuration())

	source := github.NewClient(githubToken)
	destination, err := destjira.NewClient(cfg.Jira.Endpoint, jiraToken, gov, logrus.WithField("client", "jira"))
	if err != nil {
		logrus.WithError(err).Fatal("cannot create Jira client")
	}

	results, runErr := engine.New(cfg, source, destination, watermarks, logrus.StandardLogger()).Run(context.Background())

	// Drain the governor before any fatal exit path; a defer would not run
	// through logrus.Fatal.
	gov.Close()

	// Persist whatever progress was achieved even when the run failed.
	perProject := make(map[string]string, len(results))
	for _, result := range results {
		perProject[result.Name] = result.Watermark
	}
	if err := store.Save(state.Merge(perProject)); err != nil {
		logrus.WithError(err).Error("cannot save watermark state")
	}

	if runErr != nil {
		logrus.WithError(runErr).Fatal("synchronization finished with failures")
	}
	logrus.Info("synchronization finished")
}
