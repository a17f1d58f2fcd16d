package workflow

import (
	"context"
	"fmt"

	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/github"
	"github.com/danielolaszy/voice2issue/internal/jira"
	"github.com/danielolaszy/voice2issue/internal/publication"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// TrackerClient is an issue tracker with the read operations used by the
// connection test and repository info features.
type TrackerClient interface {
	publication.Tracker
	TestConnection(ctx context.Context) models.ConnectionStatus
	GetRepository(ctx context.Context, owner, repo string) (models.RepositoryInfo, error)
}

// TrackerFactory builds a tracker client for one invocation.
type TrackerFactory func(token string) (TrackerClient, error)

// NewTracker builds the tracker client selected by cfg.Tracker.
func NewTracker(cfg *config.Config, token string) (TrackerClient, error) {
	switch cfg.Tracker {
	case config.TrackerGitHub, "":
		return github.NewClient(token, cfg.GitHub.Domain)
	case config.TrackerJira:
		return jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, token)
	default:
		return nil, fmt.Errorf("unsupported tracker %q", cfg.Tracker)
	}
}

// ConfiguredToken returns the credential of the configured tracker.
func ConfiguredToken(cfg *config.Config) string {
	if cfg.Tracker == config.TrackerJira {
		return cfg.Jira.Token
	}
	return cfg.GitHub.Token
}
