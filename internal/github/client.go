// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// APIURL returns the REST endpoint for a GitHub domain. github.com (or an
// empty domain) maps to the public API; anything else is treated as a GitHub
// Enterprise host.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub API client authenticated with token for the given
// domain. No request is made; use TestConnection to verify the token.
func NewClient(token, domain string) (*Client, error) {
	apiURL := APIURL(domain)

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(token))

	return NewClientWithBaseURL(token, apiURL)
}

// NewClientWithBaseURL creates a client against an explicit API base URL.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}

	// Create the oauth2 client
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	client.BaseURL = parsedURL

	// For GitHub Enterprise, set the upload URL to the same endpoint
	client.UploadURL = parsedURL

	return &Client{client: client}, nil
}

// CreateIssue opens an issue in owner/repo. GitHub creates labels that do not
// exist yet. It returns the number and browser URL of the new issue.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, issue models.NewIssue) (models.CreatedIssue, error) {
	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}
	assignees := issue.Assignees
	if assignees == nil {
		assignees = []string{}
	}

	logging.Debug("creating issue", "repository", owner+"/"+repo, "title", issue.Title, "labels", labels)

	created, resp, err := c.client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title:     github.String(issue.Title),
		Body:      github.String(issue.Body),
		Labels:    &labels,
		Assignees: &assignees,
	})
	if err != nil {
		logging.Error("failed to create github issue",
			"repository", owner+"/"+repo,
			"error", err,
			"status_code", statusCode(resp))
		return models.CreatedIssue{}, fmt.Errorf("failed to create issue in %s/%s: %w", owner, repo, err)
	}

	logging.Info("github issue created",
		"repository", owner+"/"+repo,
		"issue_number", created.GetNumber())

	return models.CreatedIssue{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
	}, nil
}

// CreateComment adds a comment to an existing issue.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, issueNumber int, body string) error {
	_, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		logging.Error("error adding comment to issue",
			"repository", owner+"/"+repo,
			"issue_number", issueNumber,
			"error", err,
			"status_code", statusCode(resp))
		return fmt.Errorf("failed to comment on issue %s#%d: %w", repo, issueNumber, err)
	}

	logging.Debug("comment added", "repository", owner+"/"+repo, "issue_number", issueNumber)
	return nil
}

// TestConnection checks the token by fetching the authenticated user. Failures
// are reported in the returned status, not as an error.
func (c *Client) TestConnection(ctx context.Context) models.ConnectionStatus {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		logging.Warn("failed to test github token", "error", err, "status_code", statusCode(resp))
		return models.ConnectionStatus{Success: false, Error: err.Error()}
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return models.ConnectionStatus{Success: true, User: user.GetLogin()}
}

// GetRepository fetches summary information about owner/repo.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (models.RepositoryInfo, error) {
	repository, resp, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		logging.Error("failed to get github repository",
			"repository", owner+"/"+repo,
			"error", err,
			"status_code", statusCode(resp))
		return models.RepositoryInfo{}, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}

	return models.RepositoryInfo{
		FullName:    repository.GetFullName(),
		Description: repository.GetDescription(),
		Language:    repository.GetLanguage(),
		Stars:       repository.GetStargazersCount(),
		Forks:       repository.GetForksCount(),
		OpenIssues:  repository.GetOpenIssuesCount(),
	}, nil
}

func statusCode(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
