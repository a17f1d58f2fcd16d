// Package jira publishes issues to a JIRA instance.
//
// Repositories map onto JIRA as "PROJECT/IssueType": the owner part is the
// project key and the name part the issue type (e.g. "WEB/Story").
package jira

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// ErrUnexpectedKey is returned when JIRA answers with an issue key that has
// no numeric suffix.
var ErrUnexpectedKey = errors.New("unexpected JIRA issue key")

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	baseURL string

	mu   sync.Mutex
	keys map[int]string // issue number -> key of issues created by this client
}

// NewClient creates a JIRA client using basic authentication with an API token.
func NewClient(baseURL, username, token string) (*Client, error) {
	if baseURL == "" || username == "" {
		return nil, fmt.Errorf("JIRA_URL and JIRA_USERNAME are required")
	}

	// Create JIRA authentication transport
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: token,
	}

	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		keys:    make(map[int]string),
	}, nil
}

// CreateIssue creates a JIRA issue in the project named by owner with the
// issue type named by issueType. Spaces in labels are replaced with dashes
// since JIRA labels cannot contain whitespace. Only the first assignee is used.
func (c *Client) CreateIssue(ctx context.Context, projectKey, issueType string, issue models.NewIssue) (models.CreatedIssue, error) {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, strings.Join(strings.Fields(label), "-"))
	}

	fields := &jira.IssueFields{
		Project: jira.Project{
			Key: projectKey,
		},
		Type: jira.IssueType{
			Name: issueType,
		},
		Summary:     issue.Title,
		Description: issue.Body,
		Labels:      labels,
	}
	if len(issue.Assignees) > 0 {
		fields.Assignee = &jira.User{Name: issue.Assignees[0]}
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		logging.Error("failed to create JIRA issue",
			"project", projectKey,
			"error", err,
			"status_code", statusCode(resp))
		return models.CreatedIssue{}, fmt.Errorf("failed to create JIRA issue in %s: %w", projectKey, err)
	}

	number, err := keyNumber(created.Key)
	if err != nil {
		logging.Error("JIRA returned an unusable issue key", "project", projectKey, "key", created.Key)
		return models.CreatedIssue{}, err
	}

	c.mu.Lock()
	c.keys[number] = created.Key
	c.mu.Unlock()

	logging.Info("JIRA issue created", "project", projectKey, "key", created.Key)

	return models.CreatedIssue{
		Number: number,
		URL:    fmt.Sprintf("%s/browse/%s", c.baseURL, created.Key),
	}, nil
}

// CreateComment adds a comment to an issue. Issues created by this client are
// addressed by the key JIRA returned, others by projectKey-issueNumber.
func (c *Client) CreateComment(ctx context.Context, projectKey, _ string, issueNumber int, body string) error {
	c.mu.Lock()
	key, ok := c.keys[issueNumber]
	c.mu.Unlock()
	if !ok {
		key = fmt.Sprintf("%s-%d", projectKey, issueNumber)
	}

	_, resp, err := c.client.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: body})
	if err != nil {
		logging.Error("failed to comment on JIRA issue", "key", key, "error", err, "status_code", statusCode(resp))
		return fmt.Errorf("failed to comment on JIRA issue %s: %w", key, err)
	}
	return nil
}

// TestConnection checks the credentials by fetching the current user.
func (c *Client) TestConnection(ctx context.Context) models.ConnectionStatus {
	user, resp, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		logging.Warn("failed to test JIRA credentials", "error", err, "status_code", statusCode(resp))
		return models.ConnectionStatus{Success: false, Error: err.Error()}
	}

	name := user.Name
	if name == "" {
		name = user.DisplayName
	}
	return models.ConnectionStatus{Success: true, User: name}
}

// GetRepository describes the JIRA project. Stars, forks and open issues have
// no JIRA equivalent and stay zero.
func (c *Client) GetRepository(ctx context.Context, projectKey, _ string) (models.RepositoryInfo, error) {
	project, resp, err := c.client.Project.GetWithContext(ctx, projectKey)
	if err != nil {
		logging.Error("failed to get JIRA project", "project", projectKey, "error", err, "status_code", statusCode(resp))
		return models.RepositoryInfo{}, fmt.Errorf("failed to get JIRA project %s: %w", projectKey, err)
	}

	return models.RepositoryInfo{
		FullName:    project.Key,
		Description: project.Description,
	}, nil
}

// keyNumber extracts 42 from "WEB-42".
func keyNumber(key string) (int, error) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedKey, key)
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedKey, key)
	}
	return n, nil
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
