// Package models defines data structures shared across the application.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRepositoryFormat is returned for repository identifiers that are
// not of the form "owner/name".
var ErrInvalidRepositoryFormat = errors.New("invalid repository format, expected owner/repo")

// Priority is the urgency the language model assigns to a feature request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority converts a raw string into a Priority. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// ExtractionRequest is the input of one structured extraction. It is built per
// publish action and consumed once.
type ExtractionRequest struct {
	// VoiceInput is the raw transcript. It must not be empty.
	VoiceInput string

	// Repository is the target repository in "owner/name" form.
	Repository string
}

// IssueDraft is the structured issue produced by extraction and consumed by
// publication.
type IssueDraft struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`

	// Labels is an ordered set: no duplicates, insertion order preserved.
	Labels []string `json:"labels"`
}

// PublicationResult reports what happened on the tracker.
//
// IssueNumber == 0 with Success == false is a total failure. Success == true
// with CommentAdded == false means the issue exists but the automation
// comment could not be posted.
type PublicationResult struct {
	IssueNumber  int    `json:"issueNumber"`
	IssueURL     string `json:"issueUrl"`
	Success      bool   `json:"success"`
	CommentAdded bool   `json:"commentAdded"`
	Error        string `json:"error,omitempty"`

	// Demo marks a synthesized result: nothing was created on any tracker.
	Demo bool `json:"demo"`
}

// Settings are the per-invocation inputs supplied by the caller. They are
// read-only for the duration of one invocation and never persisted.
type Settings struct {
	Repository   string
	TrackerToken string
	ModelAPIKey  string
	DemoMode     bool
}

// NewIssue is what a tracker needs to open an issue.
type NewIssue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// CreatedIssue identifies an issue that exists on a tracker.
type CreatedIssue struct {
	// Number is the issue number (e.g., 42)
	Number int

	// URL is the browser URL of the issue
	URL string
}

// RepositoryInfo summarizes a tracker repository.
type RepositoryInfo struct {
	FullName    string `json:"fullName"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	OpenIssues  int    `json:"openIssues"`
}

// ConnectionStatus is the outcome of a tracker credential check.
type ConnectionStatus struct {
	Success bool   `json:"success"`
	User    string `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ParseRepository splits "owner/name" into its two non-empty parts.
func ParseRepository(repository string) (owner, name string, err error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepositoryFormat, repository)
	}
	return parts[0], parts[1], nil
}

// AppendUnique appends labels to an ordered set, skipping empty values and
// values already present (case-insensitive).
func AppendUnique(set []string, labels ...string) []string {
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		seen := false
		for _, existing := range set {
			if strings.EqualFold(existing, label) {
				seen = true
				break
			}
		}
		if !seen {
			set = append(set, label)
		}
	}
	return set
}
