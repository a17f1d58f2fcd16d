// Package publication realizes issue drafts on an issue tracker: create the
// issue, then try to add an automation request comment.
package publication

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

var (
	// ErrInvalidRepositoryFormat is returned for identifiers other than owner/name.
	ErrInvalidRepositoryFormat = models.ErrInvalidRepositoryFormat

	// ErrMissingCredential is returned when no tracker credential is available
	// outside demo mode.
	ErrMissingCredential = errors.New("tracker credential is missing")

	// ErrTrackerCallFailed wraps a failed create-issue call.
	ErrTrackerCallFailed = errors.New("tracker call failed")

	// ErrCommentCallFailed describes a failed comment call. It is logged and
	// recorded, never returned.
	ErrCommentCallFailed = errors.New("comment call failed")
)

// Outcome classifies a publication for metrics.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
	OutcomeDemo    Outcome = "demo"
)

// Tracker is the issue tracker collaborator.
type Tracker interface {
	CreateIssue(ctx context.Context, owner, repo string, issue models.NewIssue) (models.CreatedIssue, error)
	CreateComment(ctx context.Context, owner, repo string, issueNumber int, body string) error
}

// TrackerFactory builds a tracker client from a credential. It is called once
// per publication, after validation.
type TrackerFactory func(token string) (Tracker, error)

// Recorder receives publication telemetry.
type Recorder interface {
	Publication(outcome string)
}

// Options control label augmentation and the automation comment.
type Options struct {
	LabelPolicy       string
	AutomationComment bool
	AutomationHandle  string
	Assignees         []string
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		LabelPolicy:       config.LabelPolicyPriorityUrgent,
		AutomationComment: true,
		AutomationHandle:  "@claude",
	}
}

// OptionsFromConfig reads publication options from the issue configuration.
func OptionsFromConfig(cfg config.IssueConfig) Options {
	return Options{
		LabelPolicy:       cfg.LabelPolicy,
		AutomationComment: cfg.AutomationComment,
		AutomationHandle:  cfg.AutomationHandle,
		Assignees:         cfg.Assignees,
	}
}

// Publisher publishes drafts.
type Publisher struct {
	factory  TrackerFactory
	opts     Options
	recorder Recorder

	// demoNumber returns a synthetic issue number in [1, 1000].
	demoNumber func() int
}

// NewPublisher creates a Publisher. recorder may be nil.
func NewPublisher(factory TrackerFactory, opts Options, recorder Recorder) *Publisher {
	return &Publisher{
		factory:    factory,
		opts:       opts,
		recorder:   recorder,
		demoNumber: func() int { return rand.Intn(1000) + 1 },
	}
}

// Publish realizes draft on the tracker named by settings.
//
// Validation and credential failures return an error before any network call.
// A failed create-issue call returns a failed result together with an error
// wrapping ErrTrackerCallFailed. A failed comment only clears CommentAdded.
func (p *Publisher) Publish(ctx context.Context, settings models.Settings, draft models.IssueDraft) (models.PublicationResult, error) {
	if IsDemo(settings) {
		return p.demo(), nil
	}
	if err := Validate(settings); err != nil {
		return models.PublicationResult{}, err
	}
	owner, repo, _ := models.ParseRepository(settings.Repository)

	logger := logging.FromContext(ctx).With("repository", settings.Repository)

	tracker, err := p.factory(settings.TrackerToken)
	if err != nil {
		p.record(OutcomeFailed)
		return models.PublicationResult{Error: err.Error()}, fmt.Errorf("%w: %v", ErrTrackerCallFailed, err)
	}

	created, err := tracker.CreateIssue(ctx, owner, repo, models.NewIssue{
		Title:     draft.Title,
		Body:      draft.Body,
		Labels:    Labels(draft, p.opts.LabelPolicy),
		Assignees: p.opts.Assignees,
	})
	if err != nil {
		logger.Error("failed to create issue", "error", err)
		p.record(OutcomeFailed)
		return models.PublicationResult{Error: err.Error()}, fmt.Errorf("%w: %v", ErrTrackerCallFailed, err)
	}

	result := models.PublicationResult{
		IssueNumber: created.Number,
		IssueURL:    created.URL,
		Success:     true,
	}

	if p.opts.AutomationComment {
		body := Comment(p.opts.AutomationHandle, draft)
		if err := tracker.CreateComment(ctx, owner, repo, created.Number, body); err != nil {
			logger.Warn("issue created but automation comment failed",
				"issue_number", created.Number,
				"error", fmt.Errorf("%w: %v", ErrCommentCallFailed, err))
		} else {
			result.CommentAdded = true
		}
	}

	if result.CommentAdded || !p.opts.AutomationComment {
		p.record(OutcomeSuccess)
	} else {
		p.record(OutcomePartial)
	}

	logger.Info("issue published", "issue_number", result.IssueNumber, "comment_added", result.CommentAdded)
	return result, nil
}

// IsDemo reports whether settings select simulated publication: demo mode
// without a tracker credential.
func IsDemo(settings models.Settings) bool {
	return settings.DemoMode && settings.TrackerToken == ""
}

// Validate checks the repository identifier and the tracker credential
// without touching the network.
func Validate(settings models.Settings) error {
	if _, _, err := models.ParseRepository(settings.Repository); err != nil {
		return err
	}
	if settings.TrackerToken == "" {
		return ErrMissingCredential
	}
	return nil
}

func (p *Publisher) demo() models.PublicationResult {
	number := p.demoNumber()
	logging.Info("demo mode: simulating issue creation", "issue_number", number)
	p.record(OutcomeDemo)

	return models.PublicationResult{
		IssueNumber:  number,
		IssueURL:     DemoURL(number),
		Success:      true,
		CommentAdded: true,
		Demo:         true,
	}
}

func (p *Publisher) record(outcome Outcome) {
	if p.recorder != nil {
		p.recorder.Publication(string(outcome))
	}
}

// DemoURL is the placeholder URL of a simulated issue. It never points at a
// real tracker.
func DemoURL(number int) string {
	return fmt.Sprintf("https://example.com/issues/%d", number)
}

// Labels returns the draft labels augmented according to policy.
func Labels(draft models.IssueDraft, policy string) []string {
	labels := models.AppendUnique([]string{}, draft.Labels...)

	switch policy {
	case config.LabelPolicyPriority:
		labels = models.AppendUnique(labels, "priority: "+string(draft.Priority))
	case config.LabelPolicyPriorityUrgent:
		labels = models.AppendUnique(labels, "priority: "+string(draft.Priority))
		if draft.Priority == models.PriorityHigh {
			labels = models.AppendUnique(labels, "urgent")
		}
	}
	return labels
}

// Comment renders the automation request posted on new issues.
func Comment(handle string, draft models.IssueDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Please implement this issue.\n\n", handle)
	b.WriteString("## Requirements\n")
	b.WriteString(draft.Body)
	b.WriteString("\n\n## Implementation guidelines\n")
	b.WriteString("- Follow the conventions and architecture of the project\n")
	b.WriteString("- Write comprehensive tests\n")
	b.WriteString("- Keep types safe and handle errors explicitly\n")
	b.WriteString("- Update documentation where needed\n")
	b.WriteString("- Commit in reviewable increments\n\n")
	b.WriteString("## Technical details\n")
	fmt.Fprintf(&b, "Title: %s\n\n", draft.Title)
	b.WriteString("Split the task into manageable steps and implement it step by step.")
	return b.String()
}
