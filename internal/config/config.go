// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Tracker names accepted by the TRACKER setting.
const (
	TrackerGitHub = "github"
	TrackerJira   = "jira"
)

// Label policies accepted by the LABEL_POLICY setting.
const (
	LabelPolicyNone           = "none"
	LabelPolicyPriority       = "priority"
	LabelPolicyPriorityUrgent = "priority-urgent"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Tracker   string
	DemoMode  bool
	GitHub    GitHubConfig
	Jira      JiraConfig
	Anthropic AnthropicConfig
	Issue     IssueConfig
	Speech    SpeechConfig
	HTTP      HTTPConfig
	Log       LogConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token      string
	Domain     string
	Repository string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	BaseURL  string
	Username string
	Token    string
}

// AnthropicConfig holds the language model settings.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// IssueConfig controls how drafts become tracker issues.
type IssueConfig struct {
	LabelPolicy       string
	AutomationComment bool
	AutomationHandle  string
	Assignees         []string
	FallbackVoiceTag  bool
}

// SpeechConfig controls the transcript session.
type SpeechConfig struct {
	Language          string
	SampleRate        int
	RestartDelay      time.Duration
	ErrorRestartDelay time.Duration
}

// HTTPConfig holds the listen address of the serve command.
type HTTPConfig struct {
	Addr string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from a .env file (if present) and environment variables.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load initializes configuration from environment variables and, when path is
// not empty, from a config file (yaml, toml or json). Environment variables win
// over file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{
		Tracker:  strings.ToLower(v.GetString("tracker")),
		DemoMode: v.GetBool("demo_mode"),
		GitHub: GitHubConfig{
			Token:      v.GetString("github.token"),
			Domain:     v.GetString("github.domain"),
			Repository: v.GetString("github.repository"),
		},
		Jira: JiraConfig{
			BaseURL:  v.GetString("jira.url"),
			Username: v.GetString("jira.username"),
			Token:    v.GetString("jira.token"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    v.GetString("anthropic.api_key"),
			Model:     v.GetString("anthropic.model"),
			BaseURL:   v.GetString("anthropic.base_url"),
			MaxTokens: v.GetInt("anthropic.max_tokens"),
		},
		Issue: IssueConfig{
			LabelPolicy:       strings.ToLower(v.GetString("issue.label_policy")),
			AutomationComment: v.GetBool("issue.automation_comment"),
			AutomationHandle:  v.GetString("issue.automation_handle"),
			Assignees:         splitList(v.GetString("issue.assignees")),
			FallbackVoiceTag:  v.GetBool("issue.fallback_voice_label"),
		},
		Speech: SpeechConfig{
			Language:          v.GetString("speech.language"),
			SampleRate:        v.GetInt("speech.sample_rate"),
			RestartDelay:      v.GetDuration("speech.restart_delay"),
			ErrorRestartDelay: v.GetDuration("speech.error_restart_delay"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("http.addr"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if config.GitHub.Domain == "" {
		config.GitHub.Domain = "github.com"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker", TrackerGitHub)
	v.SetDefault("demo_mode", false)
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com/")
	v.SetDefault("anthropic.max_tokens", 1000)
	v.SetDefault("issue.label_policy", LabelPolicyPriorityUrgent)
	v.SetDefault("issue.automation_comment", true)
	v.SetDefault("issue.automation_handle", "@claude")
	v.SetDefault("issue.fallback_voice_label", true)
	v.SetDefault("speech.language", "ja-JP")
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("speech.restart_delay", 100*time.Millisecond)
	v.SetDefault("speech.error_restart_delay", time.Second)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func bindEnv(v *viper.Viper) {
	// Map specific environment variables
	v.BindEnv("tracker", "TRACKER")
	v.BindEnv("demo_mode", "DEMO_MODE")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("github.repository", "GITHUB_REPOSITORY")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "ANTHROPIC_MODEL")
	v.BindEnv("anthropic.base_url", "ANTHROPIC_BASE_URL")
	v.BindEnv("anthropic.max_tokens", "ANTHROPIC_MAX_TOKENS")
	v.BindEnv("issue.label_policy", "LABEL_POLICY")
	v.BindEnv("issue.automation_comment", "AUTOMATION_COMMENT")
	v.BindEnv("issue.automation_handle", "AUTOMATION_HANDLE")
	v.BindEnv("issue.assignees", "ISSUE_ASSIGNEES")
	v.BindEnv("issue.fallback_voice_label", "FALLBACK_VOICE_LABEL")
	v.BindEnv("speech.language", "SPEECH_LANGUAGE")
	v.BindEnv("speech.sample_rate", "SPEECH_SAMPLE_RATE")
	v.BindEnv("speech.restart_delay", "SPEECH_RESTART_DELAY")
	v.BindEnv("speech.error_restart_delay", "SPEECH_ERROR_RESTART_DELAY")
	v.BindEnv("http.addr", "HTTP_ADDR")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
}

// Validate rejects settings the application cannot act on. Credentials are
// not required here: their absence is handled per invocation (demo mode).
func (c *Config) Validate() error {
	switch c.Tracker {
	case TrackerGitHub:
	case TrackerJira:
		if err := ValidateJiraConfig(c); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported tracker %q, expected %q or %q", c.Tracker, TrackerGitHub, TrackerJira)
	}

	switch c.Issue.LabelPolicy {
	case LabelPolicyNone, LabelPolicyPriority, LabelPolicyPriorityUrgent:
	default:
		return fmt.Errorf("unsupported label policy %q", c.Issue.LabelPolicy)
	}

	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be positive, got %d", c.Anthropic.MaxTokens)
	}

	if c.Speech.RestartDelay < 0 || c.Speech.ErrorRestartDelay < 0 {
		return fmt.Errorf("speech restart delays must not be negative")
	}

	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.BaseURL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
