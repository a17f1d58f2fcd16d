package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGitHubConfig(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		token  string
	}{
		{
			name:   "Explicit github.com",
			domain: "github.com",
			token:  "test-token",
		},
		{
			name:   "Custom GitHub domain",
			domain: "github.example.com",
			token:  "test-token",
		},
		{
			name:   "Empty domain should default to github.com",
			domain: "",
			token:  "test-token",
		},
		{
			name:   "Missing token is allowed for demo mode",
			domain: "github.com",
			token:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_DOMAIN", tt.domain)
			t.Setenv("GITHUB_TOKEN", tt.token)

			config, err := LoadConfig()
			require.NoError(t, err)
			require.NotNil(t, config)

			if tt.domain == "" {
				assert.Equal(t, "github.com", config.GitHub.Domain)
			} else {
				assert.Equal(t, tt.domain, config.GitHub.Domain)
			}
			assert.Equal(t, tt.token, config.GitHub.Token)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, TrackerGitHub, config.Tracker)
	assert.False(t, config.DemoMode)
	assert.Equal(t, "claude-3-5-sonnet-20241022", config.Anthropic.Model)
	assert.Equal(t, 1000, config.Anthropic.MaxTokens)
	assert.Equal(t, LabelPolicyPriorityUrgent, config.Issue.LabelPolicy)
	assert.True(t, config.Issue.AutomationComment)
	assert.Equal(t, "@claude", config.Issue.AutomationHandle)
	assert.Empty(t, config.Issue.Assignees)
	assert.Equal(t, "ja-JP", config.Speech.Language)
	assert.Equal(t, 100*time.Millisecond, config.Speech.RestartDelay)
	assert.Equal(t, time.Second, config.Speech.ErrorRestartDelay)
	assert.Equal(t, ":8080", config.HTTP.Addr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("LABEL_POLICY", "priority")
	t.Setenv("ISSUE_ASSIGNEES", "alice, bob,,")
	t.Setenv("SPEECH_RESTART_DELAY", "250ms")
	t.Setenv("ANTHROPIC_MAX_TOKENS", "512")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, config.DemoMode)
	assert.Equal(t, LabelPolicyPriority, config.Issue.LabelPolicy)
	assert.Equal(t, []string{"alice", "bob"}, config.Issue.Assignees)
	assert.Equal(t, 250*time.Millisecond, config.Speech.RestartDelay)
	assert.Equal(t, 512, config.Anthropic.MaxTokens)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice2issue.yaml")
	content := []byte(`
github:
  repository: acme/widgets
issue:
  automation_handle: "@bot"
speech:
  language: en-US
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("SPEECH_LANGUAGE", "de-DE")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets", config.GitHub.Repository)
	assert.Equal(t, "@bot", config.Issue.AutomationHandle)
	assert.Equal(t, "de-DE", config.Speech.Language, "environment overrides the file")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Unknown tracker", key: "TRACKER", val: "trello"},
		{name: "Unknown label policy", key: "LABEL_POLICY", val: "everything"},
		{name: "Zero max tokens", key: "ANTHROPIC_MAX_TOKENS", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			config, err := LoadConfig()
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}

func TestValidateJiraConfig(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		username string
		wantErr  bool
	}{
		{
			name:     "All fields present",
			baseURL:  "https://jira.example.com",
			username: "test-user",
			wantErr:  false,
		},
		{
			name:     "Missing base URL",
			baseURL:  "",
			username: "test-user",
			wantErr:  true,
		},
		{
			name:     "Missing username",
			baseURL:  "https://jira.example.com",
			username: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				Jira: JiraConfig{
					BaseURL:  tt.baseURL,
					Username: tt.username,
				},
			}

			err := ValidateJiraConfig(config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJiraTrackerRequiresJiraConfig(t *testing.T) {
	t.Setenv("TRACKER", "jira")
	t.Setenv("JIRA_URL", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "JIRA_URL")
}
