package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielolaszy/voice2issue/internal/extraction"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/publication"
	"github.com/danielolaszy/voice2issue/internal/workflow"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// issueRequest is the body of POST /api/issues and POST /api/extract.
type issueRequest struct {
	VoiceInput      string `json:"voiceInput"`
	Repository      string `json:"repository"`
	GitHubToken     string `json:"githubToken,omitempty"`
	AnthropicAPIKey string `json:"anthropicApiKey,omitempty"`
	DemoMode        *bool  `json:"demoMode,omitempty"`
}

func (r issueRequest) toWorkflow() workflow.Request {
	return workflow.Request{
		VoiceInput:   r.VoiceInput,
		Repository:   r.Repository,
		TrackerToken: r.GitHubToken,
		ModelAPIKey:  r.AnthropicAPIKey,
		DemoMode:     r.DemoMode,
	}
}

// issueData is the publication result together with the draft it was built from.
type issueData struct {
	models.PublicationResult
	AgentAnalysis *models.IssueDraft `json:"agentAnalysis,omitempty"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type connectionRequest struct {
	GitHubToken string `json:"githubToken"`
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid request body"})
		return
	}

	result, err := s.workflow.Run(r.Context(), req.toWorkflow())
	if err != nil {
		logger.Error("failed to create issue from voice input", "error", err)
		resp := apiResponse{Error: err.Error()}
		if errors.Is(err, publication.ErrTrackerCallFailed) {
			resp.Data = newIssueData(result)
		}
		writeJSON(w, statusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: newIssueData(result)})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid request body"})
		return
	}

	draft, source, err := s.workflow.Extract(r.Context(), req.toWorkflow())
	if err != nil {
		logging.FromContext(r.Context()).Warn("extraction failed", "error", err)
		writeJSON(w, statusFor(err), apiResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]any{
		"agentAnalysis": draft,
		"source":        source,
	}})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Error: "invalid request body"})
			return
		}
	}

	status := s.workflow.TestConnection(r.Context(), req.GitHubToken)
	code := http.StatusOK
	if !status.Success {
		code = http.StatusUnauthorized
	}
	writeJSON(w, code, apiResponse{Success: status.Success, Data: status, Error: status.Error})
}

func (s *Server) handleRepositoryInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.workflow.RepositoryInfo(r.Context(),
		r.URL.Query().Get("repository"),
		r.Header.Get("X-GitHub-Token"))
	if err != nil {
		writeJSON(w, statusFor(err), apiResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: info})
}

func newIssueData(result workflow.Result) issueData {
	data := issueData{PublicationResult: result.Publication}
	if result.Draft.Title != "" {
		draft := result.Draft
		data.AgentAnalysis = &draft
	}
	return data
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extraction.ErrEmptyInput),
		errors.Is(err, publication.ErrInvalidRepositoryFormat):
		return http.StatusBadRequest
	case errors.Is(err, publication.ErrMissingCredential),
		errors.Is(err, workflow.ErrMissingModelCredential):
		return http.StatusUnauthorized
	case errors.Is(err, extraction.ErrExtractionCallFailed),
		errors.Is(err, publication.ErrTrackerCallFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to write response", "error", err)
	}
}
