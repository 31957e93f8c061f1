package server

import (
	"net/http"
	"strconv"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

// Resource handlers run behind RequireSession.

func (s *Server) ProjectsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := s.resources.ListProjects(r.Context(), credentialsFromContext(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

// SearchIssuesHandler serves /resource/issues?keyword=&count=.
func (s *Server) SearchIssuesHandler() http.HandlerFunc {
	const op = "server.SearchIssues"
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		count := 0
		if raw := query.Get("count"); raw != "" {
			var err error
			if count, err = strconv.Atoi(raw); err != nil || count < 1 {
				writeError(w, r, apperrors.Validation(op, "count must be a positive integer"))
				return
			}
		}

		issues, err := s.resources.SearchIssues(r.Context(), credentialsFromContext(r.Context()), query.Get("keyword"), count)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, issues)
	}
}

func (s *Server) IssueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issue, err := s.resources.GetIssue(r.Context(), credentialsFromContext(r.Context()), r.PathValue("issueKey"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, issue)
	}
}
