package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/pmagent/internal/agent"
	"github.com/hyperjump/pmagent/internal/models"
)

func (s *Server) handlePrioritizeFeatures(w http.ResponseWriter, r *http.Request) {
	var req models.FeatureList
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.prioritize(w, r, req.Features)
}

// handlePrioritizeFeaturesQuery reads repeated features= parameters.
func (s *Server) handlePrioritizeFeaturesQuery(w http.ResponseWriter, r *http.Request) {
	s.prioritize(w, r, r.URL.Query()["features"])
}

func (s *Server) prioritize(w http.ResponseWriter, r *http.Request, features []string) {
	s.logger.Debug("prioritize features request", zap.Int("features", len(features)))
	result, err := s.agents.PrioritizeFeatures(r.Context(), features)
	if err != nil {
		s.fail(w, "prioritize features", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleBacklog serves grooming and task suggestion. With fromQuery the backlog is
// built from aligned ids, titles, and descs parameters.
func (s *Server) handleBacklog(name string, fromQuery bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var list *models.BacklogList
		if fromQuery {
			q := r.URL.Query()
			var err error
			list, err = models.BacklogFromColumns(q["ids"], q["titles"], q["descs"])
			if err != nil {
				s.fail(w, name, err)
				return
			}
		} else {
			list = &models.BacklogList{}
			if err := json.NewDecoder(r.Body).Decode(list); err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		s.logger.Debug("backlog request", zap.String("agent", name), zap.Int("items", len(list.Backlog)))

		var (
			result *models.AgentResult
			err    error
		)
		if name == agent.Grooming {
			result, err = s.agents.GroomBacklog(r.Context(), list.Backlog)
		} else {
			result, err = s.agents.SuggestTasks(r.Context(), list.Backlog)
		}
		if err != nil {
			s.fail(w, name, err)
			return
		}
		s.respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleTeamInsights(w http.ResponseWriter, r *http.Request) {
	var req models.ActivityLog
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.insights(w, r, req.ActivityLog)
}

func (s *Server) handleTeamInsightsQuery(w http.ResponseWriter, r *http.Request) {
	s.insights(w, r, r.URL.Query().Get("activity_log"))
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request, activityLog string) {
	result, err := s.agents.TeamInsights(r.Context(), activityLog)
	if err != nil {
		s.fail(w, "team insights", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
