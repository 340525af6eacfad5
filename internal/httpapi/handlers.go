package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/content"
	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/paths"
	"github.com/abhisek/pathwise/internal/recommend"
)

var validate = validator.New()

type courseSummary struct {
	ID          string    `json:"id"`
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
	NodeCount   int       `json:"nodeCount"`
	PathCount   int       `json:"pathCount"`
}

type courseDetail struct {
	courseSummary
	Nodes            []graph.Node         `json:"nodes"`
	Relationships    []graph.Relationship `json:"relationships"`
	TopologicalOrder []string             `json:"topologicalOrder"`
	PredefinedPaths  []paths.LearningPath `json:"predefinedPaths"`
}

type nodeDetail struct {
	Node          graph.Node   `json:"node"`
	Prerequisites []graph.Node `json:"prerequisites"`
	Dependents    []graph.Node `json:"dependents"`
	Related       []relatedRef `json:"related"`
}

type relatedRef struct {
	NodeID   string             `json:"nodeId"`
	Type     graph.RelationType `json:"type"`
	Strength int                `json:"strength"`
	Outgoing bool               `json:"outgoing"`
}

type recommendationResponse struct {
	UserID               string                 `json:"userId"`
	CourseID             string                 `json:"courseId"`
	RecommendedNextNodes []string               `json:"recommendedNextNodes"`
	Nodes                []graph.Node           `json:"nodes"`
	Diagnostics          []recommend.Diagnostic `json:"diagnostics"`
}

type completionRequest struct {
	NodeID string `json:"node_id" validate:"required"`
}

type selectPathRequest struct {
	PathID string `json:"path_id" validate:"required"`
}

func summarize(c *content.Course) courseSummary {
	return courseSummary{
		ID:          c.ID,
		Version:     c.Version,
		LastUpdated: c.LastUpdated,
		NodeCount:   c.Graph.Len(),
		PathCount:   c.Catalog.Len(),
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"courses": s.svc.Courses().Len(),
	})
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	courses := s.svc.Courses().List()
	out := make([]courseSummary, len(courses))
	for i, c := range courses {
		out[i] = summarize(c)
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Courses().Get(chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, courseDetail{
		courseSummary:    summarize(c),
		Nodes:            c.Graph.Nodes(),
		Relationships:    c.Graph.Relationships(),
		TopologicalOrder: c.Graph.TopologicalOrder(),
		PredefinedPaths:  c.Catalog.ListPaths(),
	})
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Courses().Get(chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	n, err := c.Graph.GetNode(nodeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := nodeDetail{
		Node:          n,
		Prerequisites: orEmpty(c.Graph.GetPrerequisites(nodeID)),
		Dependents:    orEmpty(c.Graph.GetDependents(nodeID)),
		Related:       []relatedRef{},
	}
	for _, nb := range c.Graph.GetRelated(nodeID, graph.RelationAppliesTo, graph.RelationRelatesTo) {
		out.Related = append(out.Related, relatedRef{
			NodeID:   nb.Node.ID,
			Type:     nb.Relationship.Type,
			Strength: nb.Strength(),
			Outgoing: nb.Outgoing,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) listPaths(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Courses().Get(chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list := c.Catalog.ListPaths()
	if d := r.URL.Query().Get("difficulty"); d != "" {
		diff := graph.Difficulty(d)
		if !diff.Valid() {
			s.respondBadRequest(w, fmt.Sprintf("unknown difficulty %q", d))
			return
		}
		list = c.Catalog.ByDifficulty(diff)
	}
	if list == nil {
		list = []paths.LearningPath{}
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProgress(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summarize(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if sum.Diagnostics == nil {
		sum.Diagnostics = []recommend.Diagnostic{}
	}
	s.respondJSON(w, http.StatusOK, sum)
}

func (s *Server) resetProgress(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseID")
	if _, err := s.svc.Courses().Get(courseID); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.svc.Reset(r.Context(), chi.URLParam(r, "userID"), courseID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markCompleted(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.svc.MarkCompleted(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"), req.NodeID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) selectPath(w http.ResponseWriter, r *http.Request) {
	var req selectPathRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.svc.SelectPath(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"), req.PathID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) clearPath(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.ClearPath(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "courseID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	userID, courseID := chi.URLParam(r, "userID"), chi.URLParam(r, "courseID")
	_, res, err := s.svc.RecommendNext(r.Context(), userID, courseID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.svc.Courses().Get(courseID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := recommendationResponse{
		UserID:               userID,
		CourseID:             courseID,
		RecommendedNextNodes: res.NodeIDs,
		Nodes:                make([]graph.Node, 0, len(res.NodeIDs)),
		Diagnostics:          res.Diagnostics,
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []recommend.Diagnostic{}
	}
	for _, id := range res.NodeIDs {
		if n, err := c.Graph.GetNode(id); err == nil {
			out.Nodes = append(out.Nodes, n)
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

// decode reads a JSON body into v and validates it. It writes a 400 and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			s.respondBadRequest(w, fmt.Sprintf("%s is %s", verrs[0].Field(), verrs[0].Tag()))
			return false
		}
		s.respondBadRequest(w, err.Error())
		return false
	}
	return true
}

func orEmpty(ns []graph.Node) []graph.Node {
	if ns == nil {
		return []graph.Node{}
	}
	return ns
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
