// Package inspector exposes resolved class metadata over HTTP for
// debugging and tooling. Every endpoint resolves lazily through the
// manager, so hitting the API is enough to surface registration
// problems without a separate resolve step.
package inspector

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/keystone-orm/keystone/internal/meta"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// Server serves metadata introspection endpoints
type Server struct {
	mgr *meta.MetaDataManager
	mux chi.Router
	log *zap.Logger
}

// NewServer creates an introspection server over a manager
func NewServer(mgr *meta.MetaDataManager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mgr: mgr,
		mux: chi.NewRouter(),
		log: log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Get("/classes", s.handleListClasses)
	s.mux.Get("/classes/{name}", s.handleShowClass)
	s.mux.Get("/classes/{name}/subclasses", s.handleSubclasses)
	s.mux.Post("/classes/{name}/identity", s.handleIssueIdentity)
	s.mux.Get("/graph", s.handleGraph)
	s.mux.Get("/warnings", s.handleWarnings)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.ResolveAll(); err != nil {
		s.renderError(w, err)
		return
	}

	classes := s.mgr.Classes()
	summaries := make([]classSummary, 0, len(classes))
	for _, cmd := range classes {
		summaries = append(summaries, summarize(cmd))
	}
	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"classes": summaries,
		"count":   len(summaries),
	})
}

func (s *Server) handleShowClass(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cmd, err := s.mgr.MetaDataForClass(name)
	if err != nil {
		s.renderError(w, err)
		return
	}

	detail, err := describe(cmd)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSubclasses(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	direct := r.URL.Query().Get("direct") == "true"

	if _, err := s.mgr.MetaDataForClass(name); err != nil {
		s.renderError(w, err)
		return
	}

	subclasses := s.mgr.SubclassesForClass(name, direct)
	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"class":      name,
		"direct":     direct,
		"subclasses": subclasses,
	})
}

func (s *Server) handleIssueIdentity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	id, err := s.mgr.NewObjectID(name)
	if err != nil {
		s.renderError(w, err)
		return
	}
	s.renderJSON(w, http.StatusCreated, map[string]string{
		"class": id.Class,
		"key":   id.Key,
		"id":    id.String(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	ordered, err := s.mgr.OrderedReferencedClasses()
	if err != nil {
		s.renderError(w, err)
		return
	}

	nodes := make([]string, 0, len(ordered))
	var edges []graphEdge
	for _, cmd := range ordered {
		nodes = append(nodes, cmd.FullName)
		for _, ref := range cmd.ReferencedClassNames() {
			edges = append(edges, graphEdge{From: cmd.FullName, To: ref})
		}
	}

	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"order": nodes,
		"edges": edges,
	})
}

func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	warnings := s.mgr.Warnings()
	out := make([]map[string]string, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, map[string]string{
			"code":    warning.Code,
			"class":   warning.Class,
			"message": warning.Message,
		})
	}
	s.renderJSON(w, http.StatusOK, map[string]interface{}{
		"warnings": out,
		"count":    len(out),
	})
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := ""

	var mdErr *merr.MetaDataError
	if errors.As(err, &mdErr) {
		code = mdErr.Code
		switch mdErr.Code {
		case merr.ErrClassNotRegistered:
			status = http.StatusNotFound
		default:
			status = http.StatusUnprocessableEntity
		}
	}

	s.log.Warn("introspection request failed", zap.Error(err))
	s.renderJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": err.Error(),
		},
	})
}
