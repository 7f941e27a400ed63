package web

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/models"
)

// pageSignals mirrors the signals bound on the page.
type pageSignals struct {
	Search   string `json:"search"`
	Priority string `json:"priority"`
	Status   string `json:"status"`

	FeatureName    string `json:"featureName"`
	Title          string `json:"title"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expectedResult"`
	FormPriority   string `json:"formPriority"`
	FormStatus     string `json:"formStatus"`
}

func (p pageSignals) draft() models.Draft {
	return models.Draft{
		FeatureName:    p.FeatureName,
		Title:          p.Title,
		Steps:          p.Steps,
		ExpectedResult: p.ExpectedResult,
		Priority:       models.Priority(p.FormPriority),
		Status:         models.Status(p.FormStatus),
	}
}

func filterSignals(snap controller.Snapshot) map[string]any {
	return map[string]any{
		"search":   snap.Filters.Search,
		"priority": string(snap.Filters.Priority),
		"status":   string(snap.Filters.Status),
	}
}

func formSignals(d models.Draft) map[string]any {
	return map[string]any{
		"featureName":    d.FeatureName,
		"title":          d.Title,
		"steps":          d.Steps,
		"expectedResult": d.ExpectedResult,
		"formPriority":   string(d.Priority),
		"formStatus":     string(d.Status),
	}
}

// readSignals decodes the datastar signal payload, answering 400 on
// malformed input.
func (s *Server) readSignals(w http.ResponseWriter, r *http.Request) (pageSignals, bool) {
	var sig pageSignals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		s.logger.Warn("bad signals", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		s.reject(w, http.StatusBadRequest, "invalid signals")
		return pageSignals{}, false
	}
	return sig, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.reject(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func accepted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ReloadAction handles POST /actions/reload.
func (s *Server) ReloadAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.Reload()
	accepted(w)
}

// SearchAction handles POST /actions/search.
func (s *Server) SearchAction(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.readSignals(w, r)
	if !ok {
		return
	}
	s.ctrl.SetSearch(sig.Search)
	accepted(w)
}

// FiltersAction handles POST /actions/filters. Both filters are handed to
// the controller, which ignores the one that did not change.
func (s *Server) FiltersAction(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.readSignals(w, r)
	if !ok {
		return
	}
	p := models.Priority(sig.Priority)
	st := models.Status(sig.Status)
	if p != "" && !slices.Contains(models.Priorities, p) {
		s.reject(w, http.StatusBadRequest, "unknown priority")
		return
	}
	if st != "" && !slices.Contains(models.Statuses, st) {
		s.reject(w, http.StatusBadRequest, "unknown status")
		return
	}

	s.ctrl.SetPriority(p)
	s.ctrl.SetStatus(st)
	accepted(w)
}

// ClearAction handles POST /actions/clear.
func (s *Server) ClearAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ClearFilters()
	accepted(w)
}

// CreateAction handles POST /actions/create.
func (s *Server) CreateAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.OpenCreate()
	accepted(w)
}

// EditAction handles POST /actions/edit/{id}.
func (s *Server) EditAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.ctrl.OpenEdit(id)
	accepted(w)
}

// CloseAction handles POST /actions/close.
func (s *Server) CloseAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.CloseModal()
	accepted(w)
}

// SubmitAction handles POST /actions/submit. Validation happens in the
// controller and surfaces as a notice.
func (s *Server) SubmitAction(w http.ResponseWriter, r *http.Request) {
	sig, ok := s.readSignals(w, r)
	if !ok {
		return
	}
	s.ctrl.Submit(sig.draft())
	accepted(w)
}

// DeleteAction handles POST /actions/delete/{id}.
func (s *Server) DeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.ctrl.RequestDelete(id)
	accepted(w)
}

// ConfirmDeleteAction handles POST /actions/delete/confirm.
func (s *Server) ConfirmDeleteAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ResolveDelete(true)
	accepted(w)
}

// CancelDeleteAction handles POST /actions/delete/cancel.
func (s *Server) CancelDeleteAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ResolveDelete(false)
	accepted(w)
}

// DismissAction handles POST /actions/notice/dismiss.
func (s *Server) DismissAction(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.DismissNotice()
	accepted(w)
}
