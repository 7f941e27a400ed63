// Package web serves the browser view: a server-rendered page whose
// fragments are patched live over a datastar event stream, plus the action
// endpoints the page posts to.
package web

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/models"
	"github.com/starford/casedeck/internal/render"
	"github.com/starford/casedeck/internal/sse"
)

// Controller is the set of controller operations the page can trigger.
type Controller interface {
	Snapshot() controller.Snapshot
	Reload()
	SetSearch(text string)
	SetPriority(p models.Priority)
	SetStatus(s models.Status)
	ClearFilters()
	OpenCreate()
	OpenEdit(id int64)
	CloseModal()
	Submit(form models.Draft)
	RequestDelete(id int64)
	ResolveDelete(accept bool)
	DismissNotice()
}

// Pinger reports backend reachability for the readiness probe.
type Pinger interface {
	Health(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	DatastarURL string
	// KeepAlive is the idle interval between stream heartbeats.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Server holds the browser view handlers.
type Server struct {
	ctrl     Controller
	hub      *sse.Hub
	renderer *render.Renderer
	pinger   Pinger
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a Server. pinger may be nil, in which case readiness
// always succeeds.
func NewServer(ctrl Controller, hub *sse.Hub, renderer *render.Renderer, pinger Pinger, opts Options) *Server {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 25 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		ctrl:     ctrl,
		hub:      hub,
		renderer: renderer,
		pinger:   pinger,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Routes mounts every browser view route on a new router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.Index)
	r.Get("/static/app.css", s.Stylesheet)
	r.Get("/health/live", s.Live)
	r.Get("/health/ready", s.Ready)
	r.Get("/events", s.Events)

	r.Route("/actions", func(r chi.Router) {
		r.Post("/reload", s.ReloadAction)
		r.Post("/search", s.SearchAction)
		r.Post("/filters", s.FiltersAction)
		r.Post("/clear", s.ClearAction)
		r.Post("/create", s.CreateAction)
		r.Post("/edit/{id}", s.EditAction)
		r.Post("/close", s.CloseAction)
		r.Post("/submit", s.SubmitAction)
		r.Post("/delete/confirm", s.ConfirmDeleteAction)
		r.Post("/delete/cancel", s.CancelDeleteAction)
		r.Post("/delete/{id}", s.DeleteAction)
		r.Post("/notice/dismiss", s.DismissAction)
	})

	return r
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, _ *http.Request) {
	var b bytes.Buffer
	err := s.renderer.Page(&b, render.PageData{
		DatastarURL: s.opts.DatastarURL,
		Snapshot:    s.ctrl.Snapshot(),
	})
	if err != nil {
		s.logger.Error("render page failed", slog.String("error", err.Error()))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b.Bytes())
}

// Stylesheet handles GET /static/app.css.
func (s *Server) Stylesheet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.renderer.CSS())
}

// Live handles GET /health/live.
func (s *Server) Live(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready by pinging the backend.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.pinger.Health(ctx); err != nil {
			s.logger.Warn("backend not ready", slog.String("error", err.Error()))
			s.reject(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
	}
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}
