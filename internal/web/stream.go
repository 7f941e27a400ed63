package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/starford/casedeck/internal/checksum"
	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/render"
)

// streamState is what one event stream already sent to its page.
type streamState struct {
	fragments *checksum.Tracker
	filtered  bool
	modalKey  string
}

// Events handles GET /events. Every snapshot from the hub is rendered into
// fragments; only fragments whose markup changed are patched.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	stream := datastar.NewSSE(w, r)

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	st := &streamState{fragments: checksum.NewTracker()}
	s.logger.Debug("event stream opened", slog.String("remote", r.RemoteAddr))

	for {
		select {
		case <-stream.Context().Done():
			s.logger.Debug("event stream closed", slog.String("remote", r.RemoteAddr))
			return
		case <-keepAlive.C:
			_ = stream.PatchSignals([]byte(`{}`))
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := s.patch(stream, st, snap); err != nil {
				s.logger.Debug("event stream write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (s *Server) patch(stream *datastar.ServerSentEventGenerator, st *streamState, snap controller.Snapshot) error {
	for _, name := range render.Fragments {
		html, err := s.renderer.Fragment(name, snap)
		if err != nil {
			s.logger.Error("render fragment failed", slog.String("fragment", name), slog.String("error", err.Error()))
			_ = stream.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			continue
		}
		if !st.fragments.Changed(name, html) {
			continue
		}
		err = stream.PatchElements(html,
			datastar.WithSelector("#"+name),
			datastar.WithMode(datastar.ElementPatchModeOuter))
		if err != nil {
			return err
		}
	}

	// Filter inputs are only pushed back to the page when they were reset,
	// so a debounced search never overwrites text still being typed.
	filtered := !snap.Filters.IsZero()
	if st.filtered && !filtered {
		if err := stream.MarshalAndPatchSignals(filterSignals(snap)); err != nil {
			return err
		}
	}
	st.filtered = filtered

	key := modalKey(snap.Modal)
	if key != st.modalKey {
		st.modalKey = key
		if snap.Modal.Open() {
			if err := stream.MarshalAndPatchSignals(formSignals(snap.Modal.Form)); err != nil {
				return err
			}
		}
	}
	return nil
}

func modalKey(m controller.Modal) string {
	if !m.Open() {
		return ""
	}
	return fmt.Sprintf("%s:%d", m.Mode, m.EditID)
}
