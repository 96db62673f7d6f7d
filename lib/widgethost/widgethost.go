// Package widgethost serves an open delegated challenge to a local browser.
//
// The host renders the provider widget, receives the token the widget
// produces and maps the page's confirm and cancel buttons onto a
// modal.Controller.
package widgethost

import (
	"compress/gzip"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/TecharoHQ/captchamodal"
	"github.com/TecharoHQ/captchamodal/internal"
	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/localization"
	"github.com/TecharoHQ/captchamodal/lib/modal"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/TecharoHQ/captchamodal/web"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

var ErrNoWidget = errors.New("widgethost: no widget registered for challenge type")

// Controller is the part of modal.Controller the host drives.
type Controller interface {
	State() modal.State
	SetToken(token string) error
	CanConfirm() bool
	Confirm() error
	Cancel() error
}

type Server struct {
	ctrl Controller
	mux  *http.ServeMux
	h    http.Handler

	mu       sync.Mutex
	nonce    string
	strategy *challenge.Delegated
}

func New(ctrl Controller) *Server {
	s := &Server{ctrl: ctrl, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /{$}", s.index)
	s.mux.HandleFunc("POST "+captchamodal.APIPrefix+"token", s.token)
	s.mux.HandleFunc("POST "+captchamodal.APIPrefix+"confirm", s.confirm)
	s.mux.HandleFunc("POST "+captchamodal.APIPrefix+"cancel", s.cancel)
	s.mux.Handle("GET "+captchamodal.APIPrefix+"state", internal.NoStoreCache(http.HandlerFunc(s.state)))
	s.h = internal.GzipMiddleware(gzip.BestSpeed, s.mux)

	return s
}

// Open makes sess the one the page renders. Pass it as modal.Options.OnOpen.
// Sessions that are not delegated leave the page without a widget.
func (s *Server) Open(sess modal.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := sess.Strategy.(*challenge.Delegated)
	if !ok {
		s.strategy, s.nonce = nil, ""
		return
	}

	s.strategy = d
	s.nonce = uuid.Must(uuid.NewV7()).String()
}

func (s *Server) current() (*challenge.Delegated, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy, s.nonce
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, pattern := s.mux.Handler(r)
	requests.WithLabelValues(pattern).Inc()
	s.h.ServeHTTP(w, r)
}

// Serve serves the page on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{Handler: s, ErrorLog: internal.GetFilteredHTTPLogger()}

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			slog.Error("cannot shut down widget host", "err", err)
		}
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("widgethost: can't serve: %w", err)
	}

	return nil
}

func (s *Server) resolved(w http.ResponseWriter, r *http.Request, localizer *localization.SimpleLocalizer) {
	switch s.ctrl.State() {
	case modal.StateResolvedOK:
		internal.NoStoreCache(templ.Handler(web.Message("completed", localizer))).ServeHTTP(w, r)
	case modal.StateResolvedCancel, modal.StateHidden:
		internal.NoStoreCache(templ.Handler(web.Message("cancelled", localizer))).ServeHTTP(w, r)
	default:
		w.Header().Set("Refresh", "1")
		internal.NoStoreCache(templ.Handler(web.Message("loading", localizer))).ServeHTTP(w, r)
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	strategy, nonce := s.current()
	if s.ctrl.State() != modal.StateAwaitingInput || strategy == nil {
		s.resolved(w, r, localizer)
		return
	}

	impl, ok := widget.Get(strategy.Widget.CaptchaType)
	if !ok {
		lg.Error("can't render challenge", "err", ErrNoWidget, "type", strategy.Widget.CaptchaType, "known", widget.Methods())
		internal.NoStoreCache(templ.Handler(web.Message("load_failed", localizer), templ.WithStatus(http.StatusInternalServerError))).ServeHTTP(w, r)
		return
	}

	component, err := impl.Render(strategy.Widget, widget.Callback{
		URL:   captchamodal.APIPrefix + "token",
		Nonce: nonce,
	})
	if err != nil {
		lg.Error("can't render challenge", "err", err, "type", strategy.Widget.CaptchaType)
		internal.NoStoreCache(templ.Handler(web.Message("load_failed", localizer), templ.WithStatus(http.StatusInternalServerError))).ServeHTTP(w, r)
		return
	}

	internal.NoStoreCache(templ.Handler(web.Dialog(component, nonce, localizer))).ServeHTTP(w, r)
}

// checkNonce rejects form posts that were not produced by the current page.
func (s *Server) checkNonce(w http.ResponseWriter, r *http.Request) bool {
	_, nonce := s.current()
	got := r.FormValue("nonce")

	if nonce == "" || subtle.ConstantTimeCompare([]byte(nonce), []byte(got)) != 1 {
		internal.GetRequestLogger(r).Debug("rejecting post with stale nonce")
		http.Error(w, "stale page, reload", http.StatusForbidden)
		return false
	}

	return true
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if !s.checkNonce(w, r) {
		return
	}

	if err := s.ctrl.SetToken(r.FormValue("token")); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	if !s.checkNonce(w, r) {
		return
	}

	switch err := s.ctrl.Confirm(); {
	case errors.Is(err, challenge.ErrConfirmDisabled):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.resolved(w, r, localization.GetLocalizer(r))
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if !s.checkNonce(w, r) {
		return
	}

	if err := s.ctrl.Cancel(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	s.resolved(w, r, localization.GetLocalizer(r))
}

type stateResponse struct {
	State      modal.State `json:"state"`
	CanConfirm bool        `json:"canConfirm"`
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(stateResponse{
		State:      s.ctrl.State(),
		CanConfirm: s.ctrl.CanConfirm(),
	}); err != nil {
		internal.GetRequestLogger(r).Debug("can't write state", "err", err)
	}
}
