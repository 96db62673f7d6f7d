// Package modal implements the CAPTCHA dialog controller: it fetches a
// challenge descriptor when the dialog becomes visible, picks a strategy for
// it, gates the confirm action on the user's input and reports the outcome to
// the caller.
//
// The controller does not draw anything. A view (the terminal prompt or the
// widget host page) observes it through Options.OnOpen and drives it with
// SetToken, Confirm and Cancel.
package modal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TecharoHQ/captchamodal"
	"github.com/TecharoHQ/captchamodal/internal"
	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/google/uuid"
)

var (
	ErrNotOpen   = errors.New("modal: dialog is not awaiting input")
	ErrNoInput   = errors.New("modal: the current challenge has no text input")
	ErrNoFetcher = errors.New("modal: Options.Fetcher is nil")
)

// Fetcher loads the challenge descriptor for a dialog session.
type Fetcher interface {
	GetCaptcha(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error)

func (f FetcherFunc) GetCaptcha(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error) {
	return f(ctx, owner, name, isCurrentProvider)
}

type Options struct {
	Owner             string
	Name              string
	IsCurrentProvider bool
	Fetcher           Fetcher

	// OnOK receives the completion token and captcha id. Both are empty when
	// the server required no challenge.
	OnOK func(token, captchaID string)

	// OnCancel is called when the user cancels, the caller hides the dialog
	// or the fetch fails.
	OnCancel func()

	// OnOpen is called once per session when the dialog becomes visible.
	OnOpen func(Session)

	// OnError is called with the reason before a failed fetch resolves the
	// session as cancelled.
	OnError func(error)

	// FetchTimeout bounds the descriptor fetch. Defaults to
	// captchamodal.DefaultFetchTimeout.
	FetchTimeout time.Duration

	Logger *slog.Logger
}

// Session is a snapshot of an open dialog.
type Session struct {
	ID         string
	Descriptor challenge.Descriptor
	Strategy   challenge.Strategy
	Token      string
	OpenedAt   time.Time
}

// CanConfirm reports whether the confirm action is enabled.
func (s Session) CanConfirm() bool {
	return s.Strategy != nil && s.Strategy.CanConfirm(s.Token)
}

// Controller owns the state of one dialog. It is safe for concurrent use; all
// transitions are serialized and callbacks run without the lock held.
type Controller struct {
	opts Options
	lg   *slog.Logger

	mu         sync.Mutex
	visible    bool
	state      State
	session    *Session // set only while Loading or AwaitingInput
	generation uint64
	stopFetch  context.CancelFunc

	inflight sync.WaitGroup
}

func New(opts Options) (*Controller, error) {
	if opts.Fetcher == nil {
		return nil, ErrNoFetcher
	}

	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = captchamodal.DefaultFetchTimeout
	}

	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	return &Controller{
		opts:  opts,
		lg:    lg,
		state: StateHidden,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the current session. ok is false when no
// session is loading or open.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}

	return *c.session, true
}

// Wait blocks until every descriptor fetch started so far has finished and
// its result has been applied or discarded.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// SetVisible reacts to the caller showing or hiding the dialog. Only edges
// matter: setting the same value twice does nothing.
//
// Showing starts a new session and one descriptor fetch bounded by ctx and
// the fetch timeout. Hiding ends whatever session exists, abandons an
// in-flight fetch, clears the token and calls OnCancel.
func (c *Controller) SetVisible(ctx context.Context, visible bool) {
	c.mu.Lock()
	if visible == c.visible {
		c.mu.Unlock()
		return
	}
	c.visible = visible

	if !visible {
		c.endSessionLocked()
		prev := c.state
		c.state = StateHidden
		c.mu.Unlock()

		c.lg.Debug("dialog hidden", "owner", c.opts.Owner, "application", c.opts.Name, "from", prev.String())
		sessionsResolved.WithLabelValues("hidden").Inc()
		c.cancel()
		return
	}

	c.endSessionLocked()
	c.generation++
	gen := c.generation

	sess := &Session{ID: uuid.Must(uuid.NewV7()).String()}
	c.session = sess
	c.state = StateLoading

	fctx, stop := context.WithTimeout(ctx, c.opts.FetchTimeout)
	c.stopFetch = stop
	c.inflight.Add(1)
	c.mu.Unlock()

	lg := internal.SessionLogger(c.lg, c.opts.Owner, c.opts.Name, sess.ID)
	lg.Debug("loading challenge", "current_provider", c.opts.IsCurrentProvider)

	go c.fetch(fctx, stop, gen, lg)
}

// endSessionLocked drops the session and invalidates any in-flight fetch.
func (c *Controller) endSessionLocked() {
	if c.stopFetch != nil {
		c.stopFetch()
		c.stopFetch = nil
	}

	c.generation++
	c.session = nil
}

func (c *Controller) fetch(ctx context.Context, stop context.CancelFunc, gen uint64, lg *slog.Logger) {
	defer c.inflight.Done()
	defer stop()

	start := time.Now()
	desc, err := c.opts.Fetcher.GetCaptcha(ctx, c.opts.Owner, c.opts.Name, c.opts.IsCurrentProvider)

	var st challenge.Strategy
	if err == nil {
		st, err = challenge.StrategyFor(desc)
	}

	c.mu.Lock()
	if gen != c.generation || c.state != StateLoading {
		c.mu.Unlock()
		staleFetches.Inc()
		lg.Debug("discarding challenge that arrived after its session ended", "err", err)
		return
	}

	switch {
	case errors.Is(err, challenge.ErrPassThrough):
		c.session = nil
		c.stopFetch = nil
		c.state = StateResolvedOK
		c.mu.Unlock()

		lg.Debug("server requires no challenge, passing through")
		sessionsResolved.WithLabelValues("pass").Inc()
		if c.opts.OnOK != nil {
			c.opts.OnOK("", "")
		}

	case err != nil:
		c.session = nil
		c.stopFetch = nil
		c.state = StateResolvedCancel
		c.mu.Unlock()

		lg.Error("can't load challenge", "err", err, "elapsed", time.Since(start))
		sessionsResolved.WithLabelValues("error").Inc()
		if c.opts.OnError != nil {
			c.opts.OnError(fmt.Errorf("modal: loading challenge: %w", err))
		}
		c.cancel()

	default:
		c.session.Descriptor = *desc
		c.session.Strategy = st
		c.session.OpenedAt = time.Now()
		c.stopFetch = nil
		c.state = StateAwaitingInput
		snapshot := *c.session
		c.mu.Unlock()

		lg.Info("dialog opened", "type", string(desc.Type), "captcha_id", desc.CaptchaID, "elapsed", time.Since(start))
		sessionsOpened.WithLabelValues(string(desc.Type)).Inc()
		if c.opts.OnOpen != nil {
			c.opts.OnOpen(snapshot)
		}
	}
}

// SetToken replaces the user's proof: the typed code for Default challenges
// or the token a delegated widget produced.
func (c *Controller) SetToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingInput {
		return fmt.Errorf("%w: state is %s", ErrNotOpen, c.state)
	}

	c.session.Token = token
	return nil
}

// CanConfirm reports whether the confirm action is currently enabled.
func (c *Controller) CanConfirm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == StateAwaitingInput && c.session.CanConfirm()
}

// Confirm resolves the session with the current token. Nothing is verified
// locally; the token is redeemed by whoever receives it.
func (c *Controller) Confirm() error {
	c.mu.Lock()
	if c.state != StateAwaitingInput {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotOpen, state)
	}

	sess := *c.session
	if !sess.CanConfirm() {
		c.mu.Unlock()
		return challenge.ErrConfirmDisabled
	}

	c.session = nil
	c.state = StateResolvedOK
	c.mu.Unlock()

	kind := string(sess.Descriptor.Type)
	challenge.TimeTaken.WithLabelValues(kind).Observe(float64(time.Since(sess.OpenedAt).Milliseconds()))
	sessionsResolved.WithLabelValues("ok").Inc()
	internal.SessionLogger(c.lg, c.opts.Owner, c.opts.Name, sess.ID).Debug("dialog confirmed", "type", kind)

	if c.opts.OnOK != nil {
		c.opts.OnOK(sess.Token, sess.Strategy.ID())
	}

	return nil
}

// PressEnter submits the text input of a Default challenge. It is gated the
// same way the confirm button is.
func (c *Controller) PressEnter() error {
	c.mu.Lock()
	if c.state != StateAwaitingInput {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotOpen, state)
	}

	_, ok := c.session.Strategy.(*challenge.Default)
	c.mu.Unlock()

	if !ok {
		return ErrNoInput
	}

	return c.Confirm()
}

// Cancel dismisses an open dialog.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state != StateAwaitingInput {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotOpen, state)
	}

	id := c.session.ID
	c.session = nil
	c.state = StateResolvedCancel
	c.mu.Unlock()

	sessionsResolved.WithLabelValues("cancel").Inc()
	internal.SessionLogger(c.lg, c.opts.Owner, c.opts.Name, id).Debug("dialog cancelled")
	c.cancel()

	return nil
}

func (c *Controller) cancel() {
	if c.opts.OnCancel != nil {
		c.opts.OnCancel()
	}
}
