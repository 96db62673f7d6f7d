// Package lib wires the CAPTCHA dialog together: the rule that decides
// whether to show it, the backend it fetches challenges from and the views
// that present them.
package lib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/TecharoHQ/captchamodal/lib/backend"
	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/config"
	"github.com/TecharoHQ/captchamodal/lib/localization"
	"github.com/TecharoHQ/captchamodal/lib/modal"
	"github.com/TecharoHQ/captchamodal/lib/policy"
	"github.com/TecharoHQ/captchamodal/lib/store"
	"github.com/TecharoHQ/captchamodal/lib/terminal"
	"github.com/TecharoHQ/captchamodal/lib/widgethost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	// widget implementations
	_ "github.com/TecharoHQ/captchamodal/lib/widget/all"
)

var ErrCancelled = errors.New("lib: challenge was cancelled")

var challengesRun = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captchamodal_challenges",
	Help: "The total number of challenge runs, by outcome",
}, []string{"outcome"})

type Options struct {
	Config *config.Config

	// Fetcher overrides the backend client built from Config.Server.
	Fetcher modal.Fetcher

	// Terminal presents Default challenges.
	Terminal *terminal.View

	// Prompt receives the address of the widget page.
	Prompt io.Writer

	Logger *slog.Logger
}

// Outcome is what a successful challenge hands back to the protected action.
type Outcome struct {
	Token     string `json:"token"`
	CaptchaID string `json:"captchaId"`
}

type App struct {
	opts      Options
	store     store.Interface
	evaluator *policy.Evaluator
	fetcher   modal.Fetcher
	lg        *slog.Logger
}

func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("lib: Options.Config is nil")
	}

	cfg := opts.Config
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}

	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}

	st, err := cfg.Store.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("lib: can't build %s store: %w", cfg.Store.Backend, err)
	}

	evaluator, err := policy.NewEvaluator(cfg.Rule, cfg.DynamicExpression, policy.NewAttemptTracker(st, cfg.DynamicExpiry))
	if err != nil {
		return nil, fmt.Errorf("lib: can't set up %s rule: %w", cfg.Rule, err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		base, hc := serverClient(cfg.Server)
		client, err := backend.New(base, hc)
		if err != nil {
			return nil, err
		}
		fetcher = client
	}

	lg.Debug("captchamodal configured",
		"server", cfg.Server,
		"owner", cfg.Owner,
		"application", cfg.Application,
		"rule", cfg.Rule,
		"rule_hash", evaluator.Hash(),
		"store", cfg.Store.Backend,
	)

	return &App{
		opts:      opts,
		store:     st,
		evaluator: evaluator,
		fetcher:   fetcher,
		lg:        lg,
	}, nil
}

func (a *App) subject(user string) policy.Subject {
	return policy.Subject{Owner: a.opts.Config.Owner, Application: a.opts.Config.Application, User: user}
}

// Required reports whether user has to solve a challenge.
func (a *App) Required(ctx context.Context, user string) (bool, error) {
	return a.evaluator.Required(ctx, a.subject(user))
}

// RecordFailure remembers a failed attempt by user for the Dynamic rule and
// returns how many are on record.
func (a *App) RecordFailure(ctx context.Context, user string) (int, error) {
	return a.evaluator.Tracker().RecordFailure(ctx, a.subject(user))
}

// RecordSuccess forgets the failed attempts of user.
func (a *App) RecordSuccess(ctx context.Context, user string) error {
	return a.evaluator.Tracker().Reset(ctx, a.subject(user))
}

type resolution struct {
	outcome Outcome
	ok      bool
}

// Challenge shows the dialog and blocks until it is resolved. It returns
// ErrCancelled when the user or ctx dismissed it.
//
// Delegated challenges are served to the browser on widgets, which is closed
// when Challenge returns. They are cancelled when widgets is nil.
func (a *App) Challenge(ctx context.Context, widgets net.Listener) (Outcome, error) {
	cfg := a.opts.Config
	opened := make(chan modal.Session, 1)
	resolved := make(chan resolution, 1)
	failed := make(chan error, 1)

	var host *widgethost.Server

	ctrl, err := modal.New(modal.Options{
		Owner:             cfg.Owner,
		Name:              cfg.Application,
		IsCurrentProvider: cfg.CurrentProvider,
		Fetcher:           a.fetcher,
		FetchTimeout:      cfg.FetchTimeout,
		Logger:            a.lg,
		OnOK: func(token, captchaID string) {
			select {
			case resolved <- resolution{outcome: Outcome{Token: token, CaptchaID: captchaID}, ok: true}:
			default:
			}
		},
		OnCancel: func() {
			select {
			case resolved <- resolution{}:
			default:
			}
		},
		OnOpen: func(sess modal.Session) {
			if host != nil {
				host.Open(sess)
			}
			opened <- sess
		},
		OnError: func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
	})
	if err != nil {
		return Outcome{}, err
	}

	if widgets != nil {
		host = widgethost.New(ctrl)
	}

	viewCtx, stopViews := context.WithCancel(ctx)
	defer stopViews()

	ctrl.SetVisible(ctx, true)
	defer ctrl.Wait()

	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			ctrl.SetVisible(ctx, false)
		case sess := <-opened:
			a.present(viewCtx, ctrl, host, widgets, sess)
		case res := <-resolved:
			if res.ok {
				challengesRun.WithLabelValues("ok").Inc()
				return res.outcome, nil
			}

			challengesRun.WithLabelValues("cancel").Inc()
			select {
			case err := <-failed:
				return Outcome{}, fmt.Errorf("%w: %w", ErrCancelled, err)
			default:
				return Outcome{}, ErrCancelled
			}
		}
	}
}

// present starts the view for an opened session.
func (a *App) present(ctx context.Context, ctrl *modal.Controller, host *widgethost.Server, widgets net.Listener, sess modal.Session) {
	lg := a.lg.With("session", sess.ID)

	switch sess.Strategy.(type) {
	case *challenge.Default:
		if a.opts.Terminal == nil {
			lg.Error("no terminal to show the challenge on")
			_ = ctrl.Cancel()
			return
		}

		go func() {
			if err := a.opts.Terminal.Run(ctx, ctrl, sess); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("terminal view failed", "err", err)
				_ = ctrl.Cancel()
			}
		}()

	case *challenge.Delegated:
		if host == nil {
			lg.Error("no widget listener to serve the challenge on")
			_ = ctrl.Cancel()
			return
		}

		addr := widgetPageURL(widgets)
		localizer := localization.ForLanguage(a.opts.Config.Language)
		fmt.Fprintf(a.opts.Prompt, "%s\n%s\n", localizer.T("open_browser"), addr)

		go func() {
			if err := host.Serve(ctx, widgets); err != nil {
				lg.Error("widget host failed", "err", err)
				_ = ctrl.Cancel()
			}
		}()
	}
}

// Close releases the store.
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
