package modal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/challenge/challengetest"
)

type okCall struct {
	token, captchaID string
}

type recorder struct {
	mu      sync.Mutex
	oks     []okCall
	cancels int
	opened  []Session
	errs    []error
}

func (r *recorder) options(f Fetcher) Options {
	return Options{
		Owner:   "admin",
		Name:    "app-built-in",
		Fetcher: f,
		OnOK: func(token, captchaID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.oks = append(r.oks, okCall{token, captchaID})
		},
		OnCancel: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cancels++
		},
		OnOpen: func(s Session) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.opened = append(r.opened, s)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) counts() (oks, cancels, opened, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.oks), r.cancels, len(r.opened), len(r.errs)
}

// staticFetcher hands out the same descriptor every time and counts calls.
type staticFetcher struct {
	desc  *challenge.Descriptor
	err   error
	calls atomic.Int64
}

func (s *staticFetcher) GetCaptcha(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	d := *s.desc
	return &d, nil
}

func newController(t *testing.T, f Fetcher) (*Controller, *recorder) {
	t.Helper()

	r := &recorder{}
	c, err := New(r.options(f))
	if err != nil {
		t.Fatalf("can't create controller: %v", err)
	}

	return c, r
}

func open(t *testing.T, c *Controller) {
	t.Helper()

	c.SetVisible(t.Context(), true)
	c.Wait()

	if got := c.State(); got != StateAwaitingInput {
		t.Fatalf("wanted state %s, got: %s", StateAwaitingInput, got)
	}
}

func TestNewNeedsFetcher(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("wanted error %v, got: %v", ErrNoFetcher, err)
	}
}

func TestNoneResolvesImmediately(t *testing.T) {
	f := &staticFetcher{desc: challengetest.None(t)}
	c, r := newController(t, f)

	c.SetVisible(t.Context(), true)
	c.Wait()

	if got := c.State(); got != StateResolvedOK {
		t.Errorf("wanted state %s, got: %s", StateResolvedOK, got)
	}

	oks, cancels, opened, _ := r.counts()
	if oks != 1 || cancels != 0 || opened != 0 {
		t.Fatalf("wanted one OK and nothing else, got oks=%d cancels=%d opened=%d", oks, cancels, opened)
	}

	if r.oks[0] != (okCall{}) {
		t.Errorf("wanted empty token and captcha id, got: %+v", r.oks[0])
	}

	if _, ok := c.Session(); ok {
		t.Error("session should not exist after pass-through")
	}
}

func TestDefaultConfirmGate(t *testing.T) {
	for _, cs := range []struct {
		token string
		want  bool
	}{
		{"", false},
		{"1234", false},
		{"123456", false},
		{"12a45", false},
		{" 12345", false},
		{"12345", true},
		{"00000", true},
	} {
		t.Run(cs.token, func(t *testing.T) {
			c, r := newController(t, &staticFetcher{desc: challengetest.Default(t)})
			open(t, c)

			if err := c.SetToken(cs.token); err != nil {
				t.Fatalf("can't set token: %v", err)
			}

			if got := c.CanConfirm(); got != cs.want {
				t.Errorf("CanConfirm(%q) = %v, wanted %v", cs.token, got, cs.want)
			}

			err := c.Confirm()
			switch {
			case cs.want && err != nil:
				t.Errorf("confirm failed: %v", err)
			case !cs.want && !errors.Is(err, challenge.ErrConfirmDisabled):
				t.Errorf("wanted error %v, got: %v", challenge.ErrConfirmDisabled, err)
			}

			oks, cancels, _, _ := r.counts()
			if cs.want && oks != 1 {
				t.Errorf("wanted one OK, got %d", oks)
			}
			if !cs.want && (oks != 0 || c.State() != StateAwaitingInput) {
				t.Errorf("disabled confirm should not resolve, got oks=%d state=%s", oks, c.State())
			}
			if cancels != 0 {
				t.Errorf("wanted no cancel, got %d", cancels)
			}
		})
	}
}

func TestDelegatedConfirmGate(t *testing.T) {
	c, r := newController(t, &staticFetcher{desc: challengetest.Delegated(t, "Cloudflare Turnstile")})
	open(t, c)

	if c.CanConfirm() {
		t.Error("confirm should be disabled before the widget produced a token")
	}

	if err := c.Confirm(); !errors.Is(err, challenge.ErrConfirmDisabled) {
		t.Errorf("wanted error %v, got: %v", challenge.ErrConfirmDisabled, err)
	}

	if err := c.PressEnter(); !errors.Is(err, ErrNoInput) {
		t.Errorf("wanted error %v, got: %v", ErrNoInput, err)
	}

	if err := c.SetToken("0.abcdef"); err != nil {
		t.Fatal(err)
	}

	if !c.CanConfirm() {
		t.Error("confirm should be enabled with any non-empty token")
	}

	if err := c.Confirm(); err != nil {
		t.Fatal(err)
	}

	if len(r.oks) != 1 || r.oks[0] != (okCall{"0.abcdef", ""}) {
		t.Errorf("unexpected OK calls: %+v", r.oks)
	}
}

func TestDefaultConfirmReportsCaptchaID(t *testing.T) {
	desc := challengetest.Default(t)
	desc.CaptchaID = "c1"

	c, r := newController(t, &staticFetcher{desc: desc})
	open(t, c)

	sess, ok := c.Session()
	if !ok {
		t.Fatal("no session while awaiting input")
	}
	if _, isDefault := sess.Strategy.(*challenge.Default); !isDefault {
		t.Fatalf("wanted *challenge.Default strategy, got %T", sess.Strategy)
	}

	if err := c.SetToken("00000"); err != nil {
		t.Fatal(err)
	}

	if err := c.PressEnter(); err != nil {
		t.Fatal(err)
	}

	if err := c.Confirm(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second confirm: wanted error %v, got: %v", ErrNotOpen, err)
	}

	oks, cancels, opened, _ := r.counts()
	if oks != 1 || cancels != 0 || opened != 1 {
		t.Fatalf("wanted oks=1 cancels=0 opened=1, got oks=%d cancels=%d opened=%d", oks, cancels, opened)
	}

	if r.oks[0] != (okCall{"00000", "c1"}) {
		t.Errorf("wanted OK(00000, c1), got: %+v", r.oks[0])
	}
}

func TestHideCancelsOnce(t *testing.T) {
	c, r := newController(t, &staticFetcher{desc: challengetest.Default(t)})
	open(t, c)

	if err := c.SetToken("12345"); err != nil {
		t.Fatal(err)
	}

	c.SetVisible(t.Context(), false)
	c.SetVisible(t.Context(), false)

	if got := c.State(); got != StateHidden {
		t.Errorf("wanted state %s, got: %s", StateHidden, got)
	}

	oks, cancels, _, _ := r.counts()
	if oks != 0 || cancels != 1 {
		t.Errorf("wanted one cancel and no OK, got oks=%d cancels=%d", oks, cancels)
	}

	if err := c.SetToken("12345"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("wanted error %v, got: %v", ErrNotOpen, err)
	}
}

func TestReopenFetchesOncePerEdge(t *testing.T) {
	f := &staticFetcher{desc: challengetest.Default(t)}
	c, r := newController(t, f)

	open(t, c)
	c.SetVisible(t.Context(), true) // no edge
	if err := c.SetToken("54321"); err != nil {
		t.Fatal(err)
	}

	c.SetVisible(t.Context(), false)
	open(t, c)

	if got := f.calls.Load(); got != 2 {
		t.Errorf("wanted 2 fetches, got %d", got)
	}

	sess, ok := c.Session()
	if !ok {
		t.Fatal("no session after reopening")
	}

	if sess.Token != "" {
		t.Errorf("token leaked into the next session: %q", sess.Token)
	}

	if c.CanConfirm() {
		t.Error("confirm should be disabled in a fresh session")
	}

	if len(r.opened) != 2 || r.opened[0].ID == r.opened[1].ID {
		t.Errorf("wanted two distinct sessions, got %+v", r.opened)
	}
}

func TestCancel(t *testing.T) {
	c, r := newController(t, &staticFetcher{desc: challengetest.Default(t)})
	open(t, c)

	if err := c.SetToken("12345"); err != nil {
		t.Fatal(err)
	}

	if err := c.Cancel(); err != nil {
		t.Fatal(err)
	}

	if err := c.Cancel(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("wanted error %v, got: %v", ErrNotOpen, err)
	}

	if got := c.State(); got != StateResolvedCancel {
		t.Errorf("wanted state %s, got: %s", StateResolvedCancel, got)
	}

	oks, cancels, _, _ := r.counts()
	if oks != 0 || cancels != 1 {
		t.Errorf("wanted one cancel, got oks=%d cancels=%d", oks, cancels)
	}
}

func TestFetchErrorResolvesAsCancel(t *testing.T) {
	boom := errors.New("connection refused")

	for _, cs := range []struct {
		name    string
		fetcher Fetcher
		want    error
	}{
		{
			name:    "transport",
			fetcher: &staticFetcher{err: boom},
			want:    boom,
		},
		{
			name:    "bad image",
			fetcher: &staticFetcher{desc: &challenge.Descriptor{Type: challenge.TypeDefault, CaptchaImage: "!!"}},
			want:    challenge.ErrInvalidFormat,
		},
		{
			name:    "empty type",
			fetcher: &staticFetcher{desc: &challenge.Descriptor{}},
			want:    challenge.ErrMissingField,
		},
	} {
		t.Run(cs.name, func(t *testing.T) {
			c, r := newController(t, cs.fetcher)
			c.SetVisible(t.Context(), true)
			c.Wait()

			if got := c.State(); got != StateResolvedCancel {
				t.Errorf("wanted state %s, got: %s", StateResolvedCancel, got)
			}

			oks, cancels, opened, errs := r.counts()
			if oks != 0 || cancels != 1 || opened != 0 || errs != 1 {
				t.Fatalf("wanted one cancel and one error, got oks=%d cancels=%d opened=%d errs=%d", oks, cancels, opened, errs)
			}

			if !errors.Is(r.errs[0], cs.want) {
				t.Errorf("wanted error %v, got: %v", cs.want, r.errs[0])
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, _, _ string, _ bool) (*challenge.Descriptor, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	r := &recorder{}
	opts := r.options(f)
	opts.FetchTimeout = 10 * time.Millisecond

	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}

	c.SetVisible(t.Context(), true)
	c.Wait()

	if len(r.errs) != 1 || !errors.Is(r.errs[0], context.DeadlineExceeded) {
		t.Errorf("wanted deadline exceeded, got: %v", r.errs)
	}

	if r.cancels != 1 {
		t.Errorf("wanted one cancel, got %d", r.cancels)
	}
}

func TestStaleFetchDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64

	f := FetcherFunc(func(ctx context.Context, _, _ string, _ bool) (*challenge.Descriptor, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return challengetest.Default(t), nil
	})

	c, r := newController(t, f)

	c.SetVisible(t.Context(), true)
	c.SetVisible(t.Context(), false)
	close(release)
	c.Wait()

	if got := c.State(); got != StateHidden {
		t.Errorf("wanted state %s, got: %s", StateHidden, got)
	}

	oks, cancels, opened, _ := r.counts()
	if oks != 0 || cancels != 1 || opened != 0 {
		t.Errorf("late result should be ignored, got oks=%d cancels=%d opened=%d", oks, cancels, opened)
	}
}

func TestStateString(t *testing.T) {
	for _, cs := range []struct {
		state State
		want  string
	}{
		{StateHidden, "Hidden"},
		{StateLoading, "Loading"},
		{StateAwaitingInput, "AwaitingInput"},
		{StateResolvedOK, "ResolvedOK"},
		{StateResolvedCancel, "ResolvedCancel"},
		{State(42), "State(42)"},
	} {
		if got := cs.state.String(); got != cs.want {
			t.Errorf("%d.String() = %q, wanted %q", int(cs.state), got, cs.want)
		}
	}

	if !StateAwaitingInput.Open() || StateLoading.Open() {
		t.Error("only AwaitingInput should count as open")
	}
}
