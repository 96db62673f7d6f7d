package challenge_test

import (
	"errors"
	"testing"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/challenge/challengetest"
)

func TestStrategyFor(t *testing.T) {
	for _, tt := range []struct {
		name          string
		desc          *challenge.Descriptor
		err           error
		wantDefault   bool
		wantDelegated bool
	}{
		{
			name: "none",
			desc: challengetest.None(t),
			err:  challenge.ErrPassThrough,
		},
		{
			name:        "default",
			desc:        challengetest.Default(t),
			wantDefault: true,
		},
		{
			name: "default data url",
			desc: &challenge.Descriptor{
				Type:         challenge.TypeDefault,
				CaptchaID:    "c1",
				CaptchaImage: "data:image/png;base64," + challengetest.PNG,
			},
			wantDefault: true,
		},
		{
			name: "default without image",
			desc: &challenge.Descriptor{Type: challenge.TypeDefault, CaptchaID: "c1"},
			err:  challenge.ErrMissingField,
		},
		{
			name: "default with garbage image",
			desc: &challenge.Descriptor{Type: challenge.TypeDefault, CaptchaID: "c1", CaptchaImage: "!!!"},
			err:  challenge.ErrInvalidFormat,
		},
		{
			name:          "recaptcha",
			desc:          challengetest.Delegated(t, "reCAPTCHA"),
			wantDelegated: true,
		},
		{
			name:          "unknown provider is still delegated",
			desc:          challengetest.Delegated(t, "Some Future Captcha"),
			wantDelegated: true,
		},
		{
			name: "empty type",
			desc: &challenge.Descriptor{},
			err:  challenge.ErrMissingField,
		},
		{
			name: "nil descriptor",
			desc: nil,
			err:  challenge.ErrMissingField,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			st, err := challenge.StrategyFor(tt.desc)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted error %v, got: %v", tt.err, err)
			}

			switch st := st.(type) {
			case *challenge.Default:
				if !tt.wantDefault {
					t.Errorf("got unexpected default strategy")
				}
				if len(st.Image) == 0 {
					t.Error("default strategy has no image bytes")
				}
				if st.ID() != tt.desc.CaptchaID {
					t.Errorf("wanted captcha id %q, got: %q", tt.desc.CaptchaID, st.ID())
				}
			case *challenge.Delegated:
				if !tt.wantDelegated {
					t.Errorf("got unexpected delegated strategy")
				}
				if st.Widget.CaptchaType != tt.desc.Type {
					t.Errorf("wanted widget type %q, got: %q", tt.desc.Type, st.Widget.CaptchaType)
				}
				if st.Widget.SiteKey != tt.desc.ClientID {
					t.Errorf("site key was not passed through: %q", st.Widget.SiteKey)
				}
			case nil:
				if tt.wantDefault || tt.wantDelegated {
					t.Error("wanted a strategy, got nil")
				}
			}
		})
	}
}

func TestDefaultCanConfirm(t *testing.T) {
	st := &challenge.Default{CaptchaID: "c1"}

	for _, tt := range []struct {
		token string
		want  bool
	}{
		{token: "", want: false},
		{token: "1234", want: false},
		{token: "12345", want: true},
		{token: "00000", want: true},
		{token: "123456", want: false},
		{token: "12a45", want: false},
		{token: " 12345", want: false},
		{token: "12345\n", want: false},
		{token: "١٢٣٤٥", want: false}, // non-ASCII digits
	} {
		t.Run(tt.token, func(t *testing.T) {
			if got := st.CanConfirm(tt.token); got != tt.want {
				t.Errorf("CanConfirm(%q) = %v, wanted %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestDelegatedCanConfirm(t *testing.T) {
	st := &challenge.Delegated{}

	if st.CanConfirm("") {
		t.Error("empty token enabled confirm")
	}

	if !st.CanConfirm("x") {
		t.Error("non-empty token did not enable confirm")
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := challenge.NewError("select", "nope", challenge.ErrMissingField)

	if !errors.Is(err, challenge.ErrMissingField) {
		t.Errorf("wanted %v to wrap %v", err, challenge.ErrMissingField)
	}

	var cerr *challenge.Error
	if !errors.As(err, &cerr) || cerr.PublicReason != "nope" {
		t.Errorf("could not recover public reason from %v", err)
	}
}
