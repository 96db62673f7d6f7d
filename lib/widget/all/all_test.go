package all

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/TecharoHQ/captchamodal/lib/widget/widgettest"
)

func TestProvidersRegistered(t *testing.T) {
	want := []string{
		"Aliyun Captcha",
		"Cloudflare Turnstile",
		"GEETEST",
		"hCaptcha",
		"reCAPTCHA",
		"reCAPTCHA v2",
		"reCAPTCHA v3",
	}

	got := widget.Methods()
	for _, kind := range want {
		if !slices.Contains(got, kind) {
			t.Errorf("provider %q is not registered, have %v", kind, got)
		}
	}
}

func TestEveryProvider(t *testing.T) {
	for _, kind := range widget.Methods() {
		t.Run(kind, func(t *testing.T) {
			impl, ok := widget.Get(challenge.Type(kind))
			if !ok {
				t.Fatal("registered provider not found")
			}

			cfg := challenge.WidgetConfig{
				CaptchaType: challenge.Type(kind),
				SiteKey:     "site-key",
				Scene:       "scene",
				AppKey:      "app-key",
			}

			doc, raw := widgettest.Render(t, impl, cfg)

			if widgettest.ByID(doc, "captcha") == nil {
				t.Error("widget has no #captcha container")
			}

			srcs := widgettest.ScriptSources(doc)
			if len(srcs) == 0 || !strings.HasPrefix(srcs[0], "https://") {
				t.Errorf("widget should load its provider script over https, got %v", srcs)
			}

			if !strings.Contains(raw, "captchamodalSubmit") {
				t.Error("widget never calls the submit callback")
			}

			if !strings.Contains(raw, widgettest.Callback.Nonce) {
				t.Error("callback nonce missing")
			}

			cfg.SiteKey = ""
			if _, err := impl.Render(cfg, widgettest.Callback); !errors.Is(err, challenge.ErrMissingField) {
				t.Errorf("wanted error %v without a site key, got: %v", challenge.ErrMissingField, err)
			}
		})
	}
}

func TestSiteKeyIsEscaped(t *testing.T) {
	impl, ok := widget.Get("hCaptcha")
	if !ok {
		t.Fatal("hCaptcha not registered")
	}

	_, raw := widgettest.Render(t, impl, challenge.WidgetConfig{
		CaptchaType: "hCaptcha",
		SiteKey:     `"><script>alert(1)</script>`,
	})

	if strings.Contains(raw, "<script>alert(1)") {
		t.Error("site key was not escaped")
	}
}

func TestUnknownProvider(t *testing.T) {
	if _, ok := widget.Get("Mystery Captcha"); ok {
		t.Error("unknown providers should not resolve")
	}
}
