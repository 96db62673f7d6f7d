// Package recaptcha renders Google reCAPTCHA v2 checkbox and v3 score widgets.
package recaptcha

import (
	"html/template"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/a-h/templ"
)

const (
	TypeV2     challenge.Type = "reCAPTCHA v2"
	TypeV3     challenge.Type = "reCAPTCHA v3"
	TypeLegacy challenge.Type = "reCAPTCHA"
)

func init() {
	widget.Register(TypeLegacy, &Impl{})
	widget.Register(TypeV2, &Impl{})
	widget.Register(TypeV3, &Impl{score: true})
}

var (
	checkbox = template.Must(template.New("recaptcha-v2").Parse(`<script src="https://www.recaptcha.net/recaptcha/api.js" async defer></script>
<div id="captcha" class="g-recaptcha" data-sitekey="{{.SiteKey}}" data-callback="captchamodalSubmit"></div>
`))

	score = template.Must(template.New("recaptcha-v3").Parse(`<script src="https://www.recaptcha.net/recaptcha/api.js?render={{.SiteKey}}"></script>
<div id="captcha"></div>
<script>
grecaptcha.ready(function () {
  grecaptcha.execute({{.SiteKey}}, {action: "login"}).then(captchamodalSubmit);
});
</script>
`))
)

type Impl struct {
	score bool
}

func (i *Impl) Render(cfg challenge.WidgetConfig, cb widget.Callback) (templ.Component, error) {
	if err := widget.RequireSiteKey(cfg); err != nil {
		return nil, err
	}

	if i.score {
		return widget.Template(score, cb, cfg), nil
	}

	return widget.Template(checkbox, cb, cfg), nil
}
