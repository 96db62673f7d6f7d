// Package turnstile renders the Cloudflare Turnstile widget.
package turnstile

import (
	"html/template"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/a-h/templ"
)

const Type challenge.Type = "Cloudflare Turnstile"

func init() {
	widget.Register(Type, &Impl{})
}

var page = template.Must(template.New("turnstile").Parse(`<script src="https://challenges.cloudflare.com/turnstile/v0/api.js" async defer></script>
<div id="captcha" class="cf-turnstile" data-sitekey="{{.SiteKey}}" data-callback="captchamodalSubmit"></div>
`))

type Impl struct{}

func (i *Impl) Render(cfg challenge.WidgetConfig, cb widget.Callback) (templ.Component, error) {
	if err := widget.RequireSiteKey(cfg); err != nil {
		return nil, err
	}

	return widget.Template(page, cb, cfg), nil
}
