// Package hcaptcha renders the hCaptcha checkbox widget.
package hcaptcha

import (
	"html/template"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/a-h/templ"
)

const Type challenge.Type = "hCaptcha"

func init() {
	widget.Register(Type, &Impl{})
}

var page = template.Must(template.New("hcaptcha").Parse(`<script src="https://js.hcaptcha.com/1/api.js" async defer></script>
<div id="captcha" class="h-captcha" data-sitekey="{{.SiteKey}}" data-callback="captchamodalSubmit"></div>
`))

type Impl struct{}

func (i *Impl) Render(cfg challenge.WidgetConfig, cb widget.Callback) (templ.Component, error) {
	if err := widget.RequireSiteKey(cfg); err != nil {
		return nil, err
	}

	return widget.Template(page, cb, cfg), nil
}
