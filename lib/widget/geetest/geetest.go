// Package geetest renders the GEETEST v4 widget. The token it produces is the
// JSON encoded validate result, which the server redeems as a whole.
package geetest

import (
	"html/template"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/a-h/templ"
)

const Type challenge.Type = "GEETEST"

func init() {
	widget.Register(Type, &Impl{})
}

var page = template.Must(template.New("geetest").Parse(`<script src="https://static.geetest.com/v4/gt4.js"></script>
<div id="captcha"></div>
<script>
initGeetest4({captchaId: {{.SiteKey}}, product: "float"}, function (captcha) {
  captcha.appendTo("#captcha");
  captcha.onSuccess(function () {
    captchamodalSubmit(JSON.stringify(captcha.getValidate()));
  });
});
</script>
`))

type Impl struct{}

func (i *Impl) Render(cfg challenge.WidgetConfig, cb widget.Callback) (templ.Component, error) {
	if err := widget.RequireSiteKey(cfg); err != nil {
		return nil, err
	}

	return widget.Template(page, cb, cfg), nil
}
