// Package aliyun renders the Alibaba Cloud captcha widget.
package aliyun

import (
	"fmt"
	"html/template"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"github.com/a-h/templ"
)

const Type challenge.Type = "Aliyun Captcha"

func init() {
	widget.Register(Type, &Impl{})
}

var page = template.Must(template.New("aliyun").Parse(`<script>
window.AliyunCaptchaConfig = {region: "cn", prefix: {{.AppKey}}};
</script>
<script src="https://o.alicdn.com/captcha-frontend/aliyunCaptcha/AliyunCaptcha.js"></script>
<div id="captcha"></div>
<button id="captcha-button" type="button" data-subtype="{{.SubType}}">OK</button>
<script>
initAliyunCaptcha({
  SceneId: {{.Scene}},
  mode: "embed",
  element: "#captcha",
  button: "#captcha-button",
  success: captchamodalSubmit,
});
</script>
`))

type Impl struct{}

func (i *Impl) Render(cfg challenge.WidgetConfig, cb widget.Callback) (templ.Component, error) {
	if err := widget.RequireSiteKey(cfg); err != nil {
		return nil, err
	}

	for field, val := range map[string]string{"scene": cfg.Scene, "appKey": cfg.AppKey} {
		if val == "" {
			return nil, challenge.NewError("render", "widget is not configured", fmt.Errorf("%w: %s for %s", challenge.ErrMissingField, field, cfg.CaptchaType))
		}
	}

	return widget.Template(page, cb, cfg), nil
}
