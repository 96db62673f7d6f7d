// Package widget renders third-party CAPTCHA widgets for delegated challenges.
//
// Provider packages register themselves on import; use lib/widget/all to pull
// in every provider.
package widget

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"
	"sync"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/a-h/templ"
)

var (
	registry map[challenge.Type]Impl = map[challenge.Type]Impl{}
	regLock  sync.RWMutex
)

func Register(kind challenge.Type, impl Impl) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[kind] = impl
}

func Get(kind challenge.Type) (Impl, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[kind]
	return result, ok
}

func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for method := range registry {
		result = append(result, string(method))
	}
	sort.Strings(result)
	return result
}

// Callback is where a rendered widget posts the token it produced.
type Callback struct {
	URL   string // form POST target, receives "nonce" and "token"
	Nonce string
}

type Impl interface {
	// Render returns the widget markup for cfg. The component calls
	// captchamodalSubmit(token) once the provider produced a token.
	Render(cfg challenge.WidgetConfig, cb Callback) (templ.Component, error)
}

// RequireSiteKey fails when cfg carries no site key.
func RequireSiteKey(cfg challenge.WidgetConfig) error {
	if cfg.SiteKey == "" {
		return challenge.NewError("render", "widget is not configured", fmt.Errorf("%w: clientId for %s", challenge.ErrMissingField, cfg.CaptchaType))
	}
	return nil
}

// submitScript defines the function every provider calls with its token.
var submitScript = template.Must(template.New("submit").Parse(`<script>
function captchamodalSubmit(token) {
  const body = new URLSearchParams({nonce: {{.Nonce}}, token: token});
  fetch({{.URL}}, {method: "POST", body: body}).then(function () {
    document.dispatchEvent(new CustomEvent("captchamodal:token"));
  });
}
</script>
`))

// Template wraps an html/template into a component. The callback script is
// emitted before the provider markup.
func Template(tmpl *template.Template, cb Callback, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := submitScript.Execute(w, cb); err != nil {
			return fmt.Errorf("widget: can't render callback: %w", err)
		}

		if err := tmpl.Execute(w, data); err != nil {
			return fmt.Errorf("widget: can't render %s: %w", tmpl.Name(), err)
		}

		return nil
	})
}
