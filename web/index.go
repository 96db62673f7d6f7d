// Package web holds the pages served by the widget host.
package web

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/TecharoHQ/captchamodal"
	"github.com/TecharoHQ/captchamodal/lib/localization"
	"github.com/a-h/templ"
)

var base = template.Must(template.New("base").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 32rem; margin: 4rem auto; padding: 0 1rem; }
#dialog { border: 1px solid #ccc; border-radius: 0.5rem; padding: 1.5rem; }
#captcha { min-height: 80px; margin: 1rem 0; }
.actions { display: flex; gap: 0.5rem; justify-content: flex-end; }
</style>
</head>
<body>
<main id="dialog">
<h1>{{.Title}}</h1>
{{.Body}}
</main>
</body>
</html>
`))

var dialog = template.Must(template.New("dialog").Parse(`<p>{{.Prompt}}</p>
<noscript><p>{{.NoScript}}</p></noscript>
{{.Widget}}
<form class="actions" method="POST">
<input type="hidden" name="nonce" value="{{.Nonce}}">
<button id="cancel" type="submit" formaction="{{.Prefix}}cancel">{{.Cancel}}</button>
<button id="confirm" type="submit" formaction="{{.Prefix}}confirm" disabled>{{.OK}}</button>
</form>
<script>
document.addEventListener("captchamodal:token", function () {
  fetch({{.Prefix}} + "state").then(function (r) { return r.json(); }).then(function (s) {
    document.getElementById("confirm").disabled = !s.canConfirm;
  });
});
</script>
`))

var message = template.Must(template.New("message").Parse(`<p id="message">{{.}}</p>
`))

type page struct {
	Lang  string
	Title string
	Body  template.HTML
}

func execute(tmpl *template.Template, data any, w io.Writer) error {
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("web: can't render %s: %w", tmpl.Name(), err)
	}
	return nil
}

// Base wraps body into the page chrome, titled in the user's language.
func Base(title string, body templ.Component, localizer *localization.SimpleLocalizer) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := body.Render(ctx, &buf); err != nil {
			return err
		}

		return execute(base, page{
			Lang:  localizer.Tag().String(),
			Title: title,
			Body:  template.HTML(buf.String()),
		}, w)
	})
}

// Dialog renders an open delegated challenge: the provider widget between
// the prompt and the cancel and confirm buttons.
func Dialog(widget templ.Component, nonce string, localizer *localization.SimpleLocalizer) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := widget.Render(ctx, &buf); err != nil {
			return err
		}

		return execute(dialog, struct {
			Prompt, NoScript, Cancel, OK, Nonce, Prefix string
			Widget                                     template.HTML
		}{
			Prompt:   localizer.T("widget_prompt"),
			NoScript: localizer.T("javascript_required"),
			Cancel:   localizer.T("cancel"),
			OK:       localizer.T("ok"),
			Nonce:    nonce,
			Prefix:   captchamodal.APIPrefix,
			Widget:   template.HTML(buf.String()),
		}, w)
	})

	return Base(localizer.T("captcha"), body, localizer)
}

// Message renders a page with a single localized line, used once the dialog
// has been resolved or could not be loaded.
func Message(messageID string, localizer *localization.SimpleLocalizer) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return execute(message, localizer.T(messageID), w)
	})

	return Base(localizer.T("captcha"), body, localizer)
}
