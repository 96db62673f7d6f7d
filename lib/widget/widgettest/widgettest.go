// Package widgettest renders widget components and inspects the result.
package widgettest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/TecharoHQ/captchamodal/lib/challenge"
	"github.com/TecharoHQ/captchamodal/lib/widget"
	"golang.org/x/net/html"
)

// Callback is the callback every rendered test widget posts to.
var Callback = widget.Callback{URL: "/api/token", Nonce: "test-nonce"}

// Render renders impl for cfg and parses the markup.
func Render(t *testing.T, impl widget.Impl, cfg challenge.WidgetConfig) (*html.Node, string) {
	t.Helper()

	c, err := impl.Render(cfg, Callback)
	if err != nil {
		t.Fatalf("can't render widget: %v", err)
	}

	var buf bytes.Buffer
	if err := c.Render(t.Context(), &buf); err != nil {
		t.Fatalf("can't write widget: %v", err)
	}

	doc, err := html.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("rendered widget is not html: %v", err)
	}

	return doc, buf.String()
}

// Find returns every element for which match returns true, in document order.
func Find(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var result []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			result = append(result, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ScriptSources lists the src of every external script.
func ScriptSources(n *html.Node) []string {
	var result []string
	for _, s := range Find(n, func(n *html.Node) bool { return n.Data == "script" }) {
		if src, ok := Attr(s, "src"); ok {
			result = append(result, src)
		}
	}
	return result
}

// ByID returns the element with the given id or nil.
func ByID(n *html.Node, id string) *html.Node {
	found := Find(n, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}
