package lib

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// https://github.com/oauth2-proxy/oauth2-proxy/blob/master/pkg/upstream/http.go#L124
type UnixRoundTripper struct {
	Transport *http.Transport
}

// set bare minimum stuff
func (t UnixRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Host == "" {
		req.Host = "localhost"
	}
	req.URL.Host = req.Host // proxy error: no Host in request URL
	req.URL.Scheme = "http" // make http.Transport happy and avoid an infinite recursion
	return t.Transport.RoundTrip(req)
}

// serverClient returns the base URL and HTTP client used to reach server.
// A server of the form unix:/path/to/socket is reached over that socket.
func serverClient(server string) (string, *http.Client) {
	socket, ok := strings.CutPrefix(server, "unix:")
	if !ok {
		return server, &http.Client{}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		dialer := net.Dialer{}
		return dialer.DialContext(ctx, "unix", socket)
	}

	return "http://localhost", &http.Client{Transport: UnixRoundTripper{Transport: transport}}
}

// widgetPageURL is where the user finds the widget page served on ln. Unix
// sockets have no http URL and are named as unix:/path/to/socket.
func widgetPageURL(ln net.Listener) string {
	addr := ln.Addr()
	switch addr.Network() {
	case "tcp", "tcp4", "tcp6":
		return "http://" + addr.String() + "/"
	default:
		return addr.Network() + ":" + addr.String()
	}
}
