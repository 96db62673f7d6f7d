// Package backend talks to the configuration server that hands out challenge
// descriptors.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TecharoHQ/captchamodal"
	"github.com/TecharoHQ/captchamodal/lib/challenge"
)

const maxContentLength = 4 << 20 // 4 MiB, descriptors are a few kilobytes at most

var (
	ErrServer         = errors.New("backend: server refused the request")
	ErrBadStatus      = errors.New("backend: unexpected HTTP status")
	ErrBadContentType = errors.New("backend: unexpected Content-Type")
	ErrTooLarge       = errors.New("backend: response body too large")
	ErrNoServer       = errors.New("backend: server URL is required")
)

// envelope is how the server wraps every API response.
type envelope struct {
	Status string          `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type Client struct {
	server *url.URL
	client *http.Client
}

// New creates a client for the server at base. hc may be nil, in which case a
// client with no overall timeout is used and the caller's context bounds each
// request.
func New(base string, hc *http.Client) (*Client, error) {
	if base == "" {
		return nil, ErrNoServer
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("backend: can't parse server URL %q: %w", base, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: server URL %q must be http or https", base)
	}

	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{server: u, client: hc}, nil
}

// endpoint builds the descriptor URL for an application.
func (c *Client) endpoint(owner, name string, isCurrentProvider bool) string {
	u := *c.server
	u.Path = strings.TrimSuffix(u.Path, "/") + captchamodal.CaptchaEndpoint

	q := url.Values{}
	q.Set("applicationId", owner+"/"+name)
	q.Set("isCurrentProvider", strconv.FormatBool(isCurrentProvider))
	u.RawQuery = q.Encode()

	return u.String()
}

// GetCaptcha fetches the challenge descriptor for the application owner/name.
func (c *Client) GetCaptcha(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error) {
	start := time.Now()
	desc, err := c.getCaptcha(ctx, owner, name, isCurrentProvider)

	outcome := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		outcome = "canceled"
	case errors.Is(err, ErrServer):
		outcome = "refused"
	case err != nil:
		outcome = "error"
	}
	fetchDuration.WithLabelValues(outcome).Observe(float64(time.Since(start).Milliseconds()))

	return desc, err
}

func (c *Client) getCaptcha(ctx context.Context, owner, name string, isCurrentProvider bool) (*challenge.Descriptor, error) {
	urlStr := c.endpoint(owner, name, isCurrentProvider)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create http request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", captchamodal.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: http get failed: %w", err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Debug("backend: error closing response body", "url", urlStr, "err", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed header %q: %w", ErrBadContentType, ct, err)
	}

	if mediaType != "application/json" {
		return nil, fmt.Errorf("%w: %s", ErrBadContentType, mediaType)
	}

	body := http.MaxBytesReader(nil, resp.Body, maxContentLength)

	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, maxContentLength)
		}
		return nil, fmt.Errorf("backend: can't decode response: %w", err)
	}

	if env.Status != "ok" {
		return nil, fmt.Errorf("%w: %s", ErrServer, env.Msg)
	}

	var desc challenge.Descriptor
	if err := json.Unmarshal(env.Data, &desc); err != nil {
		return nil, fmt.Errorf("backend: can't decode descriptor: %w", err)
	}

	return &desc, nil
}
