package challenge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPassThrough is returned by StrategyFor when the server declared that no
// challenge is required.
var ErrPassThrough = errors.New("challenge: no challenge required")

var defaultCodeRegexp = regexp.MustCompile(`^\d{5}$`)

// Strategy is how an open dialog collects its completion token. The set of
// strategies is closed: it is always either *Default or *Delegated.
type Strategy interface {
	// ID returns the captcha id handed back to the caller on success.
	ID() string

	// CanConfirm reports whether the confirm action is enabled for token.
	CanConfirm(token string) bool

	isStrategy()
}

// Default is the inline image plus numeric code challenge.
type Default struct {
	CaptchaID string
	Image     []byte // PNG bytes
}

func (d *Default) ID() string { return d.CaptchaID }

// CanConfirm reports whether token is exactly five decimal digits.
func (d *Default) CanConfirm(token string) bool {
	return defaultCodeRegexp.MatchString(token)
}

func (*Default) isStrategy() {}

// WidgetConfig is handed verbatim to a third-party widget.
type WidgetConfig struct {
	CaptchaType Type   `json:"captchaType"`
	SubType     string `json:"subType,omitempty"`
	SiteKey     string `json:"siteKey,omitempty"`
	Scene       string `json:"scene,omitempty"`
	AppKey      string `json:"appKey,omitempty"`
}

// Delegated hands rendering to a provider widget that eventually emits an
// opaque token.
type Delegated struct {
	CaptchaID string
	Widget    WidgetConfig
}

func (d *Delegated) ID() string { return d.CaptchaID }

// CanConfirm reports whether the widget has produced any token at all.
func (d *Delegated) CanConfirm(token string) bool {
	return token != ""
}

func (*Delegated) isStrategy() {}

// StrategyFor picks the strategy for a fetched descriptor.
func StrategyFor(d *Descriptor) (Strategy, error) {
	if d == nil {
		return nil, NewError("select", "no challenge configuration", fmt.Errorf("%w: descriptor", ErrMissingField))
	}

	switch {
	case d.Type == TypeNone:
		return nil, ErrPassThrough
	case d.Type == TypeDefault:
		if d.CaptchaImage == "" {
			return nil, NewError("select", "challenge image is missing", fmt.Errorf("%w captchaImage", ErrMissingField))
		}

		img, err := decodeImage(d.CaptchaImage)
		if err != nil {
			return nil, NewError("select", "challenge image is invalid", fmt.Errorf("%w: captchaImage: %w", ErrInvalidFormat, err))
		}

		return &Default{CaptchaID: d.CaptchaID, Image: img}, nil
	case d.Type.Delegated():
		return &Delegated{
			CaptchaID: d.CaptchaID,
			Widget: WidgetConfig{
				CaptchaType: d.Type,
				SubType:     d.SubType,
				SiteKey:     d.ClientID,
				Scene:       d.Scene,
				AppKey:      d.AppKey,
			},
		}, nil
	default:
		return nil, NewError("select", "unknown challenge type", fmt.Errorf("%w type", ErrMissingField))
	}
}

// decodeImage accepts bare base64 as well as a data: URL.
func decodeImage(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		_, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("data URL has no payload")
		}
		s = payload
	}

	return base64.StdEncoding.DecodeString(s)
}
