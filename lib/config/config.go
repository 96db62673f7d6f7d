package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/TecharoHQ/captchamodal"
	"k8s.io/apimachinery/pkg/util/yaml"
	sigsyaml "sigs.k8s.io/yaml"
)

var (
	ErrUnknownRule           = errors.New("config: unknown captcha rule")
	ErrMissingServer         = errors.New("config: server is not set")
	ErrInvalidServer         = errors.New("config: server is not an absolute http(s) URL or unix socket")
	ErrMissingOwner          = errors.New("config: owner is not set")
	ErrMissingApplication    = errors.New("config: application is not set")
	ErrFetchTimeoutNotParsed = errors.New("config: fetchTimeout does not parse as a Duration, see https://pkg.go.dev/time#ParseDuration")
	ErrDynamicNeedsRule      = errors.New("config: dynamic settings are only used with the Dynamic rule")
)

// Rule is the policy deciding whether a caller shows the CAPTCHA dialog at all.
// The dialog itself never looks at it.
type Rule string

const (
	RuleAlways  Rule = "Always"
	RuleNever   Rule = "Never"
	RuleDynamic Rule = "Dynamic"
)

func (r Rule) Valid() error {
	switch r {
	case RuleAlways, RuleNever, RuleDynamic:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRule, string(r))
	}
}

// Dynamic configures the Dynamic rule.
type Dynamic struct {
	// Expression decides whether a challenge is required. It sees
	// failedAttempts, owner, application and user.
	Expression *ExpressionOrList `json:"expression,omitempty"`

	// Expiry is how long a failed attempt is remembered, e.g. "24h".
	Expiry string `json:"expiry,omitempty"`
}

type fileConfig struct {
	Server          string   `json:"server"`
	Owner           string   `json:"owner"`
	Application     string   `json:"application"`
	CurrentProvider bool     `json:"currentProvider"`
	Rule            Rule     `json:"rule"`
	Dynamic         *Dynamic `json:"dynamic,omitempty"`
	Store           *Store   `json:"store,omitempty"`
	FetchTimeout    string   `json:"fetchTimeout,omitempty"`
	Language        string   `json:"language,omitempty"`
}

func (c *fileConfig) Valid() error {
	var errs []error

	switch {
	case c.Server == "":
		errs = append(errs, ErrMissingServer)
	case strings.HasPrefix(c.Server, "unix:"):
		if c.Server == "unix:" {
			errs = append(errs, fmt.Errorf("%w: %q has no socket path", ErrInvalidServer, c.Server))
		}
	default:
		if u, err := url.Parse(c.Server); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidServer, c.Server))
		}
	}

	if c.Owner == "" {
		errs = append(errs, ErrMissingOwner)
	}

	if c.Application == "" {
		errs = append(errs, ErrMissingApplication)
	}

	if err := c.Rule.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Dynamic != nil {
		if c.Rule != RuleDynamic {
			errs = append(errs, ErrDynamicNeedsRule)
		}

		if c.Dynamic.Expression != nil {
			if err := c.Dynamic.Expression.Valid(); err != nil {
				errs = append(errs, err)
			}
		}

		if c.Dynamic.Expiry != "" {
			if _, err := time.ParseDuration(c.Dynamic.Expiry); err != nil {
				errs = append(errs, fmt.Errorf("dynamic expiry: %w", err))
			}
		}
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.FetchTimeout != "" {
		if _, err := time.ParseDuration(c.FetchTimeout); err != nil {
			errs = append(errs, fmt.Errorf("%w: ParseDuration(%q) returned: %w", ErrFetchTimeoutNotParsed, c.FetchTimeout, err))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Config is the validated configuration of one CAPTCHA-protected application.
type Config struct {
	Server            string
	Owner             string
	Application       string
	CurrentProvider   bool
	Rule              Rule
	DynamicExpression ExpressionOrList
	DynamicExpiry     time.Duration
	Store             Store
	FetchTimeout      time.Duration
	Language          string
}

// Default returns the configuration used when no file is given. Server, owner
// and application still have to come from flags.
func Default() *Config {
	return &Config{
		Rule:              RuleAlways,
		DynamicExpression: ExpressionOrList{Expression: captchamodal.DefaultDynamicExpression},
		DynamicExpiry:     captchamodal.DynamicAttemptExpiry,
		Store:             Store{Backend: "memory"},
		FetchTimeout:      captchamodal.DefaultFetchTimeout,
	}
}

// Load parses a YAML or JSON configuration document.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := &fileConfig{
		Rule: RuleAlways,
	}

	if err := yaml.NewYAMLOrJSONDecoder(fin, 4096).Decode(c); err != nil {
		return nil, fmt.Errorf("can't parse config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating config %s: %w", fname, err)
	}

	result := Default()
	result.Server = strings.TrimSuffix(c.Server, "/")
	result.Owner = c.Owner
	result.Application = c.Application
	result.CurrentProvider = c.CurrentProvider
	result.Rule = c.Rule
	result.Language = c.Language

	if c.Dynamic != nil {
		if c.Dynamic.Expression != nil {
			result.DynamicExpression = *c.Dynamic.Expression
		}

		if c.Dynamic.Expiry != "" {
			result.DynamicExpiry, _ = time.ParseDuration(c.Dynamic.Expiry)
		}
	}

	if c.Store != nil {
		result.Store = *c.Store
	}

	if c.FetchTimeout != "" {
		result.FetchTimeout, _ = time.ParseDuration(c.FetchTimeout)
	}

	return result, nil
}

// Valid checks a Config that was assembled from flags rather than a file.
func (c *Config) Valid() error {
	fc := &fileConfig{
		Server:      c.Server,
		Owner:       c.Owner,
		Application: c.Application,
		Rule:        c.Rule,
		Store:       &c.Store,
	}

	if err := fc.Valid(); err != nil {
		return err
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: %s is not positive", ErrFetchTimeoutNotParsed, c.FetchTimeout)
	}

	return nil
}

// YAML renders the configuration in the file format Load accepts.
func (c *Config) YAML() ([]byte, error) {
	fc := fileConfig{
		Server:          c.Server,
		Owner:           c.Owner,
		Application:     c.Application,
		CurrentProvider: c.CurrentProvider,
		Rule:            c.Rule,
		Store:           &c.Store,
		FetchTimeout:    c.FetchTimeout.String(),
		Language:        c.Language,
	}

	if c.Rule == RuleDynamic {
		expr := c.DynamicExpression
		fc.Dynamic = &Dynamic{
			Expression: &expr,
			Expiry:     c.DynamicExpiry.String(),
		}
	}

	return sigsyaml.Marshal(fc)
}
