package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/captchamodal/data"
)

func TestRuleValid(t *testing.T) {
	for _, tt := range []struct {
		rule Rule
		err  error
	}{
		{rule: RuleAlways},
		{rule: RuleNever},
		{rule: RuleDynamic},
		{rule: "", err: ErrUnknownRule},
		{rule: "always", err: ErrUnknownRule},
	} {
		t.Run(string(tt.rule), func(t *testing.T) {
			if err := tt.rule.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("wanted error %v, got: %v", tt.err, err)
			}
		})
	}
}

func loadFile(t *testing.T, fname string) (*Config, error) {
	t.Helper()

	fin, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	return Load(fin, fname)
}

func TestGoodConfigs(t *testing.T) {
	finfos, err := os.ReadDir("testdata/good")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := loadFile(t, filepath.Join("testdata", "good", st.Name())); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestBadConfigs(t *testing.T) {
	finfos, err := os.ReadDir("testdata/bad")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := loadFile(t, filepath.Join("testdata", "bad", st.Name())); err == nil {
				t.Fatal("config loaded without error")
			} else {
				t.Log(err)
			}
		})
	}
}

func TestLoadValues(t *testing.T) {
	c, err := loadFile(t, "testdata/good/dynamic.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if c.Rule != RuleDynamic {
		t.Errorf("wanted rule %s, got: %s", RuleDynamic, c.Rule)
	}

	if len(c.DynamicExpression.Any) != 2 {
		t.Errorf("wanted two any clauses, got: %v", c.DynamicExpression.Any)
	}

	if c.DynamicExpiry != time.Hour {
		t.Errorf("wanted dynamic expiry of 1h, got: %s", c.DynamicExpiry)
	}

	if c.Store.Backend != "bbolt" {
		t.Errorf("wanted bbolt store, got: %q", c.Store.Backend)
	}

	if c.FetchTimeout != 30*time.Second {
		t.Errorf("wanted default fetch timeout, got: %s", c.FetchTimeout)
	}

	j, err := loadFile(t, "testdata/good/json.json")
	if err != nil {
		t.Fatal(err)
	}

	if !j.CurrentProvider || j.Rule != RuleNever || j.FetchTimeout != 5*time.Second || j.Language != "fr" {
		t.Errorf("json config loaded wrong values: %+v", j)
	}
}

func TestEmbeddedDefault(t *testing.T) {
	fin, err := data.Config.Open("captchamodal.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	c, err := Load(fin, "(data)/captchamodal.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Valid(); err != nil {
		t.Fatal(err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	c, err := loadFile(t, "testdata/good/dynamic.yaml")
	if err != nil {
		t.Fatal(err)
	}

	out, err := c.YAML()
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(out), "rule: Dynamic") {
		t.Errorf("dumped config is missing the rule:\n%s", out)
	}

	again, err := Load(bytes.NewReader(out), "dump.yaml")
	if err != nil {
		t.Fatalf("can't reload dumped config: %v\n%s", err, out)
	}

	if !again.DynamicExpression.Equal(&c.DynamicExpression) {
		t.Errorf("dynamic expression changed: %+v != %+v", again.DynamicExpression, c.DynamicExpression)
	}

	if again.Server != c.Server || again.DynamicExpiry != c.DynamicExpiry {
		t.Errorf("config changed after reload: %+v != %+v", again, c)
	}
}

func TestConfigValid(t *testing.T) {
	c := Default()
	if err := c.Valid(); !errors.Is(err, ErrMissingServer) {
		t.Errorf("wanted %v, got: %v", ErrMissingServer, err)
	}

	c.Server = "https://door.casdoor.com"
	c.Owner = "admin"
	c.Application = "app-built-in"
	if err := c.Valid(); err != nil {
		t.Errorf("filled in config is invalid: %v", err)
	}

	c.FetchTimeout = 0
	if err := c.Valid(); !errors.Is(err, ErrFetchTimeoutNotParsed) {
		t.Errorf("wanted %v, got: %v", ErrFetchTimeoutNotParsed, err)
	}
}
