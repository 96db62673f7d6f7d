package lib

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/TecharoHQ/captchamodal/data"
	"github.com/TecharoHQ/captchamodal/lib/config"
)

// LoadConfigOrDefault loads the configuration file at fname, or the built-in
// one when fname is empty.
func LoadConfigOrDefault(fname string) (*config.Config, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't open config file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/captchamodal.yaml"
		fin, err = data.Config.Open("captchamodal.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't open builtin config file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		err := fin.Close()
		if err != nil {
			slog.Error("failed to close config file", "file", fname, "err", err)
		}
	}(fin)

	cfg, err := config.Load(fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
	}

	return cfg, nil
}
