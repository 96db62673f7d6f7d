package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/captchamodal/lib/store"
	_ "github.com/TecharoHQ/captchamodal/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// Store selects the backend that remembers failed attempts for the Dynamic rule.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) Valid() error {
	var errs []error

	if len(s.Backend) == 0 {
		errs = append(errs, ErrNoStoreBackend)
	}

	fac, ok := store.Get(s.Backend)
	switch ok {
	case true:
		if err := fac.Valid(s.Parameters); err != nil {
			errs = append(errs, err)
		}
	case false:
		errs = append(errs, fmt.Errorf("%w: %q, known: %v", ErrUnknownStoreBackend, s.Backend, store.Methods()))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Build validates the store configuration and constructs the backend.
func (s *Store) Build(ctx context.Context) (store.Interface, error) {
	if err := s.Valid(); err != nil {
		return nil, err
	}

	fac, _ := store.Get(s.Backend)
	return fac.Build(ctx, s.Parameters)
}
