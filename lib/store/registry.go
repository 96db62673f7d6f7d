package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Factory builds one kind of attempt store from the parameters in its config.
type Factory interface {
	Build(ctx context.Context, config json.RawMessage) (Interface, error)
	Valid(config json.RawMessage) error
}

var backends = struct {
	sync.RWMutex
	byName map[string]Factory
}{byName: map[string]Factory{}}

// Register makes a backend selectable by name. Two packages registering the
// same name is a programming error and panics.
func Register(name string, f Factory) {
	backends.Lock()
	defer backends.Unlock()

	if _, dup := backends.byName[name]; dup {
		panic(fmt.Sprintf("store: backend %q registered twice", name))
	}

	backends.byName[name] = f
}

func Get(name string) (Factory, bool) {
	backends.RLock()
	defer backends.RUnlock()

	f, ok := backends.byName[name]
	return f, ok
}

// Methods lists the registered backend names in order.
func Methods() []string {
	backends.RLock()
	defer backends.RUnlock()

	return slices.Sorted(maps.Keys(backends.byName))
}
