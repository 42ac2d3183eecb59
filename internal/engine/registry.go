package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownEngine   = errors.New("engine: unknown engine")
	ErrDuplicateEngine = errors.New("engine: duplicate registration")
	ErrInvalidEngine   = errors.New("engine: invalid registration")
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Dialer)
)

// Register makes a dialer available under the given name. Concrete engines
// call this from an init function and are wired via blank import.
func Register(name string, dialer Dialer) error {
	key := strings.TrimSpace(name)
	if key == "" || dialer == nil {
		return ErrInvalidEngine
	}
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEngine, key)
	}
	drivers[key] = dialer
	return nil
}

// Open resolves a registered dialer by name.
func Open(name string) (Dialer, error) {
	key := strings.TrimSpace(name)
	driversMu.RLock()
	defer driversMu.RUnlock()
	dialer, ok := drivers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownEngine, key, strings.Join(registeredLocked(), ", "))
	}
	return dialer, nil
}

func registeredLocked() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
