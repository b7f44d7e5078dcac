package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.RWMutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into v. The first call for a given
// struct type performs the parse; subsequent calls return the cached copy so
// every consumer observes the same immutable snapshot.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// A missing .env file is not an error.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	// Re-check under the write lock; another goroutine may have parsed it.
	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	loaded[key] = *v
	return nil
}

// Get returns the cached snapshot for T without parsing. It fails with
// ErrConfigNotLoaded when no Load for T has succeeded yet, so callers that
// only read configuration can fail fast instead of parsing the environment
// at an arbitrary point in the program's life.
func Get[T any]() (T, error) {
	var zero T
	mu.RLock()
	defer mu.RUnlock()
	if cached, ok := loaded[typeName[T]()]; ok {
		return cached.(T), nil
	}
	return zero, ErrConfigNotLoaded
}

// MustLoad works like Load but panics on failure. Use for configuration the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
