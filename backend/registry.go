package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/quadstream/gpucore"
)

// Factory creates a device for cfg.
type Factory func(cfg Config) (gpucore.Device, error)

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first registered wins).
	backendPriority = []string{BackendRaster, BackendRecording}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in device packages.
// If a factory with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a factory from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the sorted names of registered factories.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a factory with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get creates a device with the named factory.
func Get(name string, cfg Config) (gpucore.Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// Default returns the name of the best registered factory by priority,
// or "" when none is registered.
func Default() string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if _, ok := factories[name]; ok {
			return name
		}
	}
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	slices.Sort(names)
	return names[0]
}
