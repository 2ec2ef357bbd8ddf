package notifier

import (
	"fmt"
	"sync"
)

// Factory is a constructor function that creates a new Notifier instance
// from channel-specific settings.
type Factory func(settings map[string]string) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a notifier factory available by channel type.
// It is typically called from an init() function in the adapter package.
func Register(channelType string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[channelType]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", channelType))
	}
	factories[channelType] = factory
}

// New creates a new Notifier by channel type using the registered factory.
func New(channelType string, settings map[string]string) (Notifier, error) {
	mu.RLock()
	factory, ok := factories[channelType]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown channel type %q", channelType)
	}
	return factory(settings)
}

// Available returns the channel types of all registered notifiers.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
