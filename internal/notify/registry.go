// Package notify fans generated-task events out to notification channels.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Notification is one message to one recipient about one generated task.
type Notification struct {
	FirmID    string
	Recipient string
	TaskID    string
	Title     string
	DueDate   time.Time
}

// Channel delivers notifications over one transport.
type Channel interface {
	Send(ctx context.Context, n *Notification) error
	Name() string
}

// Registry maps channel names to implementations.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register adds a channel. Safe to call concurrently.
func (r *Registry) Register(c Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.Name()] = c
}

// Get returns the channel with the given name.
func (r *Registry) Get(name string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("no notification channel registered for %q", name)
	}
	return c, nil
}

// Names returns the registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
