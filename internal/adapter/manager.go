package adapter

import (
	"context"
	"log/slog"
	"sync"
)

// Manager runs a set of adapters and shuts them down together.
type Manager struct {
	adapters []Adapter
}

func NewManager(adapters ...Adapter) *Manager {
	return &Manager{adapters: adapters}
}

// Adapters returns the managed set.
func (m *Manager) Adapters() []Adapter {
	return m.adapters
}

// Start launches every adapter and blocks until ctx is cancelled and all
// adapters have returned.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range m.adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			slog.Info("Starting adapter", "adapter", a.Name())
			if err := a.Start(ctx); err != nil {
				slog.Error("Adapter failed", "adapter", a.Name(), "error", err)
			}
		}(a)
	}
	wg.Wait()
}

// Stop shuts every adapter down.
func (m *Manager) Stop(ctx context.Context) {
	for _, a := range m.adapters {
		if err := a.Stop(ctx); err != nil {
			slog.Warn("Adapter stop failed", "adapter", a.Name(), "error", err)
		}
	}
}
