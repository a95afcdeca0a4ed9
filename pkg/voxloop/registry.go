package voxloop

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenvoice/voxloop/pkg/dispatch"
)

// DispatcherBuilder constructs a dispatcher from the backend config.
type DispatcherBuilder func(cfg BackendConfig) (dispatch.Dispatcher, error)

// TransportRegistry maps transport names to dispatcher builders, so
// embedders can plug in their own backends next to the stock http,
// websocket, and mock set.
type TransportRegistry struct {
	mu       sync.RWMutex
	builders map[string]DispatcherBuilder
}

func NewTransportRegistry() *TransportRegistry {
	r := &TransportRegistry{builders: map[string]DispatcherBuilder{}}
	r.Register("http", func(cfg BackendConfig) (dispatch.Dispatcher, error) {
		return dispatch.NewHTTP(dispatch.HTTPConfig{
			URL:     cfg.URL,
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		})
	})
	r.Register("websocket", func(cfg BackendConfig) (dispatch.Dispatcher, error) {
		return dispatch.NewWS(dispatch.WSConfig{
			URL:     cfg.URL,
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		})
	})
	r.Register("mock", func(BackendConfig) (dispatch.Dispatcher, error) {
		return dispatch.NewMock(), nil
	})
	return r
}

// Register adds or replaces a builder. Names are case-insensitive.
func (r *TransportRegistry) Register(name string, builder DispatcherBuilder) {
	r.mu.Lock()
	r.builders[strings.ToLower(strings.TrimSpace(name))] = builder
	r.mu.Unlock()
}

// Build constructs the dispatcher named by cfg.Transport.
func (r *TransportRegistry) Build(cfg BackendConfig) (dispatch.Dispatcher, error) {
	r.mu.RLock()
	builder := r.builders[strings.ToLower(strings.TrimSpace(cfg.Transport))]
	r.mu.RUnlock()
	if builder == nil {
		return nil, fmt.Errorf("unknown backend transport %q (have %s)",
			cfg.Transport, strings.Join(r.names(), ", "))
	}
	return builder(cfg)
}

func (r *TransportRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for name := range r.builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
