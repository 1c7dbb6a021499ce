package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fabricguide/internal/config"
)

// NewClient constructs the client for a provider. model overrides the
// provider's configured model when not empty.
func NewClient(ctx context.Context, provider, model string, cfg *config.Config, logger *zap.Logger) (Client, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	pc, ok := cfg.Provider(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if model != "" {
		pc.Model = model
	}
	switch provider {
	case "gemini":
		return NewGeminiClient(ctx, pc)
	case "openai", "claude":
		var search tool.BaseTool
		if ws := NewWebSearchTool(ctx, cfg.Search, logger); ws != nil {
			search = ws
		}
		return NewEinoClient(ctx, provider, pc, search)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// Registry lazily builds one client per provider and model and reuses it.
type Registry struct {
	cfg    *config.Config
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]Client
	flight  singleflight.Group
	build   func(ctx context.Context, provider, model string) (Client, error)
}

// NewRegistry creates a registry backed by NewClient.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{cfg: cfg, logger: logger, clients: make(map[string]Client)}
	r.build = func(ctx context.Context, provider, model string) (Client, error) {
		return NewClient(ctx, provider, model, r.cfg, r.logger)
	}
	return r
}

// Client returns the cached client for provider and model, creating it on
// first use. Construction runs outside the lock and concurrent callers for the
// same key share one build. Failed constructions are not cached.
func (r *Registry) Client(ctx context.Context, provider, model string) (Client, error) {
	key := strings.ToLower(provider) + "/" + model
	if c, ok := r.cached(key); ok {
		return c, nil
	}
	v, err, _ := r.flight.Do(key, func() (interface{}, error) {
		if c, ok := r.cached(key); ok {
			return c, nil
		}
		c, err := r.build(ctx, provider, model)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.clients[key] = c
		r.mu.Unlock()
		r.logger.Info("ai client ready", zap.String("provider", provider), zap.String("model", model))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}

func (r *Registry) cached(key string) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[key]
	return c, ok
}
