package llmprovider

import (
	"fmt"

	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"

	"github.com/petal-labs/retrofit/config"
	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/crew"
	"github.com/petal-labs/retrofit/runtime"
)

// NewClient creates a core.LLMClient for the named provider using the given config.
// It delegates to the iris provider registry to instantiate the underlying provider.
func NewClient(name string, cfg config.ProviderConfig) (core.LLMClient, error) {
	provider, err := providers.Create(name, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return &irisAdapter{provider: provider}, nil
}

// NewClientFactory returns a runtime.ClientFactory backed by the
// resolved provider credentials. Clients are cached per provider name
// so agents sharing a provider reuse one connection.
func NewClientFactory(providers config.ProviderMap) runtime.ClientFactory {
	clients := make(map[string]core.LLMClient)

	return func(agent crew.Agent) (core.LLMClient, error) {
		if c, ok := clients[agent.Provider]; ok {
			return c, nil
		}
		cfg, ok := providers[agent.Provider]
		if !ok {
			return nil, fmt.Errorf("provider %q not configured", agent.Provider)
		}
		c, err := NewClient(agent.Provider, cfg)
		if err != nil {
			return nil, err
		}
		clients[agent.Provider] = c
		return c, nil
	}
}
