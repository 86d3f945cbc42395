package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/manifold-labs/memoryd/internal/config"
	"github.com/manifold-labs/memoryd/internal/merr"
)

// gateway dispatches generate_* calls across the configured backends,
// defaulting to edge when no provider is requested. Each backend is
// built once at startup; gemini and openai are left out when their API
// key is absent, and calls against a missing backend surface
// ErrPermanentBackend.
type gateway struct {
	backends map[Backend]Provider
}

// NewGateway builds the C1 AI Provider Gateway from configuration. The
// edge backend is always constructed (its API key may be empty); gemini
// and openai are constructed only when their API keys are configured.
func NewGateway(ctx context.Context, cfg config.AIConfig, httpClient *http.Client) (Provider, error) {
	Dimension = 1024

	backends := make(map[Backend]Provider)

	// edge: the openai-compatible client pointed at a self-hosted
	// completions endpoint.
	backends[BackendEdge] = newOpenAIBackend(BackendEdge, cfg.EdgeAPIKey, cfg.EdgeBaseURL, cfg.EdgeModel, cfg.EdgeReasoningModel, cfg.EdgeModel, httpClient)

	if cfg.OpenAIAPIKey != "" {
		backends[BackendOpenAI] = newOpenAIBackend(BackendOpenAI, cfg.OpenAIAPIKey, "", cfg.OpenAIModel, cfg.OpenAIModel, cfg.OpenAIEmbeddingModel, httpClient)
	}
	if cfg.GoogleAPIKey != "" {
		g, err := newGeminiBackend(ctx, cfg.GoogleAPIKey, cfg.GoogleModel, httpClient)
		if err != nil {
			return nil, err
		}
		backends[BackendGemini] = g
	}

	return &gateway{backends: backends}, nil
}

func (g *gateway) resolve(provider Backend) (Provider, error) {
	if provider == "" {
		provider = BackendEdge
	}
	b, ok := g.backends[provider]
	if !ok || b == nil {
		return nil, fmt.Errorf("%w: backend %q not configured", merr.ErrPermanentBackend, provider)
	}
	return b, nil
}

func (g *gateway) GenerateText(ctx context.Context, prompt, system string, opts TextOptions) (string, error) {
	b, err := g.resolve(opts.Provider)
	if err != nil {
		return "", err
	}
	return b.GenerateText(ctx, prompt, system, opts)
}

func (g *gateway) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts TextOptions) ([]byte, error) {
	b, err := g.resolve(opts.Provider)
	if err != nil {
		return nil, err
	}
	return b.GenerateStructured(ctx, prompt, schema, opts)
}

func (g *gateway) GenerateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	b, err := g.resolve(BackendEdge)
	if err != nil {
		return nil, err
	}
	return b.GenerateEmbeddings(ctx, text)
}

func (g *gateway) RewriteQuestionForMCP(ctx context.Context, query string, rc *RewriteContext, opts TextOptions) (string, error) {
	b, err := g.resolve(opts.Provider)
	if err != nil {
		return "", err
	}
	return b.RewriteQuestionForMCP(ctx, query, rc, opts)
}
