package ai

import (
	"context"
	"fmt"
	"net/http"

	genai "google.golang.org/genai"

	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/observability"
)

type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, model string, httpClient *http.Client) (*geminiBackend, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: init gemini client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (g *geminiBackend) pickModel(model string) string {
	if model != "" {
		return model
	}
	return g.model
}

func (g *geminiBackend) generate(ctx context.Context, prompt, system, model string) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	ctx, span := observability.StartSpan(ctx, "ai.gemini.generate")
	defer span.End()

	effectiveModel := g.pickModel(model)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, effectiveModel, contents, cfg)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Msg("ai_gemini_generate_error")
		return "", fmt.Errorf("%w: %v", merr.ErrTransientBackend, err)
	}
	return resp.Text(), nil
}

func (g *geminiBackend) GenerateText(ctx context.Context, prompt, system string, opts TextOptions) (string, error) {
	text, err := g.generate(ctx, prompt, system, opts.Model)
	if err != nil {
		return "", err
	}
	if opts.Sanitize {
		text = Sanitize(text)
	}
	return text, nil
}

func (g *geminiBackend) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts TextOptions) ([]byte, error) {
	effectiveModel := g.pickModel(opts.Model)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schemaToGenai(schema),
	}
	resp, err := g.client.Models.GenerateContent(ctx, effectiveModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", merr.ErrTransientBackend, err)
	}
	return parseStructured(resp.Text())
}

func (g *geminiBackend) GenerateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, "ai.gemini.embeddings")
	defer span.End()

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := g.client.Models.EmbedContent(ctx, "text-embedding-004", contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings: %v", merr.ErrTransientBackend, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: empty embeddings response", merr.ErrTransientBackend)
	}
	values := resp.Embeddings[0].Values
	out := make([]float32, len(values))
	copy(out, values)
	return out, nil
}

func (g *geminiBackend) RewriteQuestionForMCP(ctx context.Context, query string, rc *RewriteContext, opts TextOptions) (string, error) {
	return g.GenerateText(ctx, buildRewritePrompt(query, rc), rewriteSystemPrompt, opts)
}

// schemaToGenai converts a JSON-Schema-shaped map into genai's typed
// Schema for response-constrained generation. Only the subset of JSON
// Schema memoryd's callers actually emit (object/array/string/number/
// boolean with properties/items/required) is handled.
func schemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{}
	switch t, _ := schema["type"].(string); t {
	case "object":
		out.Type = genai.TypeObject
		if props, ok := schema["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for k, v := range props {
				if vm, ok := v.(map[string]any); ok {
					out.Properties[k] = schemaToGenai(vm)
				}
			}
		}
		if req, ok := schema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					out.Required = append(out.Required, s)
				}
			}
		}
	case "array":
		out.Type = genai.TypeArray
		if items, ok := schema["items"].(map[string]any); ok {
			out.Items = schemaToGenai(items)
		}
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	return out
}
