package ai

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/manifold-labs/memoryd/internal/merr"
	"github.com/manifold-labs/memoryd/internal/observability"
)

// openAIBackend talks to the OpenAI cloud API and is also reused, pointed
// at a different base URL, as the edge backend against a self-hosted
// OpenAI-compatible completions endpoint.
type openAIBackend struct {
	client         sdk.Client
	model          string
	reasoningModel string
	embeddingModel string
	name           Backend
}

func newOpenAIBackend(name Backend, apiKey, baseURL, model, reasoningModel, embeddingModel string, httpClient *http.Client) *openAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &openAIBackend{
		client:         sdk.NewClient(opts...),
		model:          model,
		reasoningModel: reasoningModel,
		embeddingModel: embeddingModel,
		name:           name,
	}
}

func (b *openAIBackend) chat(ctx context.Context, prompt, system, model string) (string, error) {
	if model == "" {
		model = b.model
	}
	log := observability.LoggerWithTrace(ctx)
	ctx, span := observability.StartSpan(ctx, "ai.openai.chat")
	defer span.End()

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, sdk.SystemMessage(system))
	}
	messages = append(messages, sdk.UserMessage(prompt))

	comp, err := b.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		log.Error().Err(err).Str("model", model).Str("backend", string(b.name)).Msg("ai_chat_error")
		return "", fmt.Errorf("%w: %v", merr.ErrTransientBackend, err)
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices from %s", merr.ErrTransientBackend, b.name)
	}
	return comp.Choices[0].Message.Content, nil
}

func (b *openAIBackend) GenerateText(ctx context.Context, prompt, system string, opts TextOptions) (string, error) {
	text, err := b.chat(ctx, prompt, system, opts.Model)
	if err != nil {
		return "", err
	}
	if opts.Sanitize {
		text = Sanitize(text)
	}
	return text, nil
}

func (b *openAIBackend) GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts TextOptions) ([]byte, error) {
	if b.name == BackendEdge {
		return twoStepStructured(ctx,
			func(ctx context.Context, p string) (string, error) {
				return b.chat(ctx, p, "Analyze comprehensively.", b.reasoningModel)
			},
			func(ctx context.Context, reasoning string, schema map[string]any) (string, error) {
				return b.structuredChat(ctx, reasoning, schema, opts.Model)
			},
			prompt, schema)
	}
	raw, err := b.structuredChat(ctx, prompt, schema, opts.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", merr.ErrTransientBackend, err)
	}
	return parseStructured(raw)
}

// structuredChat issues a schema-adherent chat completion using strict
// JSON-schema response formatting.
func (b *openAIBackend) structuredChat(ctx context.Context, prompt string, schema map[string]any, model string) (string, error) {
	if model == "" {
		model = b.model
	}
	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(prompt),
		},
	}
	params.SetExtraFields(map[string]any{
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "memoryd_structured_output",
				"strict": true,
				"schema": schema,
			},
		},
	})
	comp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return comp.Choices[0].Message.Content, nil
}

func (b *openAIBackend) GenerateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	ctx, span := observability.StartSpan(ctx, "ai.openai.embeddings")
	defer span.End()

	resp, err := b.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(b.embeddingModel),
		Input: sdk.EmbeddingNewParamsInputUnion{OfString: sdk.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings: %v", merr.ErrTransientBackend, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embeddings response", merr.ErrTransientBackend)
	}
	values := resp.Data[0].Embedding
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}

func (b *openAIBackend) RewriteQuestionForMCP(ctx context.Context, query string, rc *RewriteContext, opts TextOptions) (string, error) {
	prompt := buildRewritePrompt(query, rc)
	return b.GenerateText(ctx, prompt, rewriteSystemPrompt, opts)
}
