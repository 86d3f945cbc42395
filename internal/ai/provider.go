// Package ai is the C1 AI Provider Gateway: a narrow, provider-agnostic
// interface over three interchangeable backends (edge, gemini, openai),
// selected by a tagged string rather than an inheritance hierarchy.
package ai

import "context"

// ReasoningEffort hints at how much the backend should "think" before
// answering, where the backend supports the distinction.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// Backend names the three interchangeable providers behind the Provider
// interface.
type Backend string

const (
	BackendEdge   Backend = "edge"
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
)

// TextOptions configures generate_text and generate_structured calls.
type TextOptions struct {
	Provider        Backend
	Model           string
	ReasoningEffort ReasoningEffort
	Sanitize        bool
}

// RewriteContext is the optional structured bag rewrite_question_for_mcp
// accepts alongside the raw query.
type RewriteContext struct {
	Bindings     []string `json:"bindings,omitempty"`
	Libraries    []string `json:"libraries,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CodeSnippets []string `json:"codeSnippets,omitempty"`
}

// Provider is the unified text/structured/embedding interface every
// backend implements.
type Provider interface {
	GenerateText(ctx context.Context, prompt, system string, opts TextOptions) (string, error)
	GenerateStructured(ctx context.Context, prompt string, schema map[string]any, opts TextOptions) ([]byte, error)
	GenerateEmbeddings(ctx context.Context, text string) ([]float32, error)
	RewriteQuestionForMCP(ctx context.Context, query string, rc *RewriteContext, opts TextOptions) (string, error)
}

// Dimension is the fixed embedding dimensionality the vector index was
// created with. It must stay constant across the lifetime of an index.
var Dimension = 1024
