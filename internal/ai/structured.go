package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manifold-labs/memoryd/internal/merr"
)

// parseStructured validates raw against a sanitize-and-retry pass: if it
// doesn't parse as JSON, Sanitize is applied once and parsing is retried;
// a second failure surfaces ErrStructuredGeneration.
func parseStructured(raw string) ([]byte, error) {
	if json.Valid([]byte(raw)) {
		return []byte(raw), nil
	}
	cleaned := Sanitize(raw)
	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned), nil
	}
	return nil, fmt.Errorf("%w: payload did not parse after sanitize: %s", merr.ErrStructuredGeneration, raw)
}

// twoStepStructured implements the edge provider's "reason then structure"
// pipeline: a reasoning-oriented call with a generic instruction, followed
// by a schema-adherent structuring call over the reasoning output.
func twoStepStructured(
	ctx context.Context,
	reason func(ctx context.Context, prompt string) (string, error),
	structure func(ctx context.Context, reasoning string, schema map[string]any) (string, error),
	prompt string,
	schema map[string]any,
) ([]byte, error) {
	reasoning, err := reason(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: reasoning phase: %v", merr.ErrTransientBackend, err)
	}
	structured, err := structure(ctx, reasoning, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: structuring phase: %v", merr.ErrTransientBackend, err)
	}
	return parseStructured(structured)
}
