package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-labs/memoryd/internal/merr"
)

func TestParseStructuredValidJSON(t *testing.T) {
	raw, err := parseStructured(`{"a":1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestParseStructuredRecoversViaSanitize(t *testing.T) {
	raw, err := parseStructured(`{"a":1`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestParseStructuredFailsAfterSanitize(t *testing.T) {
	_, err := parseStructured(`not json at all `)
	require.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrStructuredGeneration)
}

func TestTwoStepStructuredHappyPath(t *testing.T) {
	reason := func(ctx context.Context, prompt string) (string, error) {
		return "reasoning output", nil
	}
	structure := func(ctx context.Context, reasoning string, schema map[string]any) (string, error) {
		return `{"result":"ok"}`, nil
	}
	out, err := twoStepStructured(context.Background(), reason, structure, "prompt", map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(out))
}

func TestTwoStepStructuredReasoningFailure(t *testing.T) {
	reason := func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("boom")
	}
	structure := func(ctx context.Context, reasoning string, schema map[string]any) (string, error) {
		t.Fatal("structure phase should not run when reasoning fails")
		return "", nil
	}
	_, err := twoStepStructured(context.Background(), reason, structure, "prompt", map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrTransientBackend)
}
