package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	decision, reason, err := engine.Evaluate(ctx, TurnInput{Text: "hello", Chars: 5, MaxChars: 10})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Empty(t, reason)

	decision, reason, err = engine.Evaluate(ctx, TurnInput{Text: "hello there friend", Chars: 18, MaxChars: 10})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
	assert.Equal(t, "utterance is too long", reason)

	decision, _, err = engine.Evaluate(ctx, TurnInput{Chars: 0, MaxChars: 10})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)

	decision, _, err = engine.Evaluate(ctx, TurnInput{Text: "long", Chars: 5000})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision, "zero max_chars disables the length rule")
}

func TestNewEngineFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "turn.rego")
	custom := `
package turn_policy

default decision = "allow"

decision = "block" {
	input.scenario == "Job Interview"
	input.use_mock
}
`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	engine, err := NewEngineFromFile(ctx, path)
	require.NoError(t, err)

	decision, _, err := engine.Evaluate(ctx, TurnInput{Text: "hi", Chars: 2, Scenario: "Job Interview", UseMock: true})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = NewEngine(ctx, "package broken\n decision = {")
	assert.Error(t, err)
}
