// Package policy evaluates learner turns against an OPA rego policy before
// they reach a provider.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the turn policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// TurnInput is the document a turn is judged on.
type TurnInput struct {
	Text     string `json:"text"`
	Chars    int    `json:"chars"`
	MaxChars int    `json:"max_chars"`
	Scenario string `json:"scenario"`
	UseMock  bool   `json:"use_mock"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.turn_policy"),
		rego.Module("turn_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or the default policy when
// path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(data))
}

// Evaluate returns the decision and, for blocked turns, the reason.
func (e *Engine) Evaluate(ctx context.Context, input TurnInput) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "", nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return DecisionAllow, "", nil
	}
	decision, _ := doc["decision"].(string)
	reason, _ := doc["reason"].(string)
	if decision == "" {
		decision = DecisionAllow
	}
	return decision, reason, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package turn_policy

default decision = "allow"
default reason = ""

decision = "block" {
	input.chars == 0
}

decision = "block" {
	input.max_chars > 0
	input.chars > input.max_chars
}

reason = "utterance is empty" {
	input.chars == 0
}

reason = "utterance is too long" {
	input.max_chars > 0
	input.chars > input.max_chars
}
`
