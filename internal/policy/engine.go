// Package policy admits or rejects game configurations with an OPA policy.
package policy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// Decision values returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Verdict is the evaluated decision with the reasons of every matching deny rule.
type Verdict struct {
	Decision string
	Reasons  []string
}

// NewEngine creates a new policy engine with the given policy content.
// The module must declare package session_policy.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.session_policy"),
		rego.Module("session_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Load builds an engine from the policy file at path, or from DefaultPolicy
// when path is empty.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate runs the policy against input.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (Verdict, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Verdict{Decision: DecisionAllow}, nil
	}
	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Verdict{Decision: DecisionAllow}, nil
	}

	v := Verdict{Decision: DecisionAllow}
	if s, ok := doc["decision"].(string); ok {
		v.Decision = s
	}
	if reasons, ok := doc["deny"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				v.Reasons = append(v.Reasons, s)
			}
		}
	}
	return v, nil
}

// Admit returns nil when cfg may be used to create a game and an error
// wrapping domain.ErrPolicyDenied otherwise.
func (e *Engine) Admit(ctx context.Context, cfg domain.GameConfig) error {
	v, err := e.Evaluate(ctx, Input(cfg))
	if err != nil {
		return err
	}
	if v.Decision == DecisionAllow {
		return nil
	}
	if len(v.Reasons) == 0 {
		return domain.ErrPolicyDenied
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(v.Reasons, "; "))
}

// Input is the policy input document for cfg.
func Input(cfg domain.GameConfig) map[string]interface{} {
	in := map[string]interface{}{
		"variant":            string(cfg.Variant),
		"time_control":       cfg.TimeControl,
		"time_limit_seconds": cfg.TimeLimitSeconds,
		"increment_seconds":  cfg.IncrementSeconds,
		"custom_fen":         cfg.CustomFEN != "",
	}
	if cfg.StartingIndex != nil {
		in["starting_position"] = *cfg.StartingIndex
	}
	return in
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package session_policy

default decision = "allow"

decision = "deny" {
	count(deny) > 0
}

deny[msg] {
	input.time_limit_seconds > 10800
	msg := "time limit above 3 hours"
}

deny[msg] {
	input.increment_seconds > 180
	msg := "increment above 180 seconds"
}

deny[msg] {
	not allowed_variants[input.variant]
	msg := sprintf("variant %s not offered", [input.variant])
}

allowed_variants = {"standard", "chess960", "custom"}
`
