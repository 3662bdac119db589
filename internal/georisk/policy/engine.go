// Package policy resolves a country's standing in the three-tier geo policy
// using OPA Rego. The default tier lists are embedded; operators can override
// the policy through the runtime config store.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"trustgate/internal/configstore"
	"trustgate/internal/georisk/domain"
)

// OverrideKey is the config store key holding a replacement Rego policy.
const OverrideKey = "geo.policy.rego"

const tierQuery = "data.trustgate.geo.tier"

// Default policy. Countries outside both lists are neutral.
const defaultRegoPolicy = `package trustgate.geo

blocked_countries := {"KP", "IR", "SY", "CU", "SD"}

allowed_countries := {"US", "CA", "GB", "IE", "DE", "FR", "NL", "BE", "CH", "AT", "SE", "NO", "DK", "FI", "AU", "NZ", "JP"}

default tier := "neutral"

tier := "blocked" if {
	input.country in blocked_countries
}

tier := "allowed" if {
	input.country in allowed_countries
	not input.country in blocked_countries
}
`

// Engine evaluates the country tier policy.
type Engine struct {
	configs configstore.Store // may be nil, default policy only
	logger  *zap.Logger
}

// NewEngine returns a tier engine. configs may be nil.
func NewEngine(configs configstore.Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{configs: configs, logger: logger}
}

// HealthCheck verifies the embedded default policy compiles and evaluates.
func (e *Engine) HealthCheck(ctx context.Context) error {
	tier, err := evalTier(ctx, defaultRegoPolicy, "US")
	if err != nil {
		return err
	}
	if tier != domain.TierAllowed {
		return fmt.Errorf("geo policy: default policy returned %q for US", tier)
	}
	return nil
}

// Tier returns the country's standing. An operator override that fails to
// load, compile, or evaluate falls back to the embedded default; a failure of
// the default itself degrades to neutral.
func (e *Engine) Tier(ctx context.Context, country string) domain.Tier {
	if src := e.override(ctx); src != "" {
		tier, err := evalTier(ctx, src, country)
		if err == nil {
			return tier
		}
		e.logger.Warn("geo policy override evaluation failed, using default", zap.Error(err))
	}
	tier, err := evalTier(ctx, defaultRegoPolicy, country)
	if err != nil {
		e.logger.Error("geo policy evaluation failed", zap.Error(err))
		return domain.TierNeutral
	}
	return tier
}

func (e *Engine) override(ctx context.Context) string {
	if e.configs == nil {
		return ""
	}
	src, err := configstore.GetString(ctx, e.configs, OverrideKey)
	if err != nil {
		e.logger.Warn("geo policy override lookup failed", zap.Error(err))
		return ""
	}
	return src
}

func evalTier(ctx context.Context, policySrc, country string) (domain.Tier, error) {
	compiler, err := ast.CompileModules(map[string]string{"geo.rego": policySrc})
	if err != nil {
		return "", fmt.Errorf("compile geo policy: %w", err)
	}
	q := rego.New(
		rego.Query(tierQuery),
		rego.Compiler(compiler),
		rego.Input(map[string]interface{}{"country": country}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return "", fmt.Errorf("eval geo policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("geo policy query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("geo policy tier is not a string: %T", rs[0].Expressions[0].Value)
	}
	switch t := domain.Tier(v); t {
	case domain.TierAllowed, domain.TierNeutral, domain.TierBlocked:
		return t, nil
	default:
		return "", fmt.Errorf("geo policy returned unknown tier %q", v)
	}
}
