package policy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"trustgate/internal/georisk/domain"
)

type memConfigs struct {
	values map[string]json.RawMessage
}

func (m *memConfigs) Get(ctx context.Context, key string) (json.RawMessage, error) {
	return m.values[key], nil
}

func (m *memConfigs) Set(ctx context.Context, key string, value json.RawMessage, expiresAt *time.Time) error {
	if m.values == nil {
		m.values = make(map[string]json.RawMessage)
	}
	m.values[key] = value
	return nil
}

func (m *memConfigs) Deactivate(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestDefaultPolicyTiers(t *testing.T) {
	e := NewEngine(nil, nil)
	ctx := context.Background()

	cases := map[string]domain.Tier{
		"US": domain.TierAllowed,
		"DE": domain.TierAllowed,
		"KP": domain.TierBlocked,
		"IR": domain.TierBlocked,
		"BR": domain.TierNeutral,
		"IN": domain.TierNeutral,
		"":   domain.TierNeutral,
	}
	for country, want := range cases {
		if got := e.Tier(ctx, country); got != want {
			t.Errorf("Tier(%q) = %s, want %s", country, got, want)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	if err := NewEngine(nil, nil).HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestOverridePolicy(t *testing.T) {
	override := `package trustgate.geo

default tier := "neutral"

tier := "blocked" if {
	input.country == "BR"
}
`
	raw, _ := json.Marshal(override)
	configs := &memConfigs{values: map[string]json.RawMessage{OverrideKey: raw}}
	e := NewEngine(configs, nil)
	ctx := context.Background()

	if got := e.Tier(ctx, "BR"); got != domain.TierBlocked {
		t.Errorf("override Tier(BR) = %s, want blocked", got)
	}
	// The override replaces the default lists entirely.
	if got := e.Tier(ctx, "KP"); got != domain.TierNeutral {
		t.Errorf("override Tier(KP) = %s, want neutral", got)
	}
}

func TestBrokenOverrideFallsBackToDefault(t *testing.T) {
	raw, _ := json.Marshal("package trustgate.geo\n\ntier := {") // does not compile
	configs := &memConfigs{values: map[string]json.RawMessage{OverrideKey: raw}}
	e := NewEngine(configs, nil)

	if got := e.Tier(context.Background(), "KP"); got != domain.TierBlocked {
		t.Errorf("Tier(KP) with broken override = %s, want blocked via default", got)
	}
}
