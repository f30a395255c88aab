package graph

import (
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Run("configurable wrapper", func(t *testing.T) {
		cfg, err := ParseConfig(map[string]any{
			"configurable": map[string]any{
				"thread_id":   "abc",
				"permissions": map[string]any{"full_write_access": true},
				"model":       "gpt-4o",
			},
		})
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		if cfg.ThreadID != "abc" || !cfg.Permissions.FullWriteAccess {
			t.Errorf("cfg = %+v", cfg)
		}
		if v, ok := cfg.Get("model"); !ok || v != "gpt-4o" {
			t.Errorf("model = %v, %v", v, ok)
		}
	})

	t.Run("bare section", func(t *testing.T) {
		cfg, err := ParseConfig(map[string]any{"permissions": map[string]any{"full_write_access": "true"}})
		if err != nil {
			t.Fatalf("ParseConfig: %v", err)
		}
		if !cfg.Permissions.FullWriteAccess {
			t.Error("weakly typed flag not decoded")
		}
	})

	t.Run("nil", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		if err != nil || cfg.Permissions.FullWriteAccess {
			t.Errorf("ParseConfig(nil) = %+v, %v", cfg, err)
		}
	})

	t.Run("bad wrapper", func(t *testing.T) {
		if _, err := ParseConfig(map[string]any{"configurable": "nope"}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestConfig_Decode(t *testing.T) {
	cfg := Config{Values: map[string]any{"limits": map[string]any{"max": "3", "label": "x"}}}
	var out struct {
		Max   int    `mapstructure:"max"`
		Label string `mapstructure:"label"`
	}
	if err := cfg.Decode("limits", &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Max != 3 || out.Label != "x" {
		t.Errorf("out = %+v", out)
	}
	if err := cfg.Decode("missing", &out); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestConfig_Configurable(t *testing.T) {
	cfg := Config{Permissions: Permissions{FullWriteAccess: true}, Values: map[string]any{"k": "v"}}.WithThreadID("t")
	wire := cfg.Configurable()
	back, err := ParseConfig(wire)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if back.ThreadID != "t" || !back.Permissions.FullWriteAccess || back.Values["k"] != "v" {
		t.Errorf("round trip = %+v", back)
	}
}
