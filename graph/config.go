package graph

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Permissions are the capability flags a caller grants a run.
type Permissions struct {
	FullWriteAccess bool `mapstructure:"full_write_access" json:"full_write_access"`
}

// Config carries per-run configuration. Nodes and routers read it; nothing
// in a run may modify it.
type Config struct {
	ThreadID    string         `mapstructure:"thread_id" json:"thread_id,omitempty"`
	Permissions Permissions    `mapstructure:"permissions" json:"permissions"`
	Values      map[string]any `mapstructure:",remain" json:"values,omitempty"`
}

// ParseConfig decodes the wire shape {"configurable": {...}}. A map without
// the "configurable" wrapper is treated as the configurable section itself.
// Unrecognized keys are kept in Values.
func ParseConfig(raw map[string]any) (Config, error) {
	var cfg Config
	if raw == nil {
		return cfg, nil
	}
	section := raw
	if inner, ok := raw["configurable"]; ok {
		m, ok := inner.(map[string]any)
		if !ok {
			return cfg, fmt.Errorf("configurable: expected object, got %T", inner)
		}
		section = m
	}
	if err := decode(section, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Get returns a pass-through configuration value.
func (c Config) Get(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Decode decodes the pass-through value stored under key into out.
func (c Config) Decode(key string, out any) error {
	v, ok := c.Values[key]
	if !ok {
		return fmt.Errorf("config key %q not set", key)
	}
	return decode(v, out)
}

// Configurable returns the wire representation of the config.
func (c Config) Configurable() map[string]any {
	out := make(map[string]any, len(c.Values)+2)
	for k, v := range c.Values {
		out[k] = v
	}
	if c.ThreadID != "" {
		out["thread_id"] = c.ThreadID
	}
	out["permissions"] = map[string]any{"full_write_access": c.Permissions.FullWriteAccess}
	return map[string]any{"configurable": out}
}

// WithThreadID returns a copy of c bound to the given thread.
func (c Config) WithThreadID(id string) Config {
	c.ThreadID = id
	return c
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
