package domain

import (
	"fmt"
	"strings"
)

// TimeControl is a named time-control preset.
type TimeControl struct {
	Name             string `json:"name"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
	IncrementSeconds int    `json:"increment_seconds"`
}

// TimeControls lists the presets offered to clients. "custom" takes its
// values from the request.
var TimeControls = []TimeControl{
	{Name: "bullet", TimeLimitSeconds: 60},
	{Name: "blitz", TimeLimitSeconds: 300},
	{Name: "rapid", TimeLimitSeconds: 600},
	{Name: "classical", TimeLimitSeconds: 1800},
}

const (
	DefaultTimeControl      = "blitz"
	DefaultTimeLimitSeconds = 300
)

// GameConfig is the configuration a game is created with.
type GameConfig struct {
	Variant          Variant `json:"variant"`
	TimeControl      string  `json:"time_control"`
	TimeLimitSeconds int     `json:"time_limit_seconds"`
	IncrementSeconds int     `json:"increment_seconds"`
	StartingIndex    *int    `json:"starting_index,omitempty"`
	CustomFEN        string  `json:"custom_fen,omitempty"`
}

// Normalize fills defaults and presets and validates the result.
func (c GameConfig) Normalize() (GameConfig, error) {
	c.Variant = Variant(strings.ToLower(strings.TrimSpace(string(c.Variant))))
	if c.Variant == "" {
		c.Variant = VariantStandard
		if c.CustomFEN != "" {
			c.Variant = VariantCustom
		}
	}
	switch c.Variant {
	case VariantStandard, VariantChess960:
		if c.CustomFEN != "" {
			return c, fmt.Errorf("%w: custom_fen requires the custom variant", ErrInvalidConfig)
		}
	case VariantCustom:
		if strings.TrimSpace(c.CustomFEN) == "" {
			return c, fmt.Errorf("%w: custom variant requires custom_fen", ErrInvalidConfig)
		}
	default:
		return c, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, c.Variant)
	}
	if c.StartingIndex != nil && c.Variant != VariantChess960 {
		return c, fmt.Errorf("%w: starting_index requires the chess960 variant", ErrInvalidConfig)
	}

	c.TimeControl = strings.ToLower(strings.TrimSpace(c.TimeControl))
	if c.TimeControl == "" {
		if c.TimeLimitSeconds > 0 {
			c.TimeControl = "custom"
		} else {
			c.TimeControl = DefaultTimeControl
		}
	}
	if c.TimeControl != "custom" {
		preset, ok := lookupTimeControl(c.TimeControl)
		if !ok {
			return c, fmt.Errorf("%w: unknown time control %q", ErrInvalidConfig, c.TimeControl)
		}
		if c.TimeLimitSeconds == 0 {
			c.TimeLimitSeconds = preset.TimeLimitSeconds
			c.IncrementSeconds = preset.IncrementSeconds
		}
	}
	if c.TimeLimitSeconds == 0 {
		c.TimeLimitSeconds = DefaultTimeLimitSeconds
	}
	if c.TimeLimitSeconds < 0 || c.IncrementSeconds < 0 {
		return c, fmt.Errorf("%w: time values must not be negative", ErrInvalidConfig)
	}
	return c, nil
}

// TimeLimitMs returns the per-side time limit in milliseconds.
func (c GameConfig) TimeLimitMs() int64 {
	return int64(c.TimeLimitSeconds) * 1000
}

// IncrementMs returns the per-move increment in milliseconds.
func (c GameConfig) IncrementMs() int64 {
	return int64(c.IncrementSeconds) * 1000
}

func lookupTimeControl(name string) (TimeControl, bool) {
	for _, tc := range TimeControls {
		if tc.Name == name {
			return tc, true
		}
	}
	return TimeControl{}, false
}
