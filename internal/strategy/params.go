package strategy

import (
	"fmt"
	"strconv"
)

type ruleParams map[string]interface{}

func (p ruleParams) float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("param %q: unsupported type %T", key, raw)
	}
}

func (p ruleParams) int(key string, def int) (int, error) {
	f, err := p.float(key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (p ruleParams) string(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}

func requirePositive(key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("param %q must be positive, got %v", key, v)
	}
	return nil
}

func requireOneOf(key, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("param %q must be one of %v, got %q", key, allowed, v)
}
