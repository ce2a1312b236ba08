package config

import (
	"fmt"
	"strings"
)

// Validate checks a sweep definition. It does not modify it.
func Validate(s *Sweep) error {
	if s.KIters == 0 {
		return fmt.Errorf("k_iters must be greater than zero")
	}
	if len(s.Variants) == 0 {
		return fmt.Errorf("at least one variant is required")
	}

	seen := make(map[string]int)
	for i, v := range s.Variants {
		if _, ok := spadSelects[v.SpadSelect]; !ok {
			return fmt.Errorf("variant %d: invalid spad_select %q", i, v.SpadSelect)
		}
		if _, ok := distanceModes[v.DistanceMode]; !ok {
			return fmt.Errorf("variant %d: invalid distance_mode %q", i, v.DistanceMode)
		}
		if strings.ContainsAny(v.Label, "\n\r") {
			return fmt.Errorf("variant %d: label must be a single line", i)
		}

		key := fmt.Sprintf("%s|%s|%t", v.SpadSelect, v.DistanceMode, v.VcselClkDiv2)
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("variants %d and %d have the same configuration", prev, i)
		}
		seen[key] = i
	}
	return nil
}
