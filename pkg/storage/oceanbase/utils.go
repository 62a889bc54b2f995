package oceanbase

import (
	"fmt"
	"strconv"
	"strings"
)

// vectorToString converts a float64 slice to an OceanBase VECTOR literal.
// Example: [0.1, 0.2, 0.3] -> "[0.1,0.2,0.3]"
func vectorToString(vector []float64) string {
	if len(vector) == 0 {
		return "[]"
	}

	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// stringToVector parses an OceanBase VECTOR literal.
// Example: "[0.1,0.2,0.3]" -> [0.1, 0.2, 0.3]
func stringToVector(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		result[i] = val
	}

	return result, nil
}
