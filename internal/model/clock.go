package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondsPerDay is the length of a hot-time day.
const SecondsPerDay = 24 * 60 * 60

// ParseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	limits := []int{23, 59, 59}
	units := []int{3600, 60, 1}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time %q (use HH:MM)", s)
		}
		total += n * units[i]
	}
	return total, nil
}
