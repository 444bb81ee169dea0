package dashboard

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWindow parses a window such as "30d", "2w" or any time.ParseDuration
// string. An empty string returns fallback; "all" returns 0.
func ParseWindow(s string, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return fallback, nil
	case "all":
		return 0, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit > 0 {
		n, err := strconv.Atoi(s[:len(s)-1])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	return d, nil
}
