package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBandwidth converts "512K", "10M", "1G" or a plain byte count to bytes
// per second. Suffixes are binary multiples; an empty string or "0" means
// unlimited.
func ParseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/S"), "B")
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth %q: %w", s, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid bandwidth %q: must not be negative", s)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatBandwidth renders bytes per second with a binary suffix
func FormatBandwidth(bytesPerSecond int64) string {
	switch {
	case bytesPerSecond <= 0:
		return "unlimited"
	case bytesPerSecond >= 1<<30 && bytesPerSecond%(1<<30) == 0:
		return fmt.Sprintf("%dG/s", bytesPerSecond>>30)
	case bytesPerSecond >= 1<<20 && bytesPerSecond%(1<<20) == 0:
		return fmt.Sprintf("%dM/s", bytesPerSecond>>20)
	case bytesPerSecond >= 1<<10 && bytesPerSecond%(1<<10) == 0:
		return fmt.Sprintf("%dK/s", bytesPerSecond>>10)
	default:
		return fmt.Sprintf("%dB/s", bytesPerSecond)
	}
}
