// Package configutil parses the human-friendly scalar formats used in the
// service configuration: durations like "30d12h" and byte sizes like "400kb".
package configutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`(?i)^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)
	byteSizePattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*([kmgtp]?i?b?)?\s*$`)
)

// ParseFlexibleDuration reads durations composed of day, hour, minute and
// second components. Empty input and a bare "0" both mean zero.
func ParseFlexibleDuration(raw string) (time.Duration, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" || clean == "0" {
		return 0, nil
	}
	matches := durationPattern.FindStringSubmatch(clean)
	if matches == nil || allEmpty(matches[1:]) {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	for i, unit := range units {
		if matches[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", raw, err)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

func allEmpty(groups []string) bool {
	for _, g := range groups {
		if g != "" {
			return false
		}
	}
	return true
}

const maxInt64 = int64(^uint64(0) >> 1)

// ParseByteSize reads sizes like "42", "400kb" or "5MiB". Units are powers of
// 1024 regardless of the i infix.
func ParseByteSize(raw string) (int64, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return 0, nil
	}
	matches := byteSizePattern.FindStringSubmatch(clean)
	if matches == nil {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", matches[1], err)
	}
	unit := strings.ToLower(strings.TrimSpace(matches[2]))
	if unit == "" || unit == "b" {
		return value, nil
	}
	multiplier, ok := sizeMultiplier(unit)
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", matches[2])
	}
	if value > 0 && value > maxInt64/multiplier {
		return 0, fmt.Errorf("size %q overflows", raw)
	}
	return value * multiplier, nil
}

func sizeMultiplier(unit string) (int64, bool) {
	switch unit {
	case "k", "kb", "kib":
		return 1 << 10, true
	case "m", "mb", "mib":
		return 1 << 20, true
	case "g", "gb", "gib":
		return 1 << 30, true
	case "t", "tb", "tib":
		return 1 << 40, true
	case "p", "pb", "pib":
		return 1 << 50, true
	default:
		return 0, false
	}
}
