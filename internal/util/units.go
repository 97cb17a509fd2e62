package util

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var iperfSizePattern = regexp.MustCompile(`^([0-9]+)([kKmMgG])?$`)

// ParseBandwidth parses an iperf -b value ("1M", "500k", "2000") and returns
// bits per second. Suffixes are decimal.
func ParseBandwidth(input string) (float64, error) {
	value, unit, err := splitIperfSize(input, "bandwidth")
	if err != nil {
		return 0, err
	}
	switch unit {
	case "":
		return value, nil
	case "k":
		return value * 1e3, nil
	case "m":
		return value * 1e6, nil
	case "g":
		return value * 1e9, nil
	default:
		return 0, fmt.Errorf("unknown bandwidth unit %q", unit)
	}
}

// ParseBufferLength parses an iperf -l value ("8K", "1470") and returns bytes.
// Suffixes are binary, as iperf treats them for buffer sizes.
func ParseBufferLength(input string) (int64, error) {
	value, unit, err := splitIperfSize(input, "length")
	if err != nil {
		return 0, err
	}
	switch unit {
	case "":
		return int64(value), nil
	case "k":
		return int64(value) << 10, nil
	case "m":
		return int64(value) << 20, nil
	case "g":
		return int64(value) << 30, nil
	default:
		return 0, fmt.Errorf("unknown length unit %q", unit)
	}
}

func splitIperfSize(input, what string) (float64, string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, "", fmt.Errorf("%s is empty", what)
	}
	match := iperfSizePattern.FindStringSubmatch(s)
	if match == nil {
		return 0, "", fmt.Errorf("invalid %s %q", what, input)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid %s %q", what, input)
	}
	if value <= 0 {
		return 0, "", errors.New(what + " must be > 0")
	}
	return value, strings.ToLower(match[2]), nil
}
