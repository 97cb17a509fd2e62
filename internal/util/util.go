package util

import (
	"net"
	"strconv"
	"strings"
)

// BoolValue returns *ptr, or fallback when ptr is nil.
func BoolValue(ptr *bool, fallback bool) bool {
	if ptr == nil {
		return fallback
	}
	return *ptr
}

// FirstNonEmpty returns the first non-empty value.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SplitHostPort splits "host[:port]" into its parts. A missing, non-numeric
// or non-positive port yields 0.
func SplitHostPort(hostport string) (string, int) {
	hostport = strings.TrimSpace(hostport)
	if host, portStr, err := net.SplitHostPort(hostport); err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			return host, 0
		}
		return host, port
	}
	host, portStr, found := strings.Cut(hostport, ":")
	if !found || strings.Contains(portStr, ":") {
		return hostport, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return host, 0
	}
	return host, port
}
