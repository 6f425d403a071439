package container

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMemory parses a "NNN[KMGT]" memory-limit string into bytes, using
// binary multiples (K=2^10, M=2^20, G=2^30, T=2^40). A bare integer is
// interpreted as bytes.
func parseMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	suffix := s[len(s)-1]
	var mul int64 = 1
	numPart := s
	switch suffix {
	case 'k', 'K':
		mul = 1 << 10
		numPart = s[:len(s)-1]
	case 'm', 'M':
		mul = 1 << 20
		numPart = s[:len(s)-1]
	case 'g', 'G':
		mul = 1 << 30
		numPart = s[:len(s)-1]
	case 't', 'T':
		mul = 1 << 40
		numPart = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	return n * mul, nil
}

// nanoCPUs converts a fractional core count into the container runtime's
// nano-CPU unit (cores * 1e9).
func nanoCPUs(cores float64) int64 {
	return int64(cores * 1e9)
}
