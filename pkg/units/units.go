// Package units parses and formats the human-readable byte sizes the
// CLI and config file accept. Units are binary: 1KB is 1024 bytes,
// 1MB is 1024*1024, and so on up to TB.
package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

const (
	B  int64 = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
	TB       = 1024 * GB
)

var (
	// ErrFormat reports input that is not <integer><unit> with one of
	// the supported unit suffixes.
	ErrFormat = errors.New("expected <number> followed by B, KB, MB, GB or TB")

	// ErrRange reports a size whose byte count does not fit in an int64.
	ErrRange = errors.New("size out of range")
)

var sizeRe = regexp.MustCompile(`^([0-9]+)(B|KB|MB|GB|TB)$`)

var multipliers = map[string]int64{
	"B":  B,
	"KB": KB,
	"MB": MB,
	"GB": GB,
	"TB": TB,
}

// ParseSize converts a size like "512MB" or "2GB" into a byte count.
// The whole string must match the grammar: no fractions, no spaces,
// and the unit suffix is case-sensitive.
func ParseSize(s string) (int64, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Wrapf(ErrFormat, "invalid size %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// The regexp only admits digits, so the sole failure mode left
		// is a number too large for int64.
		return 0, errors.Wrapf(ErrRange, "size %q", s)
	}
	mult := multipliers[m[2]]
	if n > math.MaxInt64/mult {
		return 0, errors.Wrapf(ErrRange, "size %q overflows a byte count", s)
	}
	return n * mult, nil
}

// ToMB returns n as a count of binary megabytes.
func ToMB(n int64) float64 { return float64(n) / float64(MB) }

// ToGB returns n as a count of binary gigabytes.
func ToGB(n int64) float64 { return float64(n) / float64(GB) }

// FormatBytes renders a byte count using the largest unit that fits,
// e.g. 1536 -> "1.50KB".
func FormatBytes(n int64) string {
	switch {
	case n >= TB:
		return fmt.Sprintf("%.2fTB", float64(n)/float64(TB))
	case n >= GB:
		return fmt.Sprintf("%.2fGB", float64(n)/float64(GB))
	case n >= MB:
		return fmt.Sprintf("%.2fMB", float64(n)/float64(MB))
	case n >= KB:
		return fmt.Sprintf("%.2fKB", float64(n)/float64(KB))
	}
	return fmt.Sprintf("%dB", n)
}
