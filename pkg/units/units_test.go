package units

import (
	"errors"
	"fmt"
	"testing"
	"testing/quick"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0B", 0},
		{"1B", 1},
		{"1023B", 1023},
		{"1KB", 1024},
		{"8KB", 8 * 1024},
		{"100MB", 100 << 20},
		{"1GB", 1 << 30},
		{"5GB", 5 << 30},
		{"2TB", 2 << 40},
	}
	for _, c := range cases {
		got, err := ParseSize(c.in)
		if err != nil {
			t.Errorf("ParseSize(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseSizeFormat(t *testing.T) {
	bad := []string{
		"",
		"10",
		"KB",
		"10kb",
		"10Kb",
		"10 KB",
		" 10KB",
		"10KB ",
		"1.5MB",
		"-1MB",
		"+1MB",
		"MB10",
		"10KBB",
		"10PB",
		"0x10MB",
	}
	for _, in := range bad {
		if _, err := ParseSize(in); !errors.Is(err, ErrFormat) {
			t.Errorf("ParseSize(%q): want ErrFormat, got %v", in, err)
		}
	}
}

func TestParseSizeRange(t *testing.T) {
	bad := []string{
		// Too many digits for int64.
		"99999999999999999999B",
		// Fits in int64 but not once multiplied out.
		"9999999999TB",
		"9007199254740992GB",
	}
	for _, in := range bad {
		if _, err := ParseSize(in); !errors.Is(err, ErrRange) {
			t.Errorf("ParseSize(%q): want ErrRange, got %v", in, err)
		}
	}
}

func TestParseSizeRoundTrip(t *testing.T) {
	for unit, mult := range multipliers {
		unit, mult := unit, mult
		prop := func(raw uint32) bool {
			// Clamped so n*mult stays inside int64 for every unit.
			n := int64(raw % (1 << 20))
			got, err := ParseSize(fmt.Sprintf("%d%s", n, unit))
			return err == nil && got == n*mult
		}
		if err := quick.Check(prop, nil); err != nil {
			t.Errorf("unit %s: %v", unit, err)
		}
	}
}

func TestConversions(t *testing.T) {
	if got := ToMB(3 << 20); got != 3 {
		t.Errorf("ToMB(3MiB) = %v, want 3", got)
	}
	if got := ToGB(1536 << 20); got != 1.5 {
		t.Errorf("ToGB(1.5GiB) = %v, want 1.5", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1536, "1.50KB"},
		{100 << 20, "100.00MB"},
		{3 << 30, "3.00GB"},
		{1 << 40, "1.00TB"},
	}
	for _, c := range cases {
		if got := FormatBytes(c.in); got != c.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
