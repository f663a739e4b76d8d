// Package bytesize parses and prints byte quantities such as "64Mi" or "1GB".
//
// Accepted input is a non-negative number, optionally fractional, followed by
// an optional unit. Binary units (Ki, Mi, Gi, Ti, with or without a trailing
// "B") multiply by 1024; decimal units (K, M, G, T, with or without "B")
// by 1000. Units are case-insensitive and may be separated from the number by
// spaces.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

var pattern = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*([a-z]*)\s*$`)

func unitOf(suffix string) (ByteSize, bool) {
	s := strings.ToLower(suffix)
	if s == "" || s == "b" {
		return B, true
	}
	binary := strings.HasSuffix(s, "i") || strings.HasSuffix(s, "ib")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "b"), "i")

	var exp int
	switch s {
	case "k":
		exp = 1
	case "m":
		exp = 2
	case "g":
		exp = 3
	case "t":
		exp = 4
	default:
		return 0, false
	}

	base, mul := KB, ByteSize(1)
	if binary {
		base = KiB
	}
	for i := 0; i < exp; i++ {
		mul *= base
	}
	return mul, true
}

// ParseByteSize parses strings like "1Gi", "500Mi", "100MB" or "1024".
func ParseByteSize(s string) (ByteSize, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	unit, ok := unitOf(m[2])
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}

	if strings.Contains(m[1], ".") {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", m[1])
		}
		return ByteSize(f * float64(unit)), nil
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", m[1])
	}
	return ByteSize(n) * unit, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler. The output is exact and
// parses back to the same value: the largest binary unit dividing b evenly
// is used, e.g. "64Mi", otherwise plain bytes.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range []struct {
		size ByteSize
		name string
	}{{TiB, "Ti"}, {GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"}} {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.name), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a rounded human-readable form, e.g. "1.50GiB".
func (b ByteSize) String() string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Human formats a signed byte count; negative values print as "0B".
func Human(n int64) string {
	if n < 0 {
		n = 0
	}
	return ByteSize(n).String()
}

func (b ByteSize) Uint64() uint64 { return uint64(b) }

// Int64 returns b as an int64. Values above math.MaxInt64 overflow.
func (b ByteSize) Int64() int64 { return int64(b) }
