package schema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes. Template documents may spell it as a plain
// integer or with a unit suffix ("512KB", "5MB", "2MiB").
type ByteSize int64

var byteUnits = []struct {
	suffix string
	factor int64
}{
	{"KIB", 1 << 10},
	{"MIB", 1 << 20},
	{"GIB", 1 << 30},
	{"KB", 1000},
	{"MB", 1000 * 1000},
	{"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

// ParseByteSize parses a size such as "5MB" or "1048576".
func ParseByteSize(raw string) (ByteSize, error) {
	text := strings.ToUpper(strings.TrimSpace(raw))
	if text == "" {
		return 0, nil
	}
	factor := int64(1)
	for _, unit := range byteUnits {
		if strings.HasSuffix(text, unit.suffix) {
			factor = unit.factor
			text = strings.TrimSpace(strings.TrimSuffix(text, unit.suffix))
			break
		}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("schema: invalid size %q", raw)
	}
	return ByteSize(value * float64(factor)), nil
}

// UnmarshalYAML accepts integers and unit-suffixed strings.
func (s *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseByteSize(node.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalJSON accepts integers and unit-suffixed strings.
func (s *ByteSize) UnmarshalJSON(data []byte) error {
	parsed, err := ParseByteSize(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// String renders the size with the largest unit that divides it evenly.
func (s ByteSize) String() string {
	n := int64(s)
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", n>>20)
	case n >= 1000*1000 && n%(1000*1000) == 0:
		return fmt.Sprintf("%dMB", n/(1000*1000))
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", n>>10)
	case n >= 1000 && n%1000 == 0:
		return fmt.Sprintf("%dKB", n/1000)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
