package human

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Bytes represents a number of bytes.
//
// Values may carry units using factors of 1000 (KB, MB, GB) or factors of
// 1024 (KiB, MiB, GiB, or the short forms Ki, Mi, Gi). Formatting always uses
// factors of 1024.
type Bytes uint64

const (
	B Bytes = 1

	KB Bytes = 1000 * B
	MB Bytes = 1000 * KB
	GB Bytes = 1000 * MB

	KiB Bytes = 1024 * B
	MiB Bytes = 1024 * KiB
	GiB Bytes = 1024 * MiB
)

var byteUnits = map[string]Bytes{
	"": B, "b": B,
	"kb": KB, "mb": MB, "gb": GB,
	"k": KiB, "ki": KiB, "kib": KiB,
	"m": MiB, "mi": MiB, "mib": MiB,
	"g": GiB, "gi": GiB, "gib": GiB,
}

func ParseBytes(s string) (Bytes, error) {
	value, unit := parseUnit(s)

	scale, ok := byteUnits[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("malformed bytes representation: %q", s)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed bytes representation: %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid negative byte count: %q", s)
	}
	return Bytes(math.Floor(f * float64(scale))), nil
}

func (b Bytes) String() string {
	for _, u := range [...]struct {
		scale Bytes
		unit  string
	}{{GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}} {
		if b >= u.scale && b%u.scale == 0 {
			return strconv.FormatUint(uint64(b/u.scale), 10) + " " + u.unit
		}
	}
	return strconv.FormatUint(uint64(b), 10) + " B"
}

// Int returns b as an int, saturating at math.MaxInt.
func (b Bytes) Int() int {
	if b > math.MaxInt {
		return math.MaxInt
	}
	return int(b)
}

func (b *Bytes) Set(s string) error {
	p, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b = p
	return nil
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(b))
}

func (b *Bytes) UnmarshalJSON(j []byte) error {
	var s string
	if err := json.Unmarshal(j, &s); err == nil {
		return b.Set(s)
	}
	return json.Unmarshal(j, (*uint64)(b))
}

func (b Bytes) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *Bytes) UnmarshalYAML(y *yaml.Node) error {
	var s string
	if err := y.Decode(&s); err != nil {
		return err
	}
	return b.Set(s)
}

func (b *Bytes) UnmarshalText(t []byte) error {
	return b.Set(string(t))
}

var (
	_ encoding.TextUnmarshaler = (*Bytes)(nil)
	_ json.Marshaler           = Bytes(0)
	_ json.Unmarshaler         = (*Bytes)(nil)
	_ yaml.Marshaler           = Bytes(0)
	_ yaml.Unmarshaler         = (*Bytes)(nil)
	_ flag.Value               = (*Bytes)(nil)
)
