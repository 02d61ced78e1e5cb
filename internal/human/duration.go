package human

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	Day  = Duration(24 * time.Hour)
	Week = 7 * Day
)

// Duration is based on time.Duration, but accepts days and weeks in addition
// to the units supported by time.ParseDuration:
//
//	500ms
//	1m30s
//	2d
//	1 week
type Duration time.Duration

func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	value, unit := parseUnit(s)
	switch unit {
	case "d", "day", "days":
		return scale(s, value, Day)
	case "w", "week", "weeks":
		return scale(s, value, Week)
	}

	d, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0, fmt.Errorf("malformed duration: %q: %w", s, err)
	}
	return Duration(d), nil
}

func scale(s, value string, unit Duration) (Duration, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration: %q: %w", s, err)
	}
	return Duration(f * float64(unit)), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) Set(s string) error {
	p, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.Set(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(y *yaml.Node) error {
	var s string
	if err := y.Decode(&s); err != nil {
		return err
	}
	return d.Set(s)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	return d.Set(string(b))
}

var (
	_ encoding.TextMarshaler   = Duration(0)
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ json.Marshaler           = Duration(0)
	_ json.Unmarshaler         = (*Duration)(nil)
	_ yaml.Marshaler           = Duration(0)
	_ yaml.Unmarshaler         = (*Duration)(nil)
	_ flag.Value               = (*Duration)(nil)
)
