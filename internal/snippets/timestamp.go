package snippets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Millis is a Unix timestamp in milliseconds.
type Millis int64

// Now returns the current time in milliseconds.
func Now() Millis {
	return FromTime(time.Now())
}

// FromTime converts t to milliseconds.
func FromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time converts m back to a time.Time in UTC.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// isoLayouts are tried in order when parsing string timestamps. Strings
// without a zone are taken as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseMillis parses an integer millisecond value or an ISO-8601 string.
func ParseMillis(s string) (Millis, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Millis(n), nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON accepts a number, an ISO-8601 string or null.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseMillis(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	*m = Millis(f)
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON. YAML decodes
// unquoted dates as timestamps, so those are handled too.
func (m *Millis) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!null" {
		*m = 0
		return nil
	}
	if node.ShortTag() == "!!timestamp" {
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return err
		}
		*m = FromTime(t)
		return nil
	}
	v, err := ParseMillis(node.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
