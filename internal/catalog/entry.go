// Package catalog holds the static phone dataset the assistant is allowed to discuss.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Entry is one phone record. Entries are immutable after load.
type Entry struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Price        int     `json:"price"`
	Camera       int     `json:"camera"`  // megapixels
	Battery      int     `json:"battery"` // mAh
	Display      float64 `json:"display"` // inches
	OneHandUse   bool    `json:"oneHandUse"`
	FastCharging int     `json:"fastCharging"` // watts
}

// Name returns the display name "Brand Model".
func (e Entry) Name() string {
	return e.Brand + " " + e.Model
}

// Key returns the lowercase identity of the entry.
func (e Entry) Key() string {
	return strings.ToLower(e.Name())
}

// Same reports whether two entries share the same (brand, model) identity.
func (e Entry) Same(other Entry) bool {
	return e.Key() == other.Key()
}

// RawEntry mirrors a record in the source JSON. Numeric fields accept either
// a JSON number or a unit-suffixed string such as "50MP" or "5000mAh".
type RawEntry struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Price        *Number `json:"price"`
	Camera       *Number `json:"camera"`
	Battery      *Number `json:"battery"`
	Display      *Number `json:"display"`
	OneHandUse   bool    `json:"oneHandUse"`
	FastCharging *Number `json:"fastCharging"`
}

// Number is a numeric field that may carry a unit suffix in the source data.
type Number struct {
	raw string
}

// NumberOf builds a Number from its textual form, for programmatic loads.
func NumberOf(raw string) *Number {
	return &Number{raw: raw}
}

// UnmarshalJSON accepts numbers and strings.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("numeric field is null")
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.raw = s
		return nil
	}
	n.raw = string(data)
	return nil
}

// String returns the raw textual form.
func (n *Number) String() string {
	if n == nil {
		return ""
	}
	return n.raw
}

var leadingNumber = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)`)

// Float parses the leading numeric part, ignoring any unit suffix.
func (n *Number) Float() (float64, error) {
	if n == nil {
		return 0, fmt.Errorf("missing value")
	}
	m := leadingNumber.FindStringSubmatch(n.raw)
	if m == nil {
		return 0, fmt.Errorf("no numeric value in %q", n.raw)
	}
	return strconv.ParseFloat(m[1], 64)
}

// Int parses the leading integer part, ignoring any fraction or unit suffix.
func (n *Number) Int() (int, error) {
	f, err := n.Float()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
