package alarmtree

import (
	"strconv"
	"strings"
)

// SortKey orders sibling nodes on export. Numeric keys sort before
// non-numeric keys; numeric keys compare by value, the rest lexically.
// The zero value is the lexically smallest non-numeric key.
type SortKey struct {
	text    string
	num     float64
	numeric bool
}

// NumericKey returns a key comparing by numeric value.
func NumericKey(v float64) SortKey {
	return SortKey{num: v, numeric: true}
}

// ParseSortKey returns a numeric key when s parses as a number and a lexical
// key otherwise.
func ParseSortKey(s string) SortKey {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return NumericKey(v)
	}

	return SortKey{text: s}
}

// Less reports whether k orders before other.
func (k SortKey) Less(other SortKey) bool {
	if k.numeric != other.numeric {
		return k.numeric
	}

	if k.numeric {
		return k.num < other.num
	}

	return k.text < other.text
}

// String renders the key in display form.
func (k SortKey) String() string {
	if k.numeric {
		return strconv.FormatFloat(k.num, 'g', -1, 64)
	}

	return k.text
}
