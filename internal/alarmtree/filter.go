package alarmtree

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slotPattern matches standalone slot letters in a CALC expression. Word
// boundaries keep letters inside function names and PV names untouched.
var slotPattern = regexp.MustCompile(`\b[A-F]\b`)

// AlarmFilter models one force condition in both representations. Expr is a
// plain PV name or a CALC expression over the slots A to F; Replacements
// maps the referenced slots to PV names.
type AlarmFilter struct {
	// Expr is the PV name or CALC expression.
	Expr string
	// Value is the threshold the expression is compared against.
	Value float64
	// Bool marks the expression itself as the condition; Value is ignored
	// and no comparison is emitted.
	Bool bool
	// Enabling selects polarity: true means a matching expression enables
	// the alarm, false means it disables it.
	Enabling bool
	// Replacements maps slot letters to PV names.
	Replacements map[string]string
}

// NewFilter returns a filter comparing expr against value.
func NewFilter(expr string, value float64, enabling bool) *AlarmFilter {
	return &AlarmFilter{
		Expr:         expr,
		Value:        value,
		Enabling:     enabling,
		Replacements: make(map[string]string),
	}
}

// NewBoolFilter returns a filter whose expression is the condition itself.
func NewBoolFilter(expr string, enabling bool) *AlarmFilter {
	f := NewFilter(expr, 1, enabling)
	f.Bool = true

	return f
}

// FilterString renders the condition in the console's filter syntax: legacy
// comparison tokens rewritten, slots substituted with PV names, and the
// polarity applied as a comparison or a negation.
func (f *AlarmFilter) FilterString() string {
	expr := rewriteComparisons(f.Expr)
	expr, substituted := f.substituteSlots(expr)

	if f.Bool {
		if !f.Enabling {
			return "!(" + expr + ")"
		}

		if substituted {
			return "(" + expr + ")"
		}

		return expr
	}

	op := "=="
	if !f.Enabling {
		op = "!="
	}

	return fmt.Sprintf("(%s) %s %s", expr, op, formatNumber(f.Value))
}

// ForceLines renders the condition as legacy force PV lines: the single-PV
// form when possible, otherwise the CALC header followed by the expression
// and one line per substituted slot, sorted by letter. The owning channel's
// latching state shapes the mask.
func (f *AlarmFilter) ForceLines(latching bool) []string {
	mask := Mask(f.Enabling, latching)

	value := "1"
	if !f.Bool {
		value = formatNumber(f.Value)
	}

	if !f.Bool && len(f.Replacements) == 0 {
		return []string{fmt.Sprintf("$FORCEPV %s %s %s NE", f.Expr, mask, value)}
	}

	lines := []string{
		fmt.Sprintf("$FORCEPV CALC %s %s NE", mask, value),
		"$FORCEPV_CALC " + f.Expr,
	}

	slots := make([]string, 0, len(f.Replacements))
	for slot := range f.Replacements {
		slots = append(slots, slot)
	}

	sort.Strings(slots)

	for _, slot := range slots {
		lines = append(lines, fmt.Sprintf("$FORCEPV_CALC_%s %s", slot, f.Replacements[slot]))
	}

	return lines
}

// substituteSlots replaces standalone slot letters with their PV names in a
// single pass, so substituted text is never substituted again.
func (f *AlarmFilter) substituteSlots(expr string) (string, bool) {
	if len(f.Replacements) == 0 {
		return expr, false
	}

	substituted := false

	out := slotPattern.ReplaceAllStringFunc(expr, func(slot string) string {
		pv, ok := f.Replacements[slot]
		if !ok {
			return slot
		}

		substituted = true

		return pv
	})

	return out, substituted
}

// rewriteComparisons converts legacy CALC comparison tokens to console
// operators: a bare "=" becomes " == " and "#" becomes " != ".
func rewriteComparisons(expr string) string {
	var b strings.Builder

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		switch {
		case c == '#':
			b.WriteString(" != ")
		case c == '=':
			partOfOperator := i > 0 && strings.IndexByte("<>!=", expr[i-1]) >= 0
			followedByEqual := i+1 < len(expr) && expr[i+1] == '='

			if partOfOperator || followedByEqual {
				b.WriteByte(c)
			} else {
				b.WriteString(" == ")
			}
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// Mask renders the five-letter legacy alarm mask: C and D when alarming is
// off, T when the alarm does not latch.
func Mask(enabled, latching bool) string {
	mask := []byte("-----")

	if !enabled {
		mask[0] = 'C'
		mask[1] = 'D'
	}

	if !latching {
		mask[3] = 'T'
	}

	return string(mask)
}

// formatNumber renders thresholds the way the legacy tools write them,
// without a trailing ".0" on integral values.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
