package binding

import (
	"fmt"
	"strings"
)

// Anchor run input keys. A section-scoped key, when present, overrides the
// template-wide key for every subsection in that section.
const (
	AnchorYearKey    = "period_fiscal_year"
	AnchorQuarterKey = "period_fiscal_quarter"
)

// SectionAnchorYearKey returns the section-scoped override key for the
// anchor fiscal year.
func SectionAnchorYearKey(sectionID string) string {
	return fmt.Sprintf("section_%s_%s", sectionID, AnchorYearKey)
}

// SectionAnchorQuarterKey returns the section-scoped override key for the
// anchor fiscal quarter.
func SectionAnchorQuarterKey(sectionID string) string {
	return fmt.Sprintf("section_%s_%s", sectionID, AnchorQuarterKey)
}

// FiscalQuarters lists the valid quarter labels in fiscal order.
var FiscalQuarters = []string{"Q1", "Q2", "Q3", "Q4"}

var quarterIndex = map[string]int{"Q1": 0, "Q2": 1, "Q3": 2, "Q4": 3}

// Period is a single fiscal year/quarter pair.
type Period struct {
	FiscalYear    int
	FiscalQuarter string
}

// NormalizeQuarter accepts the common spellings of a fiscal quarter: "Q3",
// "q3", or the bare quarter number 3.
func NormalizeQuarter(raw interface{}) (string, bool) {
	switch t := raw.(type) {
	case string:
		q := strings.ToUpper(strings.TrimSpace(t))
		if _, ok := quarterIndex[q]; ok {
			return q, true
		}
		if n, ok := coerceInt(q); ok && n >= 1 && n <= 4 {
			return FiscalQuarters[n-1], true
		}
	default:
		if n, ok := coerceInt(raw); ok && n >= 1 && n <= 4 {
			return FiscalQuarters[n-1], true
		}
	}
	return "", false
}

// NormalizeYear accepts an integer fiscal year in any JSON scalar spelling.
func NormalizeYear(raw interface{}) (int, bool) {
	return coerceInt(raw)
}

// Shift moves a period by offset quarters. Negative offsets move into the
// past. Shifting by +k and then -k always returns the original period.
func Shift(p Period, offset int) Period {
	abs := p.FiscalYear*4 + quarterIndex[p.FiscalQuarter] + offset
	return Period{
		FiscalYear:    floorDiv(abs, 4),
		FiscalQuarter: FiscalQuarters[floorMod(abs, 4)],
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((a < 0) != (b < 0)) {
		m += b
	}
	return m
}

// Quarter offsets for the scalar period selectors.
var selectorOffsets = map[string]int{
	"current":      0,
	"last_quarter": -1,
	"qoq":          -1,
	"yoy":          -4,
}

const trailingSelector = "trailing_quarters"

const defaultTrailingCount = 4

// SelectorShape reports the JSON shape a selector resolves to: "object" for
// the plain selectors, "integer"/"string" for the .fiscal_year and
// .fiscal_quarter projections, and "array" for trailing_quarters.
func SelectorShape(selector string) (string, bool) {
	base, projection := splitSelector(selector)
	if base == trailingSelector {
		if projection != "" {
			return "", false
		}
		return "array", true
	}
	if _, ok := selectorOffsets[base]; !ok {
		return "", false
	}
	switch projection {
	case "":
		return "object", true
	case "fiscal_year":
		return "integer", true
	case "fiscal_quarter":
		return "string", true
	}
	return "", false
}

func splitSelector(selector string) (base, projection string) {
	if i := strings.Index(selector, "."); i >= 0 {
		return selector[:i], selector[i+1:]
	}
	return selector, ""
}

func periodObject(p Period) map[string]interface{} {
	return map[string]interface{}{
		"fiscal_year":    p.FiscalYear,
		"fiscal_quarter": p.FiscalQuarter,
	}
}

// resolveSelector materializes a period binding against the anchor. The
// returned value uses plain JSON shapes so downstream type checks see the
// same structures a literal configuration would carry.
func resolveSelector(b PeriodBinding, anchor Period) (interface{}, error) {
	base, projection := splitSelector(b.Selector)

	if base == trailingSelector {
		if projection != "" {
			return nil, fmt.Errorf("unsupported period selector '%s'", b.Selector)
		}
		count := defaultTrailingCount
		if b.HasCount {
			if b.Count < 1 {
				return nil, fmt.Errorf("period binding '$count' must be a positive integer")
			}
			count = b.Count
		}
		// Oldest to newest, ending at the anchor.
		out := make([]interface{}, 0, count)
		for i := count - 1; i >= 0; i-- {
			out = append(out, periodObject(Shift(anchor, -i)))
		}
		return out, nil
	}

	offset, ok := selectorOffsets[base]
	if !ok {
		return nil, fmt.Errorf("unsupported period selector '%s'", b.Selector)
	}
	p := Shift(anchor, offset)
	switch projection {
	case "":
		return periodObject(p), nil
	case "fiscal_year":
		return p.FiscalYear, nil
	case "fiscal_quarter":
		return p.FiscalQuarter, nil
	}
	return nil, fmt.Errorf("unsupported period selector '%s'", b.Selector)
}
