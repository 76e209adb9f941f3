package chart

import (
	"strings"
)

// Kind is the semantic kind of a metric column, derived from its name.
type Kind int

const (
	KindOther Kind = iota
	KindSpend
	KindVolume
	KindUnit
)

func (k Kind) String() string {
	switch k {
	case KindSpend:
		return "spend"
	case KindVolume:
		return "volume"
	case KindUnit:
		return "unit"
	default:
		return "other"
	}
}

// Unit and sale outcome columns.
const (
	UnitColumn = "O_UNIT"
	SaleColumn = "O_SALE"

	totalSpendsColumn = "Total_spends"
)

// SuffixFamily maps a canonical metric suffix to its accepted spellings.
// Spellings are stored upper-case and without the leading separator.
type SuffixFamily struct {
	Canonical string
	Spellings []string
}

// Suffix families known to the resolver.
var (
	SpendFamily  = SuffixFamily{Canonical: "SPEND", Spellings: []string{"SPEND", "SPENDS", "SPND"}}
	ImpFamily    = SuffixFamily{Canonical: "IMP", Spellings: []string{"IMP", "IMPS", "IMPR", "IMPRESSION", "IMPRESSIONS"}}
	ClickFamily  = SuffixFamily{Canonical: "CLK", Spellings: []string{"CLK", "CLKS", "CLICKS"}}
	metricFamily = []SuffixFamily{SpendFamily, ImpFamily, ClickFamily}
)

// Suffixes returns the family spellings as "_X" column suffixes, canonical first.
func (f SuffixFamily) Suffixes() []string {
	out := make([]string, len(f.Spellings))
	for i, s := range f.Spellings {
		out[i] = "_" + s
	}
	return out
}

// contains reports whether body is one of the family's spellings.
func (f SuffixFamily) contains(body string) bool {
	for _, s := range f.Spellings {
		if strings.EqualFold(s, body) {
			return true
		}
	}
	return false
}

// Resolve finds the column for prefix carrying one of suffixes.
//
// Exact matches (prefix+suffix, tried in suffix order) always win. Otherwise
// each suffix is tried in order against every column in column order with a
// case-insensitive comparison that allows at most one '_' between the prefix
// and the suffix body. A suffix whose body belongs to a SuffixFamily also
// accepts every other spelling of that family, so "_SPEND" finds "X_SPND".
// An empty suffix list never matches.
func Resolve(prefix string, columns []string, suffixes []string) (string, bool) {
	if len(suffixes) == 0 {
		return "", false
	}

	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	for _, s := range suffixes {
		if _, ok := present[prefix+s]; ok {
			return prefix + s, true
		}
	}

	for _, s := range suffixes {
		accept := acceptedBodies(s)
		for _, c := range columns {
			if tolerantMatch(prefix, c, accept) {
				return c, true
			}
		}
	}
	return "", false
}

// ResolveFamily resolves prefix against every spelling of family.
func ResolveFamily(prefix string, columns []string, family SuffixFamily) (string, bool) {
	return Resolve(prefix, columns, family.Suffixes())
}

// acceptedBodies returns the upper-cased suffix bodies equivalent to suffix.
func acceptedBodies(suffix string) map[string]struct{} {
	body := strings.ToUpper(strings.TrimPrefix(suffix, "_"))
	out := map[string]struct{}{body: {}}
	for _, f := range metricFamily {
		if f.contains(body) {
			for _, s := range f.Spellings {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func tolerantMatch(prefix, column string, accept map[string]struct{}) bool {
	if len(column) < len(prefix) || !strings.EqualFold(column[:len(prefix)], prefix) {
		return false
	}
	rest := column[len(prefix):]
	rest = strings.TrimPrefix(rest, "_")
	if rest == "" {
		return false
	}
	_, ok := accept[strings.ToUpper(rest)]
	return ok
}

// StripMetricSuffix removes one trailing "_<spelling>" of any known metric
// family (case-insensitive) and returns the remaining tactic prefix.
func StripMetricSuffix(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i <= 0 {
		return name
	}
	body := name[i+1:]
	for _, f := range metricFamily {
		if f.contains(body) {
			return name[:i]
		}
	}
	return name
}

// familyOf returns the metric family whose spelling ends name, if any.
func familyOf(name string) (SuffixFamily, bool) {
	i := strings.LastIndexByte(name, '_')
	if i < 0 {
		return SuffixFamily{}, false
	}
	body := name[i+1:]
	for _, f := range metricFamily {
		if f.contains(body) {
			return f, true
		}
	}
	return SuffixFamily{}, false
}

// ClassifyColumn derives the semantic kind of a column from its name.
func ClassifyColumn(name string) Kind {
	if name == UnitColumn || name == SaleColumn {
		return KindUnit
	}
	upper := strings.ToUpper(name)
	if strings.Contains(upper, "SPEND") || name == totalSpendsColumn {
		return KindSpend
	}
	if f, ok := familyOf(name); ok {
		switch f.Canonical {
		case SpendFamily.Canonical:
			return KindSpend
		case ImpFamily.Canonical, ClickFamily.Canonical:
			return KindVolume
		}
	}
	if strings.Contains(upper, "IMP") || strings.Contains(upper, "CLK") {
		return KindVolume
	}
	return KindOther
}

// isMetaColumn reports whether name carries row metadata rather than a metric.
func isMetaColumn(name string) bool {
	return name == DateColumn || name == IndexColumn || name == YearFlagColumn
}

// MetricColumns returns columns with the metadata columns removed.
func MetricColumns(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !isMetaColumn(c) {
			out = append(out, c)
		}
	}
	return out
}
