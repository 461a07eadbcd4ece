package stats

import "fmt"

// TimeRange selects the period top tracks and artists are computed over.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// DefaultTimeRange is used when no range is requested.
const DefaultTimeRange = ShortTerm

// ParseTimeRange validates s. An empty string yields DefaultTimeRange.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(s); r {
	case "":
		return DefaultTimeRange, nil
	case ShortTerm, MediumTerm, LongTerm:
		return r, nil
	default:
		return "", fmt.Errorf("invalid time range %q: must be one of short_term, medium_term, long_term", s)
	}
}

// Label returns the human-readable name of the range.
func (r TimeRange) Label() string {
	switch r {
	case ShortTerm:
		return "Last 4 Weeks"
	case MediumTerm:
		return "Last 6 Months"
	case LongTerm:
		return "Lifetime"
	default:
		return string(r)
	}
}
