package revenue

import (
	"sort"
	"strings"
)

// StatusFilter restricts which order statuses are counted. The zero value
// means "no filter": every status counts. A filter that is present but holds
// no statuses means the user deselected everything, and the result is zero
// without asking upstream.
type StatusFilter struct {
	statuses []string
	present  bool
}

func AllStatuses() StatusFilter {
	return StatusFilter{}
}

// OnlyStatuses builds a present filter. Blank entries are dropped, so
// OnlyStatuses("") is the empty filter.
func OnlyStatuses(statuses ...string) StatusFilter {
	out := make([]string, 0, len(statuses))
	seen := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return StatusFilter{statuses: out, present: true}
}

// ParseStatusFilter decodes a comma separated query value. ok reports whether
// the parameter was sent at all.
func ParseStatusFilter(raw string, ok bool) StatusFilter {
	if !ok {
		return AllStatuses()
	}
	return OnlyStatuses(strings.Split(raw, ",")...)
}

func (f StatusFilter) Present() bool { return f.present }

// IsEmpty is true only for a present filter with no statuses.
func (f StatusFilter) IsEmpty() bool { return f.present && len(f.statuses) == 0 }

func (f StatusFilter) Statuses() []string {
	return append([]string(nil), f.statuses...)
}

// QueryValue is the value forwarded upstream; "" means do not send the parameter.
func (f StatusFilter) QueryValue() string {
	if !f.present {
		return ""
	}
	return strings.Join(f.statuses, ",")
}

// Key is an order-independent representation used in cache keys.
func (f StatusFilter) Key() string {
	if !f.present {
		return "*"
	}
	sorted := f.Statuses()
	sort.Strings(sorted)
	return "[" + strings.Join(sorted, ",") + "]"
}
