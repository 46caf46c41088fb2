package search

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Filter names understood by the backend.
const (
	FilterTitle       = "Title"
	FilterAuthor      = "Author"
	FilterAuthorID    = "Author ID"
	FilterMode        = "Mode"
	FilterTab         = "Tab"
	FilterAfter       = "After"
	FilterBefore      = "Before"
	FilterMinID       = "Min ID"
	FilterMaxID       = "Max ID"
	FilterZerothBy    = "0th by"
	FilterZerothNotBy = "0th not by"
	FilterScores      = "Scores"
)

// FilterNames lists every filter in display order.
var FilterNames = []string{
	FilterTitle,
	FilterAuthor,
	FilterAuthorID,
	FilterMode,
	FilterTab,
	FilterAfter,
	FilterBefore,
	FilterMinID,
	FilterMaxID,
	FilterZerothBy,
	FilterZerothNotBy,
	FilterScores,
}

// Filter is one search term. Only enabled filters take part in a search.
type Filter struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

// FilterSet is an ordered list of filters, usually one per known name.
type FilterSet struct {
	Name    string   `yaml:"name" json:"name"`
	Filters []Filter `yaml:"filters" json:"filters"`
}

// NewFilterSet returns a set holding every known filter, all disabled.
// Mode and Tab start at their first choice.
func NewFilterSet(name string) FilterSet {
	set := FilterSet{Name: name, Filters: make([]Filter, 0, len(FilterNames))}
	for _, n := range FilterNames {
		f := Filter{Name: n}
		if choices := choicesFor(n); choices != nil {
			f.Value = choices[0]
		}
		set.Filters = append(set.Filters, f)
	}
	return set
}

// Clone returns a deep copy of s.
func (s FilterSet) Clone() FilterSet {
	s.Filters = slices.Clone(s.Filters)
	return s
}

// Get returns the filter called name.
func (s FilterSet) Get(name string) (Filter, bool) {
	i := s.index(name)
	if i < 0 {
		return Filter{}, false
	}
	return s.Filters[i], true
}

// Set stores value and state for name, appending the filter if absent.
func (s *FilterSet) Set(name, value string, enabled bool) {
	if i := s.index(name); i >= 0 {
		s.Filters[i].Value = value
		s.Filters[i].Enabled = enabled
		return
	}
	s.Filters = append(s.Filters, Filter{Name: name, Value: value, Enabled: enabled})
}

// Enabled returns the enabled filters in set order.
func (s FilterSet) Enabled() []Filter {
	var out []Filter
	for _, f := range s.Filters {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// CacheKey identifies the search for caching: a JSON array of
// [name, lower(value)] pairs of the enabled filters, sorted by name. Sets
// that differ only in disabled filters, order or letter case share a key.
func (s FilterSet) CacheKey() string {
	enabled := s.Enabled()
	pairs := make([][2]string, 0, len(enabled))
	for _, f := range enabled {
		pairs = append(pairs, [2]string{f.Name, strings.ToLower(f.Value)})
	}
	slices.SortStableFunc(pairs, func(a, b [2]string) int {
		return strings.Compare(a[0], b[0])
	})
	out, _ := json.Marshal(pairs)
	return string(out)
}

// Query renders the enabled filters as backend clauses:
// `name "value"` with a lower-cased name and an escaped, lower-cased value,
// joined by single spaces.
func (s FilterSet) Query() string {
	enabled := s.Enabled()
	clauses := make([]string, 0, len(enabled))
	for _, f := range enabled {
		clauses = append(clauses, strings.ToLower(f.Name)+" \""+Escape(strings.ToLower(f.Value))+"\"")
	}
	return strings.Join(clauses, " ")
}

// Escape escapes quotes, backslashes and control characters the way a
// quoted string literal would, without the surrounding quotes.
func Escape(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}

// PageKey is the cache key of one page of a search.
func PageKey(key string, page int) string {
	if page <= 0 {
		return key
	}
	return key + "#page=" + strconv.Itoa(page)
}

func (s FilterSet) index(name string) int {
	return slices.IndexFunc(s.Filters, func(f Filter) bool { return f.Name == name })
}
