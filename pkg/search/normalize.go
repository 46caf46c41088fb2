package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the date format of the After and Before filters.
const DateLayout = "02/01/2006"

// FirstLevelDate is the publication date of the first userlevel. Dates
// before it are clamped.
var FirstLevelDate = time.Date(2015, time.June, 2, 0, 0, 0, 0, time.UTC)

var (
	modeChoices = []string{"Solo", "Coop", "Race"}
	tabChoices  = []string{"Best", "Featured", "Top Weekly", "Hardest"}

	digitsRe  = regexp.MustCompile(`\d+`)
	nonDateRe = regexp.MustCompile(`[^0-9/]`)
)

// incompatible lists groups of filters of which at most one may be enabled.
// The first enabled filter of a group wins.
var incompatible = [][]string{
	{FilterAuthor, FilterAuthorID},
}

const maxScores = 20

func choicesFor(name string) []string {
	switch name {
	case FilterMode:
		return modeChoices
	case FilterTab:
		return tabChoices
	}
	return nil
}

func limitFor(name string) int {
	switch name {
	case FilterMode, FilterTab, FilterAfter, FilterBefore:
		return 10
	case FilterAuthorID, FilterMinID, FilterMaxID:
		return 7
	case FilterScores:
		return 2
	case FilterAuthor:
		return 16
	default:
		return 127
	}
}

func isIDFilter(name string) bool {
	return name == FilterAuthorID || name == FilterMinID || name == FilterMaxID
}

// Normalize fixes the set in place so it can be sent to the backend and
// returns a warning for every change a user would want to know about.
//
// Values are cut to their filter's length limit. Enabled filters with a
// blank value are disabled. Mode and Tab fall back to their first choice
// when unknown. Id filters keep their first run of digits. Dates are
// clamped to [FirstLevelDate, today], and unparsable ones become the end of
// the range they bound. Inverted date and id ranges are swapped. Of
// incompatible filters only the first enabled one stays enabled.
func (s *FilterSet) Normalize(now time.Time) []string {
	var warnings []string
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for i := range s.Filters {
		f := &s.Filters[i]
		v := truncate(f.Value, limitFor(f.Name))

		if strings.TrimSpace(v) == "" {
			if f.Enabled {
				warnings = append(warnings, fmt.Sprintf("%q is empty -> disabled", f.Name))
			}
			f.Value, f.Enabled = v, false
			continue
		}

		switch {
		case choicesFor(f.Name) != nil:
			choices := choicesFor(f.Name)
			if !containsFold(choices, v) {
				warnings = append(warnings, fmt.Sprintf("%q is not a valid %s -> %q", v, f.Name, choices[0]))
				v = choices[0]
			} else {
				v = canonical(choices, v)
			}
		case isIDFilter(f.Name):
			v = digitsRe.FindString(v)
		case f.Name == FilterScores:
			v = digitsRe.FindString(v)
			if n, err := strconv.Atoi(v); err == nil && n > maxScores {
				v = strconv.Itoa(maxScores)
			}
		case f.Name == FilterAfter || f.Name == FilterBefore:
			v = normalizeDate(f.Name, v, today)
		}

		f.Value = truncate(v, limitFor(f.Name))
		if f.Enabled && f.Value == "" {
			warnings = append(warnings, fmt.Sprintf("%q has no usable value -> disabled", f.Name))
			f.Enabled = false
		}
	}

	for _, group := range incompatible {
		seen := false
		for _, name := range group {
			i := s.index(name)
			if i < 0 || !s.Filters[i].Enabled {
				continue
			}
			if seen {
				s.Filters[i].Enabled = false
				warnings = append(warnings, fmt.Sprintf("%q is incompatible with %q -> disabled", name, group[0]))
			}
			seen = true
		}
	}

	if s.swapIfInverted(FilterAfter, FilterBefore, func(a, b string) bool {
		ta, errA := time.Parse(DateLayout, a)
		tb, errB := time.Parse(DateLayout, b)
		return errA == nil && errB == nil && ta.After(tb)
	}) {
		warnings = append(warnings, "'After' date was greater than 'Before' date -> swapped")
	}

	if s.swapIfInverted(FilterMinID, FilterMaxID, func(a, b string) bool {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		return errA == nil && errB == nil && na > nb
	}) {
		warnings = append(warnings, "'Min ID' was greater than 'Max ID' -> swapped")
	}

	return warnings
}

func (s *FilterSet) swapIfInverted(lo, hi string, inverted func(a, b string) bool) bool {
	i, j := s.index(lo), s.index(hi)
	if i < 0 || j < 0 || !inverted(s.Filters[i].Value, s.Filters[j].Value) {
		return false
	}
	s.Filters[i].Value, s.Filters[j].Value = s.Filters[j].Value, s.Filters[i].Value
	return true
}

func normalizeDate(name, v string, today time.Time) string {
	v = nonDateRe.ReplaceAllString(v, "")
	d, err := time.Parse(DateLayout, v)
	switch {
	case err != nil && name == FilterAfter:
		d = FirstLevelDate
	case err != nil:
		d = today
	case d.Before(FirstLevelDate):
		d = FirstLevelDate
	case d.After(today):
		d = today
	}
	return d.Format(DateLayout)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func containsFold(choices []string, v string) bool {
	return canonical(choices, v) != ""
}

func canonical(choices []string, v string) string {
	for _, c := range choices {
		if strings.EqualFold(c, v) {
			return c
		}
	}
	return ""
}
