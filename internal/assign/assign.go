// Package assign implements the scanner assignment algorithm: for a given
// scanner's configured rule list and a file's flavors/name/source, decide
// whether (and with what priority/options) the scanner runs.
package assign

import (
	"slices"
	"sort"

	"github.com/fleetscan/worker/internal/model"
)

// Assignment pairs a decided model.Assignment with the scanner it came
// from, so the distributor can look the plugin up in the registry after
// sorting.
type Assignment struct {
	Scanner string
	model.Assignment
}

// ForScanner evaluates rules in configured order against flavors/name/source
// and returns the assignment produced by the first rule that matches,
// applying negative precedence: a negative hit at any rule vetoes the
// scanner entirely, short-circuiting evaluation of later rules. A positive
// miss only advances to the next rule (spec §4.4 — load-bearing asymmetry).
func ForScanner(name string, rules []model.ScannerRule, flavors []string, file model.File) (Assignment, bool) {
	for _, rule := range rules {
		if rule.Negative != nil && matches(rule.Negative, flavors, file) {
			return Assignment{}, false
		}
		if rule.Positive != nil && matchesPositive(rule.Positive, flavors, file) {
			return Assignment{
				Scanner: name,
				Assignment: model.Assignment{
					Name:     name,
					Priority: rule.Priority,
					Options:  rule.Options,
				},
			}, true
		}
	}
	return Assignment{}, false
}

func matches(m *model.Match, flavors []string, file model.File) bool {
	for _, f := range m.Flavors {
		if slices.Contains(flavors, f) {
			return true
		}
	}
	if m.Filename != nil && m.Filename.MatchString(file.Name) {
		return true
	}
	if m.Source != nil && m.Source.MatchString(file.Source) {
		return true
	}
	return false
}

func matchesPositive(m *model.Match, flavors []string, file model.File) bool {
	for _, f := range m.Flavors {
		if f == "*" || slices.Contains(flavors, f) {
			return true
		}
	}
	if m.Filename != nil && m.Filename.MatchString(file.Name) {
		return true
	}
	if m.Source != nil && m.Source.MatchString(file.Source) {
		return true
	}
	return false
}

// All evaluates every configured scanner against file/flavors and returns
// the resulting assignments sorted by priority descending, ties broken by
// the scanners map's iteration order stabilized against names — callers
// pass names explicitly ordered (config file order) to keep ties
// deterministic (spec invariant 6).
func All(names []string, scanners map[string][]model.ScannerRule, flavors []string, file model.File) []Assignment {
	out := make([]Assignment, 0, len(names))
	for _, name := range names {
		a, ok := ForScanner(name, scanners[name], flavors, file)
		if !ok {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
