package model

import "regexp"

// Match is the positive or negative half of a ScannerRule.
type Match struct {
	Flavors  []string
	Filename *regexp.Regexp
	Source   *regexp.Regexp
}

// ScannerRule is one entry in a scanner's configured rule list. The first
// rule (in configured order) that produces an assignment wins; a negative
// match at any rule vetoes the scanner entirely (see internal/assign).
type ScannerRule struct {
	Positive *Match
	Negative *Match
	Priority int // defaults to 5 when unset, see config decode
	Options  map[string]any
}

// Assignment is the decision to run a scanner on a file, with the priority
// and options that decided it.
type Assignment struct {
	Name     string
	Priority int
	Options  map[string]any
}

const defaultPriority = 5
