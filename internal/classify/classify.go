// Package classify runs the two independent classifiers the distributor
// calls before assignment: content-sniffed MIME and a rule-based content
// matcher, grounded on the teacher's scanner-plugin idiom even though
// neither classifier is itself a scanner plugin.
package classify

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fleetscan/worker/internal/model"
)

// Classifier holds the compiled rule namespaces loaded once at worker
// start (spec §4.2 — "both classifiers are loaded once at worker start").
type Classifier struct {
	namespaces []namespace
}

type namespace struct {
	name  string
	rules []rule
}

type rule struct {
	label   string
	pattern matcher
}

// matcher is satisfied by *regexp.Regexp; kept as an interface so rule
// files can be parsed into something narrower than "any regex" later
// without changing the classifier's call surface.
type matcher interface {
	Match([]byte) bool
}

// New loads the rule matcher from cfg.RuleFiles (a single file, or a
// directory whose cfg.RuleGlob-matching entries each become a distinct
// namespace, numbered namespace0, namespace1, ... in directory-listing
// order) and returns a Classifier ready for repeated, concurrent-safe use.
func New(cfg model.Tasting) (*Classifier, error) {
	glob := cfg.RuleGlob
	if glob == "" {
		glob = "*.rules"
	}

	info, err := os.Stat(cfg.RuleFiles)
	if err != nil {
		return nil, fmt.Errorf("classify: stat rule_files %q: %w", cfg.RuleFiles, err)
	}

	var files []string
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(cfg.RuleFiles, glob))
		if err != nil {
			return nil, fmt.Errorf("classify: rule_glob %q: %w", glob, err)
		}
		files = matches
	} else {
		files = []string{cfg.RuleFiles}
	}

	c := &Classifier{}
	for i, f := range files {
		rules, err := loadRuleFile(f)
		if err != nil {
			return nil, fmt.Errorf("classify: loading %s: %w", f, err)
		}
		c.namespaces = append(c.namespaces, namespace{
			name:  fmt.Sprintf("namespace%d", i),
			rules: rules,
		})
	}
	return c, nil
}

// MIME content-sniffs data and returns one label, matching spec §4.2's
// "one label per invocation."
func MIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// Match runs every compiled rule across every namespace against data with
// leading ASCII whitespace stripped (spec §4.2) and returns every rule
// name that matched, deduplicated.
func (c *Classifier) Match(data []byte) []string {
	trimmed := bytes.TrimLeft(data, " \t\n\r\v\f")

	seen := make(map[string]struct{})
	var out []string
	for _, ns := range c.namespaces {
		for _, r := range ns.rules {
			if r.pattern.Match(trimmed) {
				if _, ok := seen[r.label]; ok {
					continue
				}
				seen[r.label] = struct{}{}
				out = append(out, r.label)
			}
		}
	}
	return out
}

// Classify runs both classifiers and writes their output into the
// mime/yara namespaces of flavors, matching spec §4.5 step 3.
func (c *Classifier) Classify(data []byte, flavors model.Flavors) {
	flavors.Add(model.NamespaceMime, MIME(data))
	if labels := c.Match(data); len(labels) > 0 {
		flavors.Add(model.NamespaceYara, labels...)
	}
}
