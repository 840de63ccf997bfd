package classify

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// loadRuleFile parses a minimal named-regex rule file: one rule per line,
// "label = pattern", blank lines and lines starting with '#' ignored.
//
// No third-party rule-matching engine in the dependency pack fits this
// contract: gitleaks' detector is a fixed secret-pattern set wired
// separately as the ScanLeaks plugin, not a generic per-namespace content
// classifier, and nothing else in the retrieved examples parses a
// user-authored rule-file format into named patterns (see DESIGN.md).
func loadRuleFile(path string) ([]rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var rules []rule
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, pattern, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected \"label = pattern\"", path, lineNo)
		}
		label = strings.TrimSpace(label)
		pattern = strings.TrimSpace(pattern)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: compiling pattern for %q: %w", path, lineNo, label, err)
		}
		rules = append(rules, rule{label: label, pattern: re})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
