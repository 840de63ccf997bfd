package classify_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetscan/worker/internal/classify"
	"github.com/fleetscan/worker/internal/model"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestClassifier_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "base.rules", "has_hello = hello\n# comment\nhas_world = world\n")

	c, err := classify.New(model.Tasting{RuleFiles: filepath.Join(dir, "base.rules")})
	require.NoError(t, err)

	labels := c.Match([]byte("hello there"))
	require.ElementsMatch(t, []string{"has_hello"}, labels)
}

func TestClassifier_DirectoryGlob(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.rules", "rule_a = foo\n")
	writeRuleFile(t, dir, "b.rules", "rule_b = bar\n")
	writeRuleFile(t, dir, "ignored.txt", "rule_c = baz\n")

	c, err := classify.New(model.Tasting{RuleFiles: dir, RuleGlob: "*.rules"})
	require.NoError(t, err)

	labels := c.Match([]byte("foo and bar but not baz"))
	require.ElementsMatch(t, []string{"rule_a", "rule_b"}, labels)
}

func TestClassifier_StripsLeadingWhitespace(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "anchored.rules", "starts_with_foo = ^foo\n")

	c, err := classify.New(model.Tasting{RuleFiles: filepath.Join(dir, "anchored.rules")})
	require.NoError(t, err)

	labels := c.Match([]byte("   \t\nfoo bar"))
	require.ElementsMatch(t, []string{"starts_with_foo"}, labels)
}

func TestClassify_PopulatesMimeAndYaraNamespaces(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "base.rules", "has_plain = .\n")

	c, err := classify.New(model.Tasting{RuleFiles: filepath.Join(dir, "base.rules")})
	require.NoError(t, err)

	flavors := model.NewFlavors()
	c.Classify([]byte("plain text content"), flavors)

	require.NotEmpty(t, flavors.List(model.NamespaceMime))
	require.Contains(t, flavors.List(model.NamespaceYara), "has_plain")
}
