package assign_test

import (
	"regexp"
	"testing"

	"github.com/fleetscan/worker/internal/assign"
	"github.com/fleetscan/worker/internal/model"
	"github.com/stretchr/testify/require"
)

func TestForScanner_NegativeVetoes(t *testing.T) {
	rules := []model.ScannerRule{
		{Negative: &model.Match{Flavors: []string{"text/plain"}}, Priority: 1},
		{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 9},
	}
	file := model.RootFile("r1")
	_, ok := assign.ForScanner("ScanAny", rules, []string{"text/plain"}, file)
	require.False(t, ok, "negative match at an earlier rule must veto the whole scanner")
}

func TestForScanner_PositiveMissAdvances(t *testing.T) {
	rules := []model.ScannerRule{
		{Positive: &model.Match{Flavors: []string{"application/pdf"}}, Priority: 1},
		{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 9},
	}
	file := model.RootFile("r1")
	a, ok := assign.ForScanner("ScanAny", rules, []string{"application/zip"}, file)
	require.True(t, ok)
	require.Equal(t, 9, a.Priority)
}

func TestForScanner_FilenameRegex(t *testing.T) {
	rules := []model.ScannerRule{
		{Positive: &model.Match{Filename: regexp.MustCompile(`\.zip$`)}, Priority: 5},
	}
	file := model.RootFile("r1")
	file.Name = "archive.zip"
	_, ok := assign.ForScanner("ScanZip", rules, nil, file)
	require.True(t, ok)
}

func TestAll_SortsByPriorityDescendingStable(t *testing.T) {
	scanners := map[string][]model.ScannerRule{
		"Low":  {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 3}},
		"High": {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 7}},
		"Mid":  {{Positive: &model.Match{Flavors: []string{"*"}}, Priority: 3}},
	}
	names := []string{"Low", "High", "Mid"}
	file := model.RootFile("r1")
	got := assign.All(names, scanners, []string{"text/plain"}, file)
	require.Len(t, got, 3)
	require.Equal(t, "High", got[0].Scanner)
	// Low and Mid tie at priority 3; configured order (Low before Mid) must hold.
	require.Equal(t, "Low", got[1].Scanner)
	require.Equal(t, "Mid", got[2].Scanner)
}

func TestAll_MissingAssignmentOmitted(t *testing.T) {
	scanners := map[string][]model.ScannerRule{
		"ScanPDF": {{Positive: &model.Match{Flavors: []string{"application/pdf"}}, Priority: 5}},
	}
	file := model.RootFile("r1")
	got := assign.All([]string{"ScanPDF"}, scanners, []string{"text/plain"}, file)
	require.Empty(t, got)
}
