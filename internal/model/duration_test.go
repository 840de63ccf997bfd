package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetscan/worker/internal/model"
)

func TestParseBudget_PlainSeconds(t *testing.T) {
	d, err := model.ParseBudget("30")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, d)
}

func TestParseBudget_ISO8601(t *testing.T) {
	d, err := model.ParseBudget("PT1H30M")
	require.NoError(t, err)
	require.Equal(t, 90*time.Minute, d)
}

func TestParseBudget_CronEvery(t *testing.T) {
	d, err := model.ParseBudget("@every 45s")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)
}

func TestParseBudget_RejectsZeroAndNegative(t *testing.T) {
	_, err := model.ParseBudget("0")
	require.Error(t, err)
	_, err = model.ParseBudget("-5")
	require.Error(t, err)
}

func TestParseBudget_InvalidExpression(t *testing.T) {
	_, err := model.ParseBudget("not a duration")
	require.Error(t, err)
}

func TestRawLimits_Resolve(t *testing.T) {
	raw := model.RawLimits{MaxFiles: 10, TimeToLive: "PT1H", MaxDepth: 8, Distribution: "@every 30s"}
	limits, err := raw.Resolve()
	require.NoError(t, err)
	require.Equal(t, 10, limits.MaxFiles)
	require.Equal(t, time.Hour, limits.TimeToLive)
	require.Equal(t, 8, limits.MaxDepth)
	require.Equal(t, 30*time.Second, limits.Distribution)
}

func TestRawLimits_Resolve_InvalidDuration(t *testing.T) {
	raw := model.RawLimits{MaxFiles: 10, TimeToLive: "garbage", MaxDepth: 8, Distribution: "@every 30s"}
	_, err := raw.Resolve()
	require.Error(t, err)
}
