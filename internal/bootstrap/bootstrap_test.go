package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetscan/worker/internal/bootstrap"
	"github.com/fleetscan/worker/internal/model"
)

const validConfig = `
coordinator:
  addr: "127.0.0.1:6379"
  db: 0
limits:
  max_files: 10
  time_to_live: "30s"
  max_depth: 5
  distribution: "10s"
tasting:
  rule_files: "/etc/fleetscan/rules"
scanners:
  ScanZip:
    - positive:
        flavors: ["application/zip"]
`

func TestLoadConfig_readsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o644))

	cfg, err := bootstrap.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6379", cfg.Coordinator.Addr)
	require.Equal(t, []string{"ScanZip"}, cfg.ScannerNames)
}

func TestLoadConfig_missingFile(t *testing.T) {
	_, err := bootstrap.LoadConfig("/nonexistent/worker.yaml")
	require.Error(t, err)
}

func TestLoadConfig_invalidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coordinator: {}\n"), 0o644))

	_, err := bootstrap.LoadConfig(path)
	require.Error(t, err)
	var cerr *model.ConfigError
	require.ErrorAs(t, err, &cerr)
}
