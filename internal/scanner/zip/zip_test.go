package zip_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetscan/worker/internal/model"
	scanzip "github.com/fleetscan/worker/internal/scanner/zip"
)

func TestScanWrapper_InvalidZipIsScannerFault(t *testing.T) {
	s, err := scanzip.New(model.Config{}, nil)
	require.NoError(t, err)

	file := model.RootFile("r1")
	file.Name = "not-a-real-zip.zip"

	_, _, err = s.ScanWrapper(context.Background(), []byte("not a zip"), file, nil, time.Time{})
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrScannerFault))
}

func TestScanWrapper_EmptyArchiveHasNoEntries(t *testing.T) {
	s, err := scanzip.New(model.Config{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	require.NoError(t, w.Close())

	file := model.RootFile("r1")
	children, out, err := s.ScanWrapper(context.Background(), buf.Bytes(), file, nil, time.Time{})
	require.NoError(t, err)
	require.Empty(t, children)
	entries := out["ScanZip"].(map[string]any)["entries"]
	require.Empty(t, entries)
}
