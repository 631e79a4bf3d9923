package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/db"
)

func TestDatasetRoundTrip(t *testing.T) {
	items, err := db.RandomDataset(10)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dataset.bin")
	require.NoError(t, db.SaveDataset(path, items))

	got, err := db.LoadDataset(path)
	require.NoError(t, err)
	require.Equal(t, items, got)
}
