package psiclient_test

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/psiclient"
)

func TestItemsFileRoundTrip(t *testing.T) {
	items := make([][32]byte, 5)
	for i := range items {
		_, err := rand.Read(items[i][:])
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "items.bin")
	require.NoError(t, psiclient.SaveItems(path, items))

	got, err := psiclient.LoadItems(path)
	require.NoError(t, err)
	require.Equal(t, items, got)
}
