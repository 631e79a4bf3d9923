package key

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/log"
	"github.com/drand/labeled-psi/params"
)

func TestStoreParamsRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	s, err := Open(log.DefaultLogger(), tmp)
	require.NoError(t, err)
	defer s.Close()

	p := params.Default()
	require.NoError(t, s.SaveParams(p))

	got, err := s.LoadParams()
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestStoreKeysRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	s, err := Open(log.DefaultLogger(), tmp)
	require.NoError(t, err)
	defer s.Close()

	fp, err := fhe.NewParams(13, 65537)
	require.NoError(t, err)
	keys, err := fhe.GenerateKeys(fp, []uint64{fhe.GaloisElementForRotation(fp, 1)})
	require.NoError(t, err)

	require.NoError(t, s.SaveKeys(keys))

	pkBytes, err := s.get(keyPublic)
	require.NoError(t, err)
	pk, err := fhe.UnmarshalPublicKey(pkBytes)
	require.NoError(t, err)
	require.NotNil(t, pk)

	rlkBytes, err := s.get(keyRelin)
	require.NoError(t, err)
	rlk, err := fhe.UnmarshalRelinKey(rlkBytes)
	require.NoError(t, err)
	require.NotNil(t, rlk)

	gkBytes, err := s.get(galoisKeyPrefix + "0")
	require.NoError(t, err)
	gk, err := fhe.UnmarshalGaloisKey(gkBytes)
	require.NoError(t, err)
	require.NotNil(t, gk)
}

func TestStoreLoadKeysRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	s, err := Open(log.DefaultLogger(), tmp)
	require.NoError(t, err)
	defer s.Close()

	fp, err := fhe.NewParams(13, 65537)
	require.NoError(t, err)
	keys, err := fhe.GenerateKeys(fp, []uint64{fhe.GaloisElementForRotation(fp, 1)})
	require.NoError(t, err)
	require.NoError(t, s.SaveKeys(keys))

	got, err := s.LoadKeys()
	require.NoError(t, err)
	require.NotNil(t, got.Public)
	require.NotNil(t, got.Relin)
	require.Len(t, got.Galois, 1)
	require.NotNil(t, got.Secret)
	require.True(t, got.Finalized())
}

func TestStoreMissingKeyErrors(t *testing.T) {
	tmp := t.TempDir()
	s, err := Open(log.DefaultLogger(), tmp)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadParams()
	require.Error(t, err)
}
