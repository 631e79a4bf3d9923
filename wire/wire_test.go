package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/wire"
)

func testParams(t *testing.T) fhe.Params {
	params, err := fhe.NewParams(13, 65537)
	require.NoError(t, err)
	return params
}

func testCiphertext(t *testing.T, params fhe.Params) *rlwe.Ciphertext {
	keys, err := fhe.GenerateKeys(params, nil)
	require.NoError(t, err)
	enc := fhe.NewEncoder(params)
	encryptor := fhe.NewEncryptor(params, keys.Public)
	pt, err := enc.Encode([]uint64{1, 2, 3})
	require.NoError(t, err)
	ct, err := encryptor.Encrypt(pt)
	require.NoError(t, err)
	return ct
}

func testSeededCiphertext(t *testing.T, params fhe.Params) *fhe.SeededCiphertext {
	keys, err := fhe.GenerateKeys(params, nil)
	require.NoError(t, err)
	enc := fhe.NewEncoder(params)
	seeded := fhe.NewSeededEncryptor(params, keys.Public)
	pt, err := enc.Encode([]uint64{1, 2, 3})
	require.NoError(t, err)
	sc, err := seeded.EncryptSeeded(pt)
	require.NoError(t, err)
	return sc
}

func TestQueryRoundTrip(t *testing.T) {
	params := testParams(t)
	sc := testSeededCiphertext(t, params)
	one := testCiphertext(t, params)

	q := wire.Query{
		Tables: []map[int]map[int]*fhe.SeededCiphertext{
			{
				0: {1: sc, 3: sc},
			},
		},
		SourcePowers: []int{1, 3},
		One:          one,
	}

	var buf bytes.Buffer
	require.NoError(t, wire.SendQuery(&buf, q))
	got, err := wire.ReceiveQuery(&buf)
	require.NoError(t, err)
	require.Len(t, got.Tables, 1)
	require.Len(t, got.Tables[0], 1)
	sources := got.Tables[0][0]
	require.Len(t, sources, 2)
	require.NotNil(t, sources[1])
	require.NotNil(t, sources[3])
	require.NotNil(t, got.One)
}

func TestResponseRoundTrip(t *testing.T) {
	params := testParams(t)
	ct := testCiphertext(t, params)
	resp := wire.Response{Tables: []db.TableResult{
		{
			2: db.SegmentResponse{ct, ct},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, wire.SendResponse(&buf, resp))
	got, err := wire.ReceiveResponse(&buf)
	require.NoError(t, err)
	require.Len(t, got.Tables, 1)
	require.Len(t, got.Tables[0][2], 2)
}

func TestReceiveQueryShortFails(t *testing.T) {
	_, err := wire.ReceiveQuery(bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}
