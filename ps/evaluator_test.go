package ps_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/field"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/interpolate"
	"github.com/drand/labeled-psi/powers"
	"github.com/drand/labeled-psi/ps"
)

// TestEvaluateMatchesPlaintext checks that the encrypted PS evaluator
// reproduces the same value the plaintext Horner evaluator produces for a
// small interpolated row, round-tripping through real BFV encrypt/decrypt.
func TestEvaluateMatchesPlaintext(t *testing.T) {
	const t65537 = 65537
	const lowDegree = 2
	const degree = 6
	sourcePowers := []int{1, 2}

	x := []uint64{3, 5, 7}
	y := []uint64{11, 13, 17}
	coeffs, err := interpolate.Interpolate(x, y, t65537)
	require.NoError(t, err)
	padded := make([]uint64, degree+1)
	copy(padded, coeffs)

	targets := powers.TargetPowers(lowDegree, degree)
	dag, err := powers.Build(sourcePowers, targets)
	require.NoError(t, err)

	params, err := fhe.NewParams(13, t65537)
	require.NoError(t, err)
	slots := 1 << 12

	keys, err := fhe.GenerateKeys(params, nil)
	require.NoError(t, err)

	enc := fhe.NewEncoder(params)
	encryptor := fhe.NewEncryptor(params, keys.Public)
	decryptor := fhe.NewDecryptor(params, keys.Secret)
	evaluator := fhe.NewEvaluator(params, keys.EvaluationKeySet())

	queryPoint := uint64(4)

	sourceEnc := make(map[int]*rlwe.Ciphertext, len(sourcePowers))
	for _, p := range sourcePowers {
		val := pow(queryPoint, p, t65537)
		pt, err := enc.Encode(repeat(val, slots))
		require.NoError(t, err)
		ct, err := encryptor.Encrypt(pt)
		require.NoError(t, err)
		sourceEnc[p] = ct
	}

	one, err := enc.Encode(repeat(1, slots))
	require.NoError(t, err)
	ctOne, err := encryptor.Encrypt(one)
	require.NoError(t, err)

	evalr := ps.New(evaluator, enc, dag, lowDegree, degree, slots, ctOne)

	materializedCT, err := evalr.Materialize(sourceEnc)
	require.NoError(t, err)

	resultCT, err := evalr.Evaluate(padded, materializedCT)
	require.NoError(t, err)

	resultPT, err := decryptor.Decrypt(resultCT, params)
	require.NoError(t, err)
	decoded, err := enc.Decode(resultPT)
	require.NoError(t, err)

	want := interpolate.Evaluate(coeffs, queryPoint, t65537)
	require.Equal(t, want, decoded[0])
}

func pow(base uint64, exp int, t uint64) uint64 {
	acc := uint64(1)
	for i := 0; i < exp; i++ {
		acc = field.Mul(acc, base, t)
	}
	return acc
}

func repeat(v uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
