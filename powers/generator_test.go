package powers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/powers"
)

// intMul treats the "ciphertext" of x^p as the plain int exponent p for the
// generator tests, so multiplying two powers adds their exponents and
// Materialize's arithmetic can be checked without an FHE backend.
func intMul(a, b int) (int, error) { return a + b, nil }

func TestMaterializeReconstructsTargets(t *testing.T) {
	src := []int{1, 3, 11, 18, 45, 225}
	targets := powers.TargetPowers(44, 1304)
	dag, err := powers.Build(src, targets)
	require.NoError(t, err)

	sourceCipher := make(map[int]int, len(src))
	for _, s := range src {
		sourceCipher[s] = s // ciphertext of power p "decrypts" to p itself
	}

	out, err := powers.Materialize(dag, sourceCipher, targets, intMul)
	require.NoError(t, err)
	for _, target := range targets {
		require.Equal(t, target, out[target], "power %d", target)
	}
}

func TestMaterializeMissingSourceErrors(t *testing.T) {
	src := []int{1, 3}
	targets := []int{1, 2, 3, 4}
	dag, err := powers.Build(src, targets)
	require.NoError(t, err)

	_, err = powers.Materialize(dag, map[int]int{1: 1}, targets, intMul)
	require.Error(t, err)
}
