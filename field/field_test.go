package field_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/field"
)

const t65537 = 65537

func TestAddSubNeg(t *testing.T) {
	require.Equal(t, uint64(5), field.Add(3, 2, t65537))
	require.Equal(t, uint64(0), field.Add(t65537-1, 1, t65537))
	require.Equal(t, uint64(1), field.Sub(3, 2, t65537))
	require.Equal(t, uint64(t65537-1), field.Sub(0, 1, t65537))
	require.Equal(t, uint64(t65537-3), field.Neg(3, t65537))
	require.Equal(t, uint64(0), field.Neg(0, t65537))
}

func TestMul(t *testing.T) {
	require.Equal(t, uint64(6), field.Mul(2, 3, t65537))
	require.Equal(t, field.Sub(0, 1, t65537), field.Mul(t65537-1, 1, t65537))
}

func TestInv(t *testing.T) {
	for a := uint64(1); a < 50; a++ {
		inv := field.Inv(a, t65537)
		require.Equal(t, uint64(1), field.Mul(a, inv, t65537))
	}
}

func TestInvPanicsOnZero(t *testing.T) {
	require.Panics(t, func() { field.Inv(0, t65537) })
}
