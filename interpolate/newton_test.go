package interpolate_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/interpolate"
)

const t65537 = 65537

func TestEmptyInput(t *testing.T) {
	c, err := interpolate.Interpolate(nil, nil, t65537)
	require.NoError(t, err)
	require.Empty(t, c)
}

func TestRoundTripSmall(t *testing.T) {
	x := []uint64{1, 2, 3, 4, 5}
	y := []uint64{10, 20, 30, 40, 50}
	c, err := interpolate.Interpolate(x, y, t65537)
	require.NoError(t, err)
	require.Len(t, c, len(x))
	for i := range x {
		require.Equal(t, y[i], interpolate.Evaluate(c, x[i], t65537))
	}
}

func TestRoundTripSinglePoint(t *testing.T) {
	c, err := interpolate.Interpolate([]uint64{7}, []uint64{99}, t65537)
	require.NoError(t, err)
	require.Equal(t, []uint64{99}, c)
	require.Equal(t, uint64(99), interpolate.Evaluate(c, 123456, t65537))
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := 1 + rng.Intn(50)
		seen := map[uint64]bool{}
		x := make([]uint64, n)
		y := make([]uint64, n)
		for i := 0; i < n; i++ {
			for {
				v := uint64(rng.Intn(t65537))
				if !seen[v] {
					seen[v] = true
					x[i] = v
					break
				}
			}
			y[i] = uint64(rng.Intn(t65537))
		}
		c, err := interpolate.Interpolate(x, y, t65537)
		require.NoError(t, err)
		for i := range x {
			require.Equal(t, y[i], interpolate.Evaluate(c, x[i], t65537), "trial %d point %d", trial, i)
		}
	}
}

func TestRepeatedXFails(t *testing.T) {
	_, err := interpolate.Interpolate([]uint64{1, 1}, []uint64{2, 3}, t65537)
	require.ErrorIs(t, err, errs.ErrRepeatedX)
}
