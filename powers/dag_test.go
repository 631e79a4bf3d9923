package powers_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/labeled-psi/powers"
)

var sourcePowers = []int{1, 3, 11, 18, 45, 225}

func TestTargetPowersDefaults(t *testing.T) {
	targets := powers.TargetPowers(44, 1304)
	require.Contains(t, targets, 1)
	require.Contains(t, targets, 44)
	require.Contains(t, targets, 45)
	require.Contains(t, targets, 1260) // 45*28; 45*29=1305 exceeds D=1304
	for _, x := range targets {
		require.LessOrEqual(t, x, 1304)
	}
}

func TestBuildReachesAllTargets(t *testing.T) {
	targets := powers.TargetPowers(44, 1304)
	dag, err := powers.Build(sourcePowers, targets)
	require.NoError(t, err)
	for _, target := range targets {
		node, ok := dag[target]
		require.True(t, ok, "target %d missing from dag", target)
		if dag.IsSource(target) {
			continue
		}
		require.Equal(t, target, node.S1+node.S2)
	}
}

func TestBuildDepthRespectsParents(t *testing.T) {
	targets := powers.TargetPowers(44, 1304)
	dag, err := powers.Build(sourcePowers, targets)
	require.NoError(t, err)
	for power, node := range dag {
		if dag.IsSource(power) {
			continue
		}
		require.Greater(t, node.Depth, dag[node.S1].Depth)
		require.Greater(t, node.Depth, dag[node.S2].Depth)
	}
}

func TestBuildDeterministic(t *testing.T) {
	targets := powers.TargetPowers(44, 1304)
	d1, err := powers.Build(sourcePowers, targets)
	require.NoError(t, err)
	d2, err := powers.Build(sourcePowers, targets)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestBuildUnreachableTargetErrors(t *testing.T) {
	_, err := powers.Build([]int{2, 4}, []int{1})
	require.Error(t, err)
}

func TestTargetPowersSmallDegree(t *testing.T) {
	targets := powers.TargetPowers(2, 6)
	require.Equal(t, []int{1, 2, 3, 6}, targets)
}
