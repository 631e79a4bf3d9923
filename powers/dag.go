// Package powers builds the source->target power DAG used by the
// Paterson-Stockmeyer evaluator: the minimal set of ciphertext
// powers the client sends, and how the server reconstructs every PS target
// power from them with at most one homomorphic multiplication each.
package powers

import (
	"fmt"
	"sort"

	"github.com/drand/labeled-psi/errs"
)

// Node describes how a single power was produced: either it is a source
// power (S1 == S2 == 0, Depth == 0) or it is the product of two already
// available powers x^S1 * x^S2, so S1+S2 == power, at multiplicative depth
// Depth.
type Node struct {
	S1, S2 int
	Depth  int
}

// DAG maps a power to the Node describing how to materialize it.
type DAG map[int]Node

// TargetPowers returns the PS target powers {1..L} U {(L+1)*k : 1<=k<=D/(L+1)}
// that PSParams derives, sorted ascending.
func TargetPowers(lowDegree, degree int) []int {
	hPrime := lowDegree + 1
	m := degree / hPrime
	targets := make([]int, 0, lowDegree+m)
	for k := 1; k <= lowDegree; k++ {
		targets = append(targets, k)
	}
	for k := 1; k <= m; k++ {
		targets = append(targets, hPrime*k)
	}
	sort.Ints(targets)
	return dedupe(targets)
}

func dedupe(xs []int) []int {
	out := xs[:0:0]
	var last int
	first := true
	for _, x := range xs {
		if first || x != last {
			out = append(out, x)
			last = x
			first = false
		}
	}
	return out
}

// Build constructs the PowersDAG reconstructing every target power from
// sourcePowers with at most one multiplication per non-source target.
// Sources are inserted at depth 0. For each non-source target (processed
// in ascending order so operands are already available), it searches all
// s1 in target powers with s1 <= target and s2 = target-s1 already present,
// picking the (s1,s2) minimizing max(depth(s1),depth(s2))+1, tie-breaking on
// (depth, s1) lexicographically. Deterministic given the same
// sourcePowers/targetPowers input.
func Build(sourcePowers, targetPowers []int) (DAG, error) {
	dag := make(DAG, len(sourcePowers)+len(targetPowers))
	for _, s := range sourcePowers {
		dag[s] = Node{}
	}

	all := make([]int, 0, len(sourcePowers)+len(targetPowers))
	all = append(all, sourcePowers...)
	all = append(all, targetPowers...)
	all = dedupe(sortedCopy(all))

	candidates := dedupe(sortedCopy(append([]int(nil), targetPowers...)))

	for _, target := range all {
		if _, ok := dag[target]; ok {
			continue
		}
		best, bestS1, bestS2, found := -1, 0, 0, false
		for _, s1 := range candidates {
			if s1 > target {
				break
			}
			n1, ok1 := dag[s1]
			if !ok1 {
				continue
			}
			s2 := target - s1
			n2, ok2 := dag[s2]
			if !ok2 {
				continue
			}
			d := maxInt(n1.Depth, n2.Depth) + 1
			if !found || d < best || (d == best && s1 < bestS1) {
				best, bestS1, bestS2, found = d, s1, s2, true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: target power %d is not reachable from source powers", errs.ErrConfig, target)
		}
		dag[target] = Node{S1: bestS1, S2: bestS2, Depth: best}
	}

	for _, target := range targetPowers {
		if _, ok := dag[target]; !ok {
			return nil, fmt.Errorf("%w: target power %d missing from constructed DAG", errs.ErrConfig, target)
		}
	}
	return dag, nil
}

func sortedCopy(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Depth returns the multiplicative depth of power in the DAG.
func (d DAG) Depth(power int) int {
	return d[power].Depth
}

// IsSource reports whether power is a source power (depth 0, no parents).
func (d DAG) IsSource(power int) bool {
	n, ok := d[power]
	return ok && n.S1 == 0 && n.S2 == 0 && n.Depth == 0
}
