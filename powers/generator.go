package powers

import (
	"fmt"
	"sort"

	"github.com/drand/labeled-psi/errs"
)

// Multiplier performs the one ciphertext operation the generator needs:
// multiply two already-materialized powers together, relinearizing as
// required by the concrete FHE backend. Callers supply this so the powers
// package stays independent of any particular ciphertext representation
//.
type Multiplier[C any] func(a, b C) (C, error)

// Materialize walks dag in (depth, power) order and returns every power
// in targetPowers mapped to its ciphertext, given the already-encrypted
// source ciphertexts keyed by power. Source powers are copied through
// unchanged; every other power costs exactly one Multiplier call, using
// results already computed earlier in the same walk ("at most
// one homomorphic multiplication per generated power").
func Materialize[C any](dag DAG, sourceCipher map[int]C, targetPowers []int, mul Multiplier[C]) (map[int]C, error) {
	order := topoOrder(dag)
	have := make(map[int]C, len(dag))
	for power, node := range dag {
		if node.S1 == 0 && node.S2 == 0 && node.Depth == 0 {
			ct, ok := sourceCipher[power]
			if !ok {
				return nil, fmt.Errorf("%w: missing source ciphertext for power %d", errs.ErrConfig, power)
			}
			have[power] = ct
		}
	}
	for _, power := range order {
		if _, ok := have[power]; ok {
			continue
		}
		node := dag[power]
		a, okA := have[node.S1]
		b, okB := have[node.S2]
		if !okA || !okB {
			return nil, fmt.Errorf("%w: power %d depends on unmaterialized operands %d,%d", errs.ErrConfig, power, node.S1, node.S2)
		}
		ct, err := mul(a, b)
		if err != nil {
			return nil, err
		}
		have[power] = ct
	}

	out := make(map[int]C, len(targetPowers))
	for _, power := range targetPowers {
		ct, ok := have[power]
		if !ok {
			return nil, fmt.Errorf("%w: target power %d not materialized", errs.ErrConfig, power)
		}
		out[power] = ct
	}
	return out, nil
}

// topoOrder returns every power in dag sorted by (depth, power), which is
// a valid topological order since a node's depth always exceeds both its
// parents' depths.
func topoOrder(dag DAG) []int {
	order := make([]int, 0, len(dag))
	for power := range dag {
		order = append(order, power)
	}
	sort.Slice(order, func(i, j int) bool {
		di, dj := dag[order[i]].Depth, dag[order[j]].Depth
		if di != dj {
			return di < dj
		}
		return order[i] < order[j]
	})
	return order
}
