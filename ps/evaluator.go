// Package ps implements Paterson-Stockmeyer evaluation of a row's
// interpolated polynomial under BFV encryption: given the
// client's encrypted source powers, the server reconstructs every PS target
// power via powers.Materialize and combines them with
// the row's plaintext coefficients in two nested loops, minimizing both
// multiplicative depth and total ciphertext multiplications.
package ps

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/powers"
)

// Evaluator evaluates interpolated row polynomials against a query's
// encrypted power set.
type Evaluator struct {
	eval      *fhe.Evaluator
	enc       *fhe.Encoder
	dag       powers.DAG
	lowDegree int
	degree    int
	slots     int
	// ctOne is an encryption of the all-ones plaintext vector, standing in
	// for the x^0 power so the inner/outer loops never need a special case
	// for a bare constant term: a constant c is represented as ctOne
	// scaled by the plaintext c (constant terms never cost a
	// ciphertext-ciphertext multiplication).
	ctOne *rlwe.Ciphertext
}

// New returns an Evaluator bound to a fixed PowersDAG and PS shape
// (low-degree L and total degree D, params). The same Evaluator is
// reused across every row in a BigBox segment since the DAG and shape are
// global to a deployment. ctOne must encrypt a plaintext of slots copies
// of 1.
func New(eval *fhe.Evaluator, enc *fhe.Encoder, dag powers.DAG, lowDegree, degree, slots int, ctOne *rlwe.Ciphertext) *Evaluator {
	return &Evaluator{eval: eval, enc: enc, dag: dag, lowDegree: lowDegree, degree: degree, slots: slots, ctOne: ctOne}
}

// Materialize reconstructs every PS target power from the client's
// encrypted source powers, using one relinearized multiplication per
// non-source power in the DAG. Every power at most lowDegree feeds the
// inner PS loop's plaintext multiplications directly, so those powers are
// switched to Evaluation representation before being returned; powers
// above lowDegree are only ever multiplied by another ciphertext
// (the outer loop's block multiplication) and stay in Coefficient
// representation.
func (e *Evaluator) Materialize(sourceCipher map[int]*rlwe.Ciphertext) (map[int]*rlwe.Ciphertext, error) {
	targets := powers.TargetPowers(e.lowDegree, e.degree)
	materialized, err := powers.Materialize(e.dag, sourceCipher, targets, e.eval.MulRelin)
	if err != nil {
		return nil, err
	}
	for power, ct := range materialized {
		if power > e.lowDegree {
			continue
		}
		converted, err := e.eval.ChangeRepresentation(ct, fhe.Evaluation)
		if err != nil {
			return nil, fmt.Errorf("power %d: %w", power, err)
		}
		materialized[power] = converted
	}
	return materialized, nil
}

// Evaluate computes the encrypted polynomial value poly(x) (coeffs,
// low-degree first, length <= degree+1) at the point represented by
// powerCiphertexts (the output of Materialize), broadcasting each scalar
// coefficient across every plaintext slot. Used for a single unbatched row
// (e.g. tests); BigBox segments batching many rows into one ciphertext use
// EvaluatePacked instead.
func (e *Evaluator) Evaluate(coeffs []uint64, powerCiphertexts map[int]*rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	packed := make([][]uint64, len(coeffs))
	for i, c := range coeffs {
		packed[i] = repeat(c, e.slots)
	}
	return e.EvaluatePacked(packed, powerCiphertexts)
}

// EvaluatePacked is the general form of Evaluate: packedCoeffs
// is indexed low-degree first, each entry already a slots-length plaintext
// vector (for a BigBox segment, packedCoeffs[d][i] is row i's degree-d
// coefficient; Evaluate is the special case where every row shares one
// coefficient). The inner/outer PS loop runs exactly as in Evaluate.
func (e *Evaluator) EvaluatePacked(packedCoeffs [][]uint64, powerCiphertexts map[int]*rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	hPrime := e.lowDegree + 1
	numBlocks := (len(packedCoeffs) + hPrime - 1) / hPrime

	var result *rlwe.Ciphertext
	for k := 0; k < numBlocks; k++ {
		inner, err := e.innerSum(packedCoeffs, k, hPrime, powerCiphertexts)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			continue
		}

		var block *rlwe.Ciphertext
		if k == 0 {
			block = inner
		} else {
			blockPower, ok := powerCiphertexts[hPrime*k]
			if !ok {
				return nil, fmt.Errorf("%w: missing power %d for PS outer block %d", errs.ErrConfig, hPrime*k, k)
			}
			block, err = e.eval.MulRelin(inner, blockPower)
			if err != nil {
				return nil, err
			}
		}

		if result == nil {
			result = block
			continue
		}
		result, err = e.eval.Add(result, block)
		if err != nil {
			return nil, err
		}
	}
	if result == nil {
		zero, err := e.eval.MulPlaintext(e.ctOne, mustEncode(e.enc, 0, e.slots))
		if err != nil {
			return nil, err
		}
		return e.eval.ModDownLevel(zero)
	}
	return e.eval.ModDownLevel(result)
}

// innerSum computes sum_{j=0}^{hPrime-1} packedCoeffs[hPrime*k+j] * x^j for
// block k, where x^0 is represented by ctOne. Every term costs one
// plaintext-ciphertext multiplication (never raising ciphertext degree)
// and the partial sums are combined with plain additions.
func (e *Evaluator) innerSum(packedCoeffs [][]uint64, k, hPrime int, powerCiphertexts map[int]*rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	var sum *rlwe.Ciphertext
	base := hPrime * k
	for j := 0; j < hPrime; j++ {
		idx := base + j
		if idx >= len(packedCoeffs) {
			break
		}
		c := packedCoeffs[idx]
		if allZero(c) {
			continue
		}

		ct := e.ctOne
		if j > 0 {
			var ok bool
			ct, ok = powerCiphertexts[j]
			if !ok {
				return nil, fmt.Errorf("%w: missing power %d for PS inner loop", errs.ErrConfig, j)
			}
		}

		pt, err := e.enc.Encode(c)
		if err != nil {
			return nil, err
		}
		term, err := e.eval.MulPlaintext(ct, pt)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = term
			continue
		}
		sum, err = e.eval.Add(sum, term)
		if err != nil {
			return nil, err
		}
	}
	return sum, nil
}

func allZero(vs []uint64) bool {
	for _, v := range vs {
		if v != 0 {
			return false
		}
	}
	return true
}

func repeat(v uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mustEncode(enc *fhe.Encoder, v uint64, n int) *rlwe.Plaintext {
	pt, err := enc.Encode(repeat(v, n))
	if err != nil {
		// Encoding a constant vector of the configured slot width cannot
		// fail once the encoder itself was constructed successfully.
		panic(fmt.Sprintf("ps: encode constant: %v", err))
	}
	return pt
}
