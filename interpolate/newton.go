// Package interpolate implements Newton's divided-difference interpolation
// mod t, turning a server InnerBox row's (item, label) pairs
// into the monomial coefficients the Paterson-Stockmeyer evaluator
// consumes.
package interpolate

import (
	"fmt"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/field"
)

// Interpolate returns the coefficients (low-degree first) of the unique
// polynomial of degree < n mod t mapping x[i] -> y[i], for pairwise
// distinct x values. Empty input returns an empty slice (boundary
// behavior). Returns errs.ErrRepeatedX if two x values collide.
func Interpolate(x, y []uint64, t uint64) ([]uint64, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("interpolate: len(x)=%d != len(y)=%d", n, len(y))
	}
	if n == 0 {
		return []uint64{}, nil
	}

	// dd[r][c] is the divided-difference table, built column by column.
	// dd[r][0] = y[r]; dd[r][c] = (dd[r+1][c-1]-dd[r][c-1]) / (x[r+c]-x[r]).
	dd := make([][]uint64, n)
	for r := range dd {
		dd[r] = make([]uint64, n)
		dd[r][0] = y[r]
	}
	for c := 1; c < n; c++ {
		for r := 0; r < n-c; r++ {
			denom := field.Sub(x[r+c], x[r], t)
			if denom == 0 {
				return nil, fmt.Errorf("%w: x[%d]==x[%d]", errs.ErrRepeatedX, r+c, r)
			}
			num := field.Sub(dd[r+1][c-1], dd[r][c-1], t)
			dd[r][c] = field.Mul(num, field.Inv(denom, t), t)
		}
	}

	// Horner-expand the Newton form into monomial coefficients: start
	// from the leading divided difference and repeatedly multiply by the
	// monomial (X - x[k]), sweeping top-down so each old coefficient is
	// consumed exactly once.
	coeffs := make([]uint64, n)
	coeffs[0] = dd[0][n-1]
	length := 1
	for k := n - 2; k >= 0; k-- {
		a := x[k]
		// p'[i] = p[i-1] - a*p[i], sweeping top-down; p'[0] = -a*p[0].
		length++
		for i := length - 1; i >= 1; i-- {
			coeffs[i] = field.Sub(coeffs[i-1], field.Mul(a, coeffs[i], t), t)
		}
		coeffs[0] = field.Neg(field.Mul(a, coeffs[0], t), t)
		// Horner's nested form adds dd[0][k] as the new constant term
		// after each monomial multiplication.
		coeffs[0] = field.Add(coeffs[0], dd[0][k], t)
	}
	return coeffs, nil
}

// Evaluate evaluates the monomial-form polynomial coeffs (low-degree first)
// at x mod t, via Horner's method.
func Evaluate(coeffs []uint64, x, t uint64) uint64 {
	var acc uint64
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = field.Add(field.Mul(acc, x, t), coeffs[i], t)
	}
	return acc
}
