// Package field implements modular arithmetic over Z_t, the BFV plaintext
// ring used throughout the PSI data plane (Newton interpolation, PS
// coefficient bookkeeping). All operations assume 0 <= t < 2^63 so
// intermediate products fit in a uint64/uint128-safe path via math/bits.
package field

import "math/bits"

// Add returns (a+b) mod t.
func Add(a, b, t uint64) uint64 {
	s := a + b
	if s >= t || s < a {
		s -= t
	}
	return s
}

// Sub returns (a-b) mod t.
func Sub(a, b, t uint64) uint64 {
	if a >= b {
		return a - b
	}
	return t - (b - a)
}

// Neg returns (-a) mod t.
func Neg(a, t uint64) uint64 {
	if a == 0 {
		return 0
	}
	return t - a
}

// Mul returns (a*b) mod t using a 128-bit intermediate product.
func Mul(a, b, t uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi%t, lo, t)
	return rem
}

// Inv returns the modular multiplicative inverse of a mod t via the
// extended Euclidean algorithm. t must be prime (or at least coprime to a);
// it panics if a has no inverse mod t.
func Inv(a, t uint64) uint64 {
	if a == 0 {
		panic("field: inverse of zero")
	}
	g, x, _ := extGCD(int64(a%t), int64(t))
	if g != 1 {
		panic("field: a is not invertible mod t")
	}
	x %= int64(t)
	if x < 0 {
		x += int64(t)
	}
	return uint64(x)
}

// extGCD returns (g, x, y) such that a*x + b*y = g = gcd(a,b).
func extGCD(a, b int64) (g, x, y int64) {
	if a == 0 {
		return b, 0, 1
	}
	g, x1, y1 := extGCD(b%a, a)
	return g, y1 - (b/a)*x1, x1
}
