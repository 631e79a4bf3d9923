// Package errs defines the error taxonomy shared by the PSI server and
// client: which failures are fatal (process aborts), which are per-request
// (close the connection only), and which are merely informational.
package errs

import "errors"

// ErrConfig signals an invalid parameter combination (e.g. N not divisible
// by s, or source powers that cannot generate the PS target powers). Fatal.
var ErrConfig = errors.New("psi: invalid parameter configuration")

// ErrDuplicate signals an attempt to insert an item already present in the
// Db. Not fatal: the insert is simply rejected.
var ErrDuplicate = errors.New("psi: duplicate item")

// ErrRepeatedX signals that Newton interpolation saw two equal x values
// with distinct y values. This can only happen if the InnerBox lane
// collision check was bypassed, meaning the Db is corrupt. Fatal.
var ErrRepeatedX = errors.New("psi: repeated x value with distinct y in interpolation")

// ErrMalformed signals a query or response that fails to decode: wrong
// length, truncated ciphertext, or an inconsistent response record.
// Closes the connection; no server state changes.
var ErrMalformed = errors.New("psi: malformed wire message")

// ErrShort signals an incomplete read or write on the wire. Handled
// identically to ErrMalformed.
var ErrShort = errors.New("psi: short read or write")

// ErrRowFull signals that an InnerBox row has no more room for another
// (item, label) pair (curr_cols == max_cols).
var ErrRowFull = errors.New("psi: inner box row is full")

// ErrLaneCollision signals that an item's chunk at some lane already
// exists in that InnerBox's collision set.
var ErrLaneCollision = errors.New("psi: lane collision within inner box")
