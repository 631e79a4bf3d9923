package db

import (
	"fmt"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/interpolate"
)

// row is one logical row of an InnerBox: the (item, label) pairs sharing
// one fixed offset across the InnerBox's SIMD lanes, together with the
// per-lane interpolated polynomial built from them at preprocess time. An
// item splits into `slots` chunkBits-wide lanes (Slots=psi_bits/
// chunk_bits); interpolation runs independently per lane, mapping the
// item's lane value to the label's corresponding lane value.
//
// Invariant I1: no two items in the same row may share a lane value for
// any lane (a repeated x value makes that lane's interpolation
// impossible). Invariant I2: a row never holds more than Capacity items,
// since the interpolated polynomial's degree is bounded by the deployment
// parameters.
type row struct {
	items []ItemLabel
	// collision tracks, per lane, which lane values are already occupied
	// by an item in this row (invariant I1).
	collision []map[uint64]bool
	// coeffs[lane] holds the interpolated monomial coefficients for that
	// lane, populated by Preprocess. Nil until Preprocess runs.
	coeffs [][]uint64
}

func newRow(slots int) *row {
	collision := make([]map[uint64]bool, slots)
	for i := range collision {
		collision[i] = make(map[uint64]bool)
	}
	return &row{collision: collision}
}

// InnerBox is one segment's worth of cuckoo-table rows packed together:
// rowsPerSegment logical rows, each with `slots` lanes, so the whole
// InnerBox addresses exactly rowsPerSegment*slots == N plaintext slots (one
// ciphertext's worth). A segment may outgrow a single InnerBox (some row
// fills up, or a new item collides with an existing one on some lane); the
// owning BigBox then allocates another InnerBox for the same segment rather
// than failing the insert.
type InnerBox struct {
	rowsPerSegment int
	chunkBits      int
	slots          int
	capacity       int
	modulus        uint64

	rows []*row
}

// NewInnerBox returns an empty InnerBox spanning rowsPerSegment logical
// rows, each bounded to capacity items.
func NewInnerBox(rowsPerSegment, capacity, chunkBits, slots int, modulus uint64) *InnerBox {
	rows := make([]*row, rowsPerSegment)
	for i := range rows {
		rows[i] = newRow(slots)
	}
	return &InnerBox{rowsPerSegment: rowsPerSegment, chunkBits: chunkBits, slots: slots, capacity: capacity, modulus: modulus, rows: rows}
}

// CanInsert reports whether il can be added to logical row rowIdx without
// violating I1 (lane collision) or I2 (capacity).
func (b *InnerBox) CanInsert(il ItemLabel, rowIdx int) bool {
	r := b.rows[rowIdx]
	if len(r.items) >= b.capacity {
		return false
	}
	lanes := chunks(il.Item, b.slots, b.chunkBits)
	for lane, v := range lanes {
		if r.collision[lane][v] {
			return false
		}
	}
	return true
}

// Insert adds il to logical row rowIdx, recording its lane values in the
// collision set. Returns errs.ErrRowFull or errs.ErrLaneCollision if
// CanInsert would have returned false; callers (BigBox) are expected to
// check CanInsert first and grow instead of calling Insert blind.
func (b *InnerBox) Insert(il ItemLabel, rowIdx int) error {
	if !b.CanInsert(il, rowIdx) {
		r := b.rows[rowIdx]
		if len(r.items) >= b.capacity {
			return fmt.Errorf("%w: row %d holds %d items, capacity %d", errs.ErrRowFull, rowIdx, len(r.items), b.capacity)
		}
		return fmt.Errorf("%w: row %d has a lane collision", errs.ErrLaneCollision, rowIdx)
	}
	r := b.rows[rowIdx]
	lanes := chunks(il.Item, b.slots, b.chunkBits)
	for lane, v := range lanes {
		r.collision[lane][v] = true
	}
	r.items = append(r.items, il)
	r.coeffs = nil
	return nil
}

// Len reports how many items logical row rowIdx currently holds.
func (b *InnerBox) Len(rowIdx int) int { return len(b.rows[rowIdx].items) }

// Preprocess interpolates one polynomial per lane for every logical row.
// Rows are independent and safe to parallelize; this implementation runs
// them sequentially since a single row's interpolation is already cheap
// relative to the PS evaluation that follows. Safe to call repeatedly; it
// recomputes from scratch each time (idempotent given the same item set).
func (b *InnerBox) Preprocess() error {
	for i, r := range b.rows {
		n := len(r.items)
		coeffs := make([][]uint64, b.slots)
		for lane := 0; lane < b.slots; lane++ {
			x := make([]uint64, n)
			y := make([]uint64, n)
			for j, il := range r.items {
				x[j] = chunks(il.Item, b.slots, b.chunkBits)[lane]
				y[j] = chunks(il.Label, b.slots, b.chunkBits)[lane]
			}
			c, err := interpolate.Interpolate(x, y, b.modulus)
			if err != nil {
				return fmt.Errorf("row %d lane %d: %w", i, lane, err)
			}
			coeffs[lane] = c
		}
		r.coeffs = coeffs
	}
	return nil
}

// Coeffs returns the interpolated coefficients for (rowIdx, lane), or nil
// if Preprocess has not run since the last Insert.
func (b *InnerBox) Coeffs(rowIdx, lane int) []uint64 {
	r := b.rows[rowIdx]
	if r.coeffs == nil {
		return nil
	}
	return r.coeffs[lane]
}

// CollisionSet returns, for diagnostic/testing use, the set of lane values
// already occupied at (rowIdx, lane).
func (b *InnerBox) CollisionSet(rowIdx, lane int) map[uint64]bool {
	return b.rows[rowIdx].collision[lane]
}

// PackedCoeffs builds the N-slot coefficient vectors for every degree up to
// degree: slot j (j == rowIdx*slots+lane) holds that row/lane's degree-d
// coefficient, zero-padded past the row's actual degree. This is the
// single SIMD plaintext the PS evaluator consumes per InnerBox, per
// degree, replacing one-ciphertext-per-lane packing with one ciphertext
// for the whole InnerBox.
func (b *InnerBox) PackedCoeffs(degree int) [][]uint64 {
	width := b.rowsPerSegment * b.slots
	out := make([][]uint64, degree+1)
	for d := range out {
		out[d] = make([]uint64, width)
	}
	for ri, r := range b.rows {
		if r.coeffs == nil {
			continue
		}
		for lane := 0; lane < b.slots; lane++ {
			c := r.coeffs[lane]
			slot := ri*b.slots + lane
			for d := 0; d <= degree && d < len(c); d++ {
				out[d][slot] = c[d]
			}
		}
	}
	return out
}
