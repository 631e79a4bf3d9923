package db

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/cuckoo"
	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/params"
	"github.com/drand/labeled-psi/ps"
)

// Db owns the h BigBoxes a PSI server evaluates queries against: one
// BigBox per cuckoo hash table, built by cuckoo-hashing every inserted
// item across all h tables simultaneously.
type Db struct {
	p      params.Params
	hasher *cuckoo.Hasher
	boxes  []*BigBox
	seen   map[[32]byte]bool
	stack  []cuckoo.Entry[[32]byte]
}

// New returns an empty Db for the given deployment parameters.
func New(p params.Params) *Db {
	hasher := cuckoo.New(int(p.NumHashTables), p.TableSize)
	boxes := make([]*BigBox, p.NumHashTables)
	rowsPerSegment := p.RowsPerSegment()
	for i := range boxes {
		boxes[i] = NewBigBox(p.TableSize, rowsPerSegment, params.Slots, func() *InnerBox {
			return NewInnerBox(rowsPerSegment, p.Degree+1, params.ChunkBits, params.Slots, p.PlaintextModulus)
		})
	}
	return &Db{p: p, hasher: hasher, boxes: boxes, seen: make(map[[32]byte]bool)}
}

// Insert adds item/label pairs to the dataset, skipping duplicate items
// (already present, or repeated within items) before cuckoo
// hashing the new items across all h tables. Returns the entries that
// could not be placed in any table (the eviction stack) so callers can
// grow parameters and retry, per Cuckoo.Stack.
func (d *Db) Insert(items []ItemLabel) ([]cuckoo.Entry[[32]byte], error) {
	fresh := make([]ItemLabel, 0, len(items))
	keys := make([][32]byte, 0, len(items))
	labels := make([][32]byte, 0, len(items))
	for _, il := range items {
		k := itemKey(il.Item)
		if d.seen[k] {
			continue
		}
		d.seen[k] = true
		fresh = append(fresh, il)
		keys = append(keys, il.Item)
		labels = append(labels, il.Label)
	}

	tables, stack := d.hasher.Build(keys, labels)
	for tableIdx, table := range tables {
		box := d.boxes[tableIdx]
		for slot, entry := range table {
			il := ItemLabel{Item: entry.Key, Label: entry.Value}
			if err := box.Insert(il, slot); err != nil {
				return nil, fmt.Errorf("table %d slot %d: %w", tableIdx, slot, err)
			}
		}
	}
	d.stack = append(d.stack, stack...)
	return stack, nil
}

// Stack returns every item that could not be cuckoo-hashed into any
// table across the lifetime of this Db.
func (d *Db) Stack() []cuckoo.Entry[[32]byte] { return d.stack }

// Preprocess interpolates every row in every table.
func (d *Db) Preprocess() error {
	var result *multierror.Error
	for i, box := range d.boxes {
		if err := box.Preprocess(); err != nil {
			result = multierror.Append(result, fmt.Errorf("table %d: %w", i, err))
		}
	}
	return result.ErrorOrNil()
}

// TableResult is one hash table's evaluated response: one SegmentResponse
// per segment, in segment order.
type TableResult []SegmentResponse

// HandleQuery evaluates every BigBox against the query's per-table
// encrypted source powers and evaluator. Tables are processed one after
// another; within a table, BigBox.ProcessQuery runs at most workers
// segment evaluations concurrently.
func (d *Db) HandleQuery(evalr *ps.Evaluator, workers int, powerCiphertextsByTable []map[int]map[int]*rlwe.Ciphertext) ([]TableResult, error) {
	if len(powerCiphertextsByTable) != len(d.boxes) {
		return nil, fmt.Errorf("%w: query carries %d tables, db has %d", errs.ErrMalformed, len(powerCiphertextsByTable), len(d.boxes))
	}
	out := make([]TableResult, len(d.boxes))
	var result *multierror.Error
	for i, box := range d.boxes {
		res, err := box.ProcessQuery(evalr, d.p.Degree, workers, powerCiphertextsByTable[i])
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("table %d: %w", i, err))
			continue
		}
		out[i] = res
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// NumTables returns h, the number of cuckoo hash tables/BigBoxes.
func (d *Db) NumTables() int { return len(d.boxes) }
