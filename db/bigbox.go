package db

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"golang.org/x/sync/errgroup"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/ps"
)

// segment is the growable list of InnerBoxes covering one contiguous
// slice of rowsPerSegment hash indices. It always holds at least one
// InnerBox, even when empty.
type segment struct {
	boxes []*InnerBox
}

// BigBox is one cuckoo hash table's H rows, grouped into segments of
// rowsPerSegment rows each so a segment's rows can be packed into one
// SIMD plaintext per PS coefficient: slot ri*slots+lane of that plaintext
// holds row ri's lane coefficient, so one PS evaluation per InnerBox
// answers every row the InnerBox currently holds. A segment starts with
// one InnerBox and grows a new one whenever every existing InnerBox
// refuses an insert at the target row (full row, or a lane collision).
type BigBox struct {
	rowsPerSegment int
	slots          int
	newBox         func() *InnerBox
	segments       []*segment
}

// NewBigBox returns a BigBox covering tableSize hash indices, with each
// segment's first InnerBox built via newBox.
func NewBigBox(tableSize uint32, rowsPerSegment, slots int, newBox func() *InnerBox) *BigBox {
	segCount := int((tableSize + uint32(rowsPerSegment) - 1) / uint32(rowsPerSegment))
	segments := make([]*segment, segCount)
	for i := range segments {
		segments[i] = &segment{boxes: []*InnerBox{newBox()}}
	}
	return &BigBox{rowsPerSegment: rowsPerSegment, slots: slots, newBox: newBox, segments: segments}
}

// SegmentCount returns S, the number of row segments.
func (bb *BigBox) SegmentCount() int { return len(bb.segments) }

// BoxesInSegment reports how many InnerBoxes segment seg currently holds.
func (bb *BigBox) BoxesInSegment(seg int) int { return len(bb.segments[seg].boxes) }

// Insert places il at cuckoo hash index idx: it locates the index's
// segment and logical row-in-segment, then scans the segment's InnerBox
// list in order, inserting into the first one that can accept it. If none
// can, it allocates and appends a new InnerBox to the segment and inserts
// there — a lane collision or full row never fails the insert, it only
// grows the segment.
func (bb *BigBox) Insert(il ItemLabel, idx uint32) error {
	seg := int(idx) / bb.rowsPerSegment
	if seg >= len(bb.segments) {
		return fmt.Errorf("%w: cuckoo index %d exceeds table size", errs.ErrConfig, idx)
	}
	rowIdx := int(idx) % bb.rowsPerSegment
	s := bb.segments[seg]
	for _, box := range s.boxes {
		if box.CanInsert(il, rowIdx) {
			return box.Insert(il, rowIdx)
		}
	}
	box := bb.newBox()
	s.boxes = append(s.boxes, box)
	return box.Insert(il, rowIdx)
}

// Preprocess interpolates every InnerBox in every segment.
func (bb *BigBox) Preprocess() error {
	var result *multierror.Error
	for gi, s := range bb.segments {
		for bi, box := range s.boxes {
			if err := box.Preprocess(); err != nil {
				result = multierror.Append(result, fmt.Errorf("segment %d box %d: %w", gi, bi, err))
			}
		}
	}
	return result.ErrorOrNil()
}

// SegmentResponse is one segment's evaluated InnerBox ciphertexts, in
// InnerBox list order. Its length equals the segment's current InnerBox
// count, which varies segment to segment as the dataset grows.
type SegmentResponse []*rlwe.Ciphertext

// ProcessQuery evaluates every segment against the query's encrypted
// source powers for that segment (one ciphertext per source power,
// shared by every InnerBox and every row in the segment), in parallel
// bounded by workers. sourceBySegment supplies the client's encrypted
// source powers keyed by segment and then by power; ProcessQuery
// materializes the full PowersDAG once per segment and reuses it across
// every InnerBox in that segment.
func (bb *BigBox) ProcessQuery(evalr *ps.Evaluator, degree, workers int, sourceBySegment map[int]map[int]*rlwe.Ciphertext) ([]SegmentResponse, error) {
	out := make([]SegmentResponse, len(bb.segments))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for gi, s := range bb.segments {
		gi, s := gi, s
		source, ok := sourceBySegment[gi]
		if !ok {
			continue
		}
		g.Go(func() error {
			powerCiphertexts, err := evalr.Materialize(source)
			if err != nil {
				return fmt.Errorf("%w: segment %d: %v", errs.ErrConfig, gi, err)
			}
			resp := make(SegmentResponse, len(s.boxes))
			for bi, box := range s.boxes {
				packed := box.PackedCoeffs(degree)
				ct, err := evalr.EvaluatePacked(packed, powerCiphertexts)
				if err != nil {
					return fmt.Errorf("%w: segment %d box %d: %v", errs.ErrConfig, gi, bi, err)
				}
				resp[bi] = ct
			}
			out[gi] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
