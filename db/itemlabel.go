// Package db implements the server-side dataset structures:
// InnerBox rows that each hold one interpolated polynomial per lane, BigBoxes
// (one per cuckoo hash table) that group rows into segments, and the
// top-level Db that owns all h
// BigBoxes and dispatches queries to them.
package db

import (
	"encoding/binary"
	"fmt"

	"github.com/drand/labeled-psi/errs"
)

// ItemLabel is a single 256-bit item paired with its 256-bit label. Both
// halves serialize as 32 little-endian bytes.
type ItemLabel struct {
	Item  [32]byte
	Label [32]byte
}

// ItemLabelSize is the fixed wire size of a serialized ItemLabel.
const ItemLabelSize = 64

// MarshalBinary serializes il as item||label, 64 bytes total.
func (il ItemLabel) MarshalBinary() ([]byte, error) {
	out := make([]byte, ItemLabelSize)
	copy(out[:32], il.Item[:])
	copy(out[32:], il.Label[:])
	return out, nil
}

// UnmarshalItemLabel parses a 64-byte wire record.
func UnmarshalItemLabel(b []byte) (ItemLabel, error) {
	if len(b) != ItemLabelSize {
		return ItemLabel{}, fmt.Errorf("%w: item-label record is %d bytes, want %d", errs.ErrShort, len(b), ItemLabelSize)
	}
	var il ItemLabel
	copy(il.Item[:], b[:32])
	copy(il.Label[:], b[32:])
	return il, nil
}

// chunks splits a 256-bit item/label into slots-many chunkBits-wide
// little-endian field elements (each 256-bit value packs into
// psi_bits/chunk_bits plaintext slots).
func chunks(v [32]byte, slots, chunkBits int) []uint64 {
	out := make([]uint64, slots)
	bitPos := 0
	for i := 0; i < slots; i++ {
		out[i] = extractBits(v, bitPos, chunkBits)
		bitPos += chunkBits
	}
	return out
}

func extractBits(v [32]byte, start, width int) uint64 {
	var acc uint64
	for i := 0; i < width; i++ {
		bit := start + i
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		if byteIdx >= len(v) {
			break
		}
		if v[byteIdx]&(1<<bitIdx) != 0 {
			acc |= 1 << uint(i)
		}
	}
	return acc
}

// assembleChunks is the inverse of chunks: packs slots-many chunkBits-wide
// field elements back into a 256-bit value.
func assembleChunks(vals []uint64, chunkBits int) [32]byte {
	var out [32]byte
	bitPos := 0
	for _, v := range vals {
		for i := 0; i < chunkBits; i++ {
			if v&(1<<uint(i)) != 0 {
				bit := bitPos + i
				byteIdx := bit / 8
				bitIdx := uint(bit % 8)
				if byteIdx < len(out) {
					out[byteIdx] |= 1 << bitIdx
				}
			}
		}
		bitPos += chunkBits
	}
	return out
}

// itemKey returns a map-comparable key for a 256-bit item, used by Db's
// duplicate-item HashSet.
func itemKey(item [32]byte) [32]byte { return item }

// le64 reads the first 8 bytes of a 256-bit value as a little-endian
// uint64, used wherever a compact numeric handle is convenient (e.g. log
// fields); it is not a cryptographic digest.
func le64(v [32]byte) uint64 { return binary.LittleEndian.Uint64(v[:8]) }
