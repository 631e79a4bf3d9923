package psiclient

import (
	"fmt"

	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/params"
)

// PotentialResponseLabels maps each query item to the candidate labels
// assembled from every (table, segment, row, InnerBox) position the item
// was queried at: a true member's polynomial evaluates to its real label
// at exactly the row and InnerBox the server actually placed it in, so
// one of these candidates is correct and the others are pseudorandom
// noise the caller's application-level membership check (e.g. comparing
// against an expected label format, or simply checking set membership
// separately) must filter out. A segment may hold more than one InnerBox,
// and the client has no way to know which one the server used, so every
// InnerBox in the segment contributes one candidate per location.
type PotentialResponseLabels map[[32]byte][][32]byte

// Decode decrypts every response ciphertext the server returned and
// reassembles, for each of the client's queried item locations, one
// 256-bit candidate label per InnerBox the server placed at that
// location's segment.
func Decode(qs *QueryState, p params.Params, fheParams fhe.Params, dec *fhe.Decryptor, enc *fhe.Encoder, response []db.TableResult) (PotentialResponseLabels, error) {
	if len(response) != int(p.NumHashTables) {
		return nil, fmt.Errorf("%w: response carries %d tables, want %d", errs.ErrMalformed, len(response), p.NumHashTables)
	}

	// decoded[table][segment] is the segment's InnerBox list, each entry
	// the full N-slot plaintext vector decrypted from that InnerBox's
	// ciphertext; decrypted at most once per (table, segment) regardless
	// of how many query items fall in it.
	type key struct{ table, segment int }
	decoded := make(map[key][][]uint64)

	out := make(PotentialResponseLabels, len(qs.items))
	for _, loc := range qs.locations {
		if loc.Table >= len(response) {
			return nil, fmt.Errorf("%w: location references table %d beyond response", errs.ErrMalformed, loc.Table)
		}
		table := response[loc.Table]
		if loc.Segment >= len(table) {
			return nil, fmt.Errorf("%w: location references segment %d beyond table %d", errs.ErrMalformed, loc.Segment, loc.Table)
		}

		k := key{loc.Table, loc.Segment}
		boxVecs, ok := decoded[k]
		if !ok {
			segResp := table[loc.Segment]
			boxVecs = make([][]uint64, len(segResp))
			for bi, ct := range segResp {
				pt, err := dec.Decrypt(ct, fheParams)
				if err != nil {
					return nil, fmt.Errorf("table %d segment %d box %d: %w", loc.Table, loc.Segment, bi, err)
				}
				vec, err := enc.Decode(pt)
				if err != nil {
					return nil, fmt.Errorf("table %d segment %d box %d: %w", loc.Table, loc.Segment, bi, err)
				}
				boxVecs[bi] = vec
			}
			decoded[k] = boxVecs
		}

		for _, vec := range boxVecs {
			lanes := make([]uint64, params.Slots)
			for lane := 0; lane < params.Slots; lane++ {
				slot := loc.RowInSegment*params.Slots + lane
				if slot >= len(vec) {
					continue
				}
				lanes[lane] = vec[slot]
			}
			label := assembleLabel(lanes, params.ChunkBits)
			out[loc.Item] = append(out[loc.Item], label)
		}
	}
	return out, nil
}

func assembleLabel(lanes []uint64, chunkBits int) [32]byte {
	var out [32]byte
	bitPos := 0
	for _, v := range lanes {
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
