// Package psiclient builds encrypted queries from a client's item set and
// decodes the server's response back into candidate labels for each
// queried item.
package psiclient

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/cuckoo"
	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
	"github.com/drand/labeled-psi/params"
	"github.com/drand/labeled-psi/wire"
)

// ItemLocation records where the server may have placed a query item: the
// client does not re-run the server's eviction process (it never sees the
// server's dataset), so it queries every one of an item's h candidate
// (table, row) positions and lets the response decoder find whichever one
// the server actually used.
type ItemLocation struct {
	Item         [32]byte
	Table        int
	Segment      int
	RowInSegment int
}

// QueryState retains the locations every query item was placed at, so the
// decoder can map response ciphertexts back to items.
type QueryState struct {
	hasher    *cuckoo.Hasher
	items     [][32]byte
	locations []ItemLocation
}

// BuildQueryState computes, for every item, its h candidate (table, row)
// positions under the deployment's cuckoo hash shape.
func BuildQueryState(p params.Params, items [][32]byte) *QueryState {
	hasher := cuckoo.New(int(p.NumHashTables), p.TableSize)
	rowsPerSegment := p.RowsPerSegment()

	var locations []ItemLocation
	for _, item := range items {
		for table, row := range hasher.Indices(item) {
			locations = append(locations, ItemLocation{
				Item:         item,
				Table:        table,
				Segment:      int(row) / rowsPerSegment,
				RowInSegment: int(row) % rowsPerSegment,
			})
		}
	}
	return &QueryState{hasher: hasher, items: items, locations: locations}
}

// Locations returns every (item, table, segment, row) the query touches.
func (qs *QueryState) Locations() []ItemLocation { return qs.locations }

// BuildCiphertexts encrypts, for every table and every segment, one
// N-slot packed vector per source power: slot rowInSegment*slots+lane
// holds the chunk value of whichever query item's candidate position
// lands on that row of that segment, raised to the source power, or 0 if
// no query item touches that row (the server still evaluates that slot
// but the client discards its result). This mirrors the exact packing
// InnerBox.PackedCoeffs uses server-side, so one N-slot ciphertext per
// (table, segment, power) answers every InnerBox the segment currently
// holds. Returns one map[segment]sources per table, directly usable as
// wire.Query.Tables.
func BuildCiphertexts(qs *QueryState, p params.Params, enc *fhe.Encoder, seeded *fhe.SeededEncryptor) ([]map[int]map[int]*fhe.SeededCiphertext, error) {
	rowsPerSegment := p.RowsPerSegment()
	numTables := int(p.NumHashTables)
	width := rowsPerSegment * params.Slots

	// vecs[table][segment] is the N-slot packed chunk vector for that
	// (table, segment), built once, then raised to every source power.
	type key struct{ table, segment int }
	vecs := make(map[key][]uint64)
	for t := 0; t < numTables; t++ {
		for g := 0; g < p.SegmentCount(); g++ {
			vecs[key{t, g}] = make([]uint64, width)
		}
	}
	for _, loc := range qs.locations {
		k := key{loc.Table, loc.Segment}
		vec, ok := vecs[k]
		if !ok {
			vec = make([]uint64, width)
			vecs[k] = vec
		}
		for lane := 0; lane < params.Slots; lane++ {
			vec[loc.RowInSegment*params.Slots+lane] = chunkValue(loc.Item, lane, params.ChunkBits)
		}
	}

	out := make([]map[int]map[int]*fhe.SeededCiphertext, numTables)
	for t := range out {
		out[t] = make(map[int]map[int]*fhe.SeededCiphertext)
	}
	for k, vec := range vecs {
		sources := make(map[int]*fhe.SeededCiphertext, len(p.SourcePowers))
		for _, sp := range p.SourcePowers {
			powered := make([]uint64, width)
			for i, v := range vec {
				powered[i] = powMod(v, sp, p.PlaintextModulus)
			}
			pt, err := enc.Encode(powered)
			if err != nil {
				return nil, fmt.Errorf("encode table %d segment %d power %d: %w", k.table, k.segment, sp, err)
			}
			ct, err := seeded.EncryptSeeded(pt)
			if err != nil {
				return nil, fmt.Errorf("encrypt table %d segment %d power %d: %w", k.table, k.segment, sp, err)
			}
			sources[sp] = ct
		}
		out[k.table][k.segment] = sources
	}
	return out, nil
}

// BuildOneCiphertext encrypts the all-ones vector under the same key as
// the query's source powers, for the server's PS evaluator to represent
// the x^0 term. Reused verbatim across queries rather than freshly
// drawn, so it is encrypted in the plain, un-seeded form.
func BuildOneCiphertext(p params.Params, enc *fhe.Encoder, encryptor *fhe.Encryptor) (*rlwe.Ciphertext, error) {
	ones := make([]uint64, p.SlotCount)
	for i := range ones {
		ones[i] = 1
	}
	pt, err := enc.Encode(ones)
	if err != nil {
		return nil, fmt.Errorf("encode one vector: %w", err)
	}
	ct, err := encryptor.Encrypt(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt one vector: %w", err)
	}
	return ct, nil
}

// BuildQuery is the client's full query-construction step: it hashes
// items into candidate positions, encrypts every source power per
// (table, segment) in seeded form, encrypts the shared all-ones
// ciphertext, and returns both the wire message to send and the
// QueryState needed to decode the eventual response.
func BuildQuery(p params.Params, enc *fhe.Encoder, encryptor *fhe.Encryptor, seeded *fhe.SeededEncryptor, items [][32]byte) (*QueryState, wire.Query, error) {
	qs := BuildQueryState(p, items)
	tables, err := BuildCiphertexts(qs, p, enc, seeded)
	if err != nil {
		return nil, wire.Query{}, err
	}
	one, err := BuildOneCiphertext(p, enc, encryptor)
	if err != nil {
		return nil, wire.Query{}, err
	}
	return qs, wire.Query{Tables: tables, SourcePowers: p.SourcePowers, One: one}, nil
}

func chunkValue(item [32]byte, lane, chunkBits int) uint64 {
	start := lane * chunkBits
	var acc uint64
	for i := 0; i < chunkBits; i++ {
		bit := start + i
		byteIdx := bit / 8
		if byteIdx >= len(item) {
			break
		}
		bitIdx := uint(bit % 8)
		if item[byteIdx]&(1<<bitIdx) != 0 {
			acc |= 1 << uint(i)
		}
	}
	return acc
}

func powMod(base uint64, exp int, mod uint64) uint64 {
	if exp < 0 {
		panic(fmt.Sprintf("%v: negative source power %d", errs.ErrConfig, exp))
	}
	acc := uint64(1)
	b := base % mod
	for i := 0; i < exp; i++ {
		acc = (acc * b) % mod
	}
	return acc
}
