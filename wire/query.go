package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
)

// Query is the wire form of a client's encrypted source powers: per
// table, per segment, one seeded ciphertext per source power. The layout
// is dense and segment-major rather than keyed by (segment, lane): every
// segment of every table carries exactly len(SourcePowers) ciphertexts
// regardless of which cuckoo slots the client's items actually touched,
// since the server evaluates every InnerBox in a segment against the same
// materialized power set. This is what keeps the query at h*S*|source
// powers| ciphertexts instead of the sparse h*S*slots*|source powers|
// upper bound a per-lane encoding would cost, and every ciphertext
// marshals to the same length Q since Tables only ever carries seeded,
// freshly-encrypted ciphertexts.
type Query struct {
	// Tables[t][g][power] is table t, segment g's source-power ciphertext,
	// in the compact seeded form psiclient.BuildCiphertexts produces.
	Tables []map[int]map[int]*fhe.SeededCiphertext
	// SourcePowers fixes the power set and its order, so the codec does
	// not need to repeat it per-segment: every segment of every table
	// carries exactly these powers, in this order.
	SourcePowers []int
	// One is an encryption of the all-ones vector under the same key as
	// every source-power ciphertext, letting the server's PS evaluator
	// represent the x^0 term uniformly instead of special-casing it.
	// Reused verbatim across queries rather than freshly drawn, so it
	// travels in the plain, un-seeded form.
	One *rlwe.Ciphertext
}

// EncodeQuery serializes q.
func EncodeQuery(q Query) ([]byte, error) {
	var buf bytes.Buffer
	oneBytes, err := fhe.MarshalCiphertext(q.One)
	if err != nil {
		return nil, fmt.Errorf("one ciphertext: %w", err)
	}
	if err := writeFrame(&buf, oneBytes); err != nil {
		return nil, err
	}

	if err := writeUint32(&buf, uint32(len(q.SourcePowers))); err != nil {
		return nil, err
	}
	for _, power := range q.SourcePowers {
		if err := writeUint32(&buf, uint32(power)); err != nil {
			return nil, err
		}
	}

	if err := writeUint32(&buf, uint32(len(q.Tables))); err != nil {
		return nil, err
	}
	for t, table := range q.Tables {
		if err := writeUint32(&buf, uint32(len(table))); err != nil {
			return nil, fmt.Errorf("table %d: %w", t, err)
		}
		for g := 0; g < len(table); g++ {
			sources, ok := table[g]
			if !ok {
				return nil, fmt.Errorf("%w: table %d missing segment %d", errs.ErrMalformed, t, g)
			}
			for _, power := range q.SourcePowers {
				sc, ok := sources[power]
				if !ok {
					return nil, fmt.Errorf("%w: table %d segment %d missing power %d", errs.ErrMalformed, t, g, power)
				}
				b, err := fhe.MarshalSeededCiphertext(sc)
				if err != nil {
					return nil, fmt.Errorf("table %d segment %d power %d: %w", t, g, power, err)
				}
				if err := writeFrame(&buf, b); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

// DecodeQuery parses the wire form written by EncodeQuery.
func DecodeQuery(b []byte) (Query, error) {
	r := bytes.NewReader(b)
	oneFrame, err := readFrame(r)
	if err != nil {
		return Query{}, fmt.Errorf("one ciphertext: %w", err)
	}
	one, err := fhe.UnmarshalCiphertext(oneFrame)
	if err != nil {
		return Query{}, err
	}

	numPowers, err := readUint32(r)
	if err != nil {
		return Query{}, err
	}
	const maxPowers = 256
	if numPowers > maxPowers {
		return Query{}, fmt.Errorf("%w: query declares %d source powers, maximum %d", errs.ErrMalformed, numPowers, maxPowers)
	}
	sourcePowers := make([]int, numPowers)
	for i := range sourcePowers {
		power, err := readUint32(r)
		if err != nil {
			return Query{}, err
		}
		sourcePowers[i] = int(power)
	}

	numTables, err := readUint32(r)
	if err != nil {
		return Query{}, err
	}
	const maxTables = 64
	if numTables > maxTables {
		return Query{}, fmt.Errorf("%w: query declares %d tables, maximum %d", errs.ErrMalformed, numTables, maxTables)
	}

	tables := make([]map[int]map[int]*fhe.SeededCiphertext, numTables)
	for t := range tables {
		numSegments, err := readUint32(r)
		if err != nil {
			return Query{}, fmt.Errorf("table %d: %w", t, err)
		}
		const maxSegments = 1 << 20
		if numSegments > maxSegments {
			return Query{}, fmt.Errorf("%w: table %d declares %d segments, maximum %d", errs.ErrMalformed, t, numSegments, maxSegments)
		}
		table := make(map[int]map[int]*fhe.SeededCiphertext, numSegments)
		for g := uint32(0); g < numSegments; g++ {
			sources := make(map[int]*fhe.SeededCiphertext, len(sourcePowers))
			for _, power := range sourcePowers {
				frame, err := readFrame(r)
				if err != nil {
					return Query{}, err
				}
				sc, err := fhe.UnmarshalSeededCiphertext(frame)
				if err != nil {
					return Query{}, err
				}
				sources[power] = sc
			}
			table[int(g)] = sources
		}
		tables[t] = table
	}
	return Query{Tables: tables, SourcePowers: sourcePowers, One: one}, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrShort, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
