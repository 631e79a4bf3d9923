package wire

import (
	"bytes"
	"fmt"

	"github.com/drand/labeled-psi/db"
	"github.com/drand/labeled-psi/errs"
	"github.com/drand/labeled-psi/fhe"
)

// Response is the wire form of the server's evaluated results: per table,
// per segment, a variable-length list of InnerBox result ciphertexts in
// InnerBox order. A segment's InnerBox count grows with the dataset, so
// the codec carries an explicit per-segment count ahead of its
// ciphertexts rather than assuming a fixed shape. Every ciphertext is
// transmitted un-seeded (MarshalCiphertext): server responses accumulate
// additions and plaintext multiplications, so they no longer have a
// PRNG-derived half to omit.
type Response struct {
	Tables []db.TableResult
}

// EncodeResponse serializes resp.
func EncodeResponse(resp Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(resp.Tables))); err != nil {
		return nil, err
	}
	for t, table := range resp.Tables {
		if err := writeUint32(&buf, uint32(len(table))); err != nil {
			return nil, fmt.Errorf("table %d: %w", t, err)
		}
		for g, segResp := range table {
			if err := writeUint32(&buf, uint32(len(segResp))); err != nil {
				return nil, fmt.Errorf("table %d segment %d: %w", t, g, err)
			}
			for bi, ct := range segResp {
				b, err := fhe.MarshalCiphertext(ct)
				if err != nil {
					return nil, fmt.Errorf("table %d segment %d box %d: %w", t, g, bi, err)
				}
				if err := writeFrame(&buf, b); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

// DecodeResponse parses the wire form written by EncodeResponse.
func DecodeResponse(b []byte) (Response, error) {
	r := bytes.NewReader(b)
	numTables, err := readUint32(r)
	if err != nil {
		return Response{}, err
	}
	const maxTables = 64
	if numTables > maxTables {
		return Response{}, fmt.Errorf("%w: response declares %d tables, maximum %d", errs.ErrMalformed, numTables, maxTables)
	}

	tables := make([]db.TableResult, numTables)
	for t := range tables {
		numSegments, err := readUint32(r)
		if err != nil {
			return Response{}, fmt.Errorf("table %d: %w", t, err)
		}
		const maxSegments = 1 << 20
		if numSegments > maxSegments {
			return Response{}, fmt.Errorf("%w: table %d declares %d segments, maximum %d", errs.ErrMalformed, t, numSegments, maxSegments)
		}
		table := make(db.TableResult, numSegments)
		for g := uint32(0); g < numSegments; g++ {
			numBoxes, err := readUint32(r)
			if err != nil {
				return Response{}, fmt.Errorf("table %d segment %d: %w", t, g, err)
			}
			const maxBoxes = 1 << 16
			if numBoxes > maxBoxes {
				return Response{}, fmt.Errorf("%w: table %d segment %d declares %d inner boxes, maximum %d", errs.ErrMalformed, t, g, numBoxes, maxBoxes)
			}
			segResp := make(db.SegmentResponse, numBoxes)
			for bi := range segResp {
				frame, err := readFrame(r)
				if err != nil {
					return Response{}, err
				}
				ct, err := fhe.UnmarshalCiphertext(frame)
				if err != nil {
					return Response{}, err
				}
				segResp[bi] = ct
			}
			table[g] = segResp
		}
		tables[t] = table
	}
	return Response{Tables: tables}, nil
}
