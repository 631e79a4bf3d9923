// Package wire implements the length-framed binary protocol between PSI
// client and server: a raw TCP exchange of serialized
// ciphertexts, not an RPC/IDL framework, since the payload is opaque FHE
// ciphertext bytes rather than structured application messages.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/drand/labeled-psi/errs"
)

// maxFrameBytes bounds a single length-prefixed frame, guarding a
// malicious or corrupt peer from requesting an unbounded allocation
//.
const maxFrameBytes = 256 << 20

// writeFrame writes a uint32-length-prefixed byte slice.
func writeFrame(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// readFrame reads one uint32-length-prefixed byte slice.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: frame length: %v", errs.ErrShort, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("%w: frame length %d exceeds maximum %d", errs.ErrMalformed, n, maxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: frame body: %v", errs.ErrShort, err)
	}
	return buf, nil
}
