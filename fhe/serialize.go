package fhe

import (
	"encoding/binary"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/drand/labeled-psi/errs"
)

// MarshalCiphertext serializes ct using lattigo's own binary encoding, the
// representation carried over the wire between client and server:
// ciphertexts are opaque byte blobs to the wire codec.
func MarshalCiphertext(ct *rlwe.Ciphertext) ([]byte, error) {
	b, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return b, nil
}

// UnmarshalCiphertext deserializes a wire-format ciphertext.
func UnmarshalCiphertext(b []byte) (*rlwe.Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext: %v", errs.ErrMalformed, err)
	}
	return ct, nil
}

// SeededCiphertext is the compact wire form of a freshly client-encrypted
// ciphertext: its second polynomial is reproducible from Seed alone, so
// only C0 and the seed need to cross the wire. Only fresh query
// ciphertexts use this form; server responses accumulate additions and
// plaintext multiplications and so no longer have a PRNG-derived half,
// and are always marshaled with MarshalCiphertext instead.
type SeededCiphertext struct {
	Level int
	Seed  [32]byte
	C0    ring.RNSPoly
}

// MarshalSeededCiphertext encodes sc as a 4-byte level, a 32-byte seed,
// and C0's own binary encoding, in that order. Every query ciphertext at
// a given deployment's parameters marshals to the same length Q, since
// Level and the ring degree/moduli are fixed per deployment.
func MarshalSeededCiphertext(sc *SeededCiphertext) ([]byte, error) {
	c0, err := sc.C0.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal seeded ciphertext: %w", err)
	}
	out := make([]byte, 4+32+len(c0))
	binary.LittleEndian.PutUint32(out[0:4], uint32(sc.Level))
	copy(out[4:36], sc.Seed[:])
	copy(out[36:], c0)
	return out, nil
}

// UnmarshalSeededCiphertext decodes a SeededCiphertext previously produced
// by MarshalSeededCiphertext.
func UnmarshalSeededCiphertext(b []byte) (*SeededCiphertext, error) {
	if len(b) < 36 {
		return nil, fmt.Errorf("%w: seeded ciphertext too short", errs.ErrMalformed)
	}
	sc := &SeededCiphertext{Level: int(binary.LittleEndian.Uint32(b[0:4]))}
	copy(sc.Seed[:], b[4:36])
	if err := sc.C0.UnmarshalBinary(b[36:]); err != nil {
		return nil, fmt.Errorf("%w: malformed seeded ciphertext: %v", errs.ErrMalformed, err)
	}
	return sc, nil
}

// MarshalPublicKey/UnmarshalPublicKey serialize a public key; the key
// store uses them to persist the server's own public key.
func MarshalPublicKey(pk *rlwe.PublicKey) ([]byte, error) {
	b, err := pk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return b, nil
}

func UnmarshalPublicKey(b []byte) (*rlwe.PublicKey, error) {
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: malformed public key: %v", errs.ErrMalformed, err)
	}
	return pk, nil
}

// MarshalRelinKey/UnmarshalRelinKey serialize a relinearization key;
// Galois keys are serialized one at a time by MarshalGaloisKey.
func MarshalRelinKey(rlk *rlwe.RelinearizationKey) ([]byte, error) {
	b, err := rlk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal relinearization key: %w", err)
	}
	return b, nil
}

func UnmarshalRelinKey(b []byte) (*rlwe.RelinearizationKey, error) {
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: malformed relinearization key: %v", errs.ErrMalformed, err)
	}
	return rlk, nil
}

func MarshalGaloisKey(gk *rlwe.GaloisKey) ([]byte, error) {
	b, err := gk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal galois key: %w", err)
	}
	return b, nil
}

func UnmarshalGaloisKey(b []byte) (*rlwe.GaloisKey, error) {
	gk := new(rlwe.GaloisKey)
	if err := gk.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: malformed galois key: %v", errs.ErrMalformed, err)
	}
	return gk, nil
}
