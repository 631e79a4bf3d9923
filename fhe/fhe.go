// Package fhe is the thin adapter between the PSI protocol and its BFV
// collaborator: github.com/tuneinsight/lattigo/v6. Every homomorphic
// operation, key generation and serialization call goes through this
// package; other packages import lattigo's rlwe only for its ciphertext
// and key types.
package fhe

import (
	"crypto/rand"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/schemes/bfv"
	"github.com/tuneinsight/lattigo/v6/utils/sampling"

	"github.com/drand/labeled-psi/errs"
)

// Params wraps the lattigo BFV parameter set derived from the PSI Params
//.
type Params struct {
	bfv.Parameters
}

// NewParams builds BFV parameters for a ring degree N and plaintext
// modulus t, using a default 128-bit-secure modulus chain (P2:
// N and t are fixed per deployment, chosen once at setup time).
func NewParams(logN int, plaintextModulus uint64) (Params, error) {
	lit := bfv.ParametersLiteral{
		LogN:             logN,
		PlaintextModulus: plaintextModulus,
		LogQ:             []int{55, 55, 55, 55},
		LogP:             []int{61},
	}
	p, err := bfv.NewParametersFromLiteral(lit)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", errs.ErrConfig, err)
	}
	return Params{p}, nil
}

// KeySet bundles the keys a party needs: a secret key for decryption, a
// public key for encryption, and (server-side only) a relinearization key
// and the Galois keys needed for ciphertext rotation.
type KeySet struct {
	Secret   *rlwe.SecretKey
	Public   *rlwe.PublicKey
	Relin    *rlwe.RelinearizationKey
	Galois   []*rlwe.GaloisKey
	eval     rlwe.EvaluationKeySet
}

// GenerateKeys runs local BFV key generation (client side, or the
// single-party server setup : no distributed keygen protocol
// is in scope here).
func GenerateKeys(params Params, galoisElements []uint64) (KeySet, error) {
	kgen := rlwe.NewKeyGenerator(params.Parameters)
	sk, pk := kgen.GenKeyPairNew()
	rlk, err := kgen.GenRelinearizationKeyNew(sk)
	if err != nil {
		return KeySet{}, fmt.Errorf("generate relinearization key: %w", err)
	}
	var galKeys []*rlwe.GaloisKey
	for _, el := range galoisElements {
		gk, err := kgen.GenGaloisKeyNew(el, sk)
		if err != nil {
			return KeySet{}, fmt.Errorf("generate galois key for element %d: %w", el, err)
		}
		galKeys = append(galKeys, gk)
	}
	ks := KeySet{Secret: sk, Public: pk, Relin: rlk, Galois: galKeys}
	ks.eval = rlwe.NewMemEvaluationKeySet(rlk, galKeys...)
	return ks, nil
}

// EvaluationKeySet exposes the relinearization/rotation keys bundle the
// Evaluator needs, without leaking the secret key to server-side callers.
func (k KeySet) EvaluationKeySet() rlwe.EvaluationKeySet { return k.eval }

// Finalized reports whether EvaluationKeySet is ready to use.
func (k KeySet) Finalized() bool { return k.eval != nil }

// WithEvaluationKeySet rebuilds the evaluation key bundle from k's Relin
// and Galois keys, for a KeySet read back from storage (only
// Secret/Public/Relin/Galois round-trip through the key store, so the
// server must reassemble eval after Store.LoadKeys).
func (k KeySet) WithEvaluationKeySet() KeySet {
	k.eval = rlwe.NewMemEvaluationKeySet(k.Relin, k.Galois...)
	return k
}

// Encoder packs/unpacks plaintext slot vectors.
type Encoder struct {
	enc    *bfv.Encoder
	params Params
}

// NewEncoder returns an Encoder for params.
func NewEncoder(params Params) *Encoder {
	return &Encoder{enc: bfv.NewEncoder(params.Parameters), params: params}
}

// Encode packs values (length <= SlotCount) into a fresh plaintext.
func (e *Encoder) Encode(values []uint64) (*rlwe.Plaintext, error) {
	pt := bfv.NewPlaintext(e.params.Parameters, e.params.MaxLevel())
	if err := e.enc.Encode(values, pt); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return pt, nil
}

// Decode unpacks a plaintext's slots into a uint64 vector of length
// SlotCount.
func (e *Encoder) Decode(pt *rlwe.Plaintext) ([]uint64, error) {
	out := make([]uint64, e.params.MaxSlots())
	if err := e.enc.Decode(pt, out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// Encryptor/Decryptor wrap lattigo's RLWE primitives.
type Encryptor struct{ enc *rlwe.Encryptor }

func NewEncryptor(params Params, pk *rlwe.PublicKey) *Encryptor {
	return &Encryptor{enc: rlwe.NewEncryptor(params.Parameters, pk)}
}

func (e *Encryptor) Encrypt(pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	ct, err := e.enc.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ct, nil
}

type Decryptor struct{ dec *rlwe.Decryptor }

func NewDecryptor(params Params, sk *rlwe.SecretKey) *Decryptor {
	return &Decryptor{dec: rlwe.NewDecryptor(params.Parameters, sk)}
}

func (d *Decryptor) Decrypt(ct *rlwe.Ciphertext, params Params) (*rlwe.Plaintext, error) {
	pt := bfv.NewPlaintext(params.Parameters, ct.Level())
	d.dec.Decrypt(ct, pt)
	return pt, nil
}

// Evaluator exposes exactly the homomorphic operations the PS evaluator
// needs: Add, Sub, Mul (lazy, no implicit relinearize), MulPlaintext,
// Relinearize, Rotate, and representation switches.
type Evaluator struct {
	eval   *bfv.Evaluator
	params Params
}

// NewEvaluator builds an Evaluator bound to the given evaluation keys
// (relinearization + Galois rotation keys).
func NewEvaluator(params Params, evk rlwe.EvaluationKeySet) *Evaluator {
	return &Evaluator{eval: bfv.NewEvaluator(params.Parameters, evk), params: params}
}

// Add returns a+b as a fresh ciphertext.
func (e *Evaluator) Add(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree(), a.Level())
	if err := e.eval.Add(a, b, out); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	return out, nil
}

// Sub returns a-b as a fresh ciphertext.
func (e *Evaluator) Sub(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree(), a.Level())
	if err := e.eval.Sub(a, b, out); err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}
	return out, nil
}

// AddPlaintext returns a+pt as a fresh ciphertext.
func (e *Evaluator) AddPlaintext(a *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree(), a.Level())
	if err := e.eval.Add(a, pt, out); err != nil {
		return nil, fmt.Errorf("add plaintext: %w", err)
	}
	return out, nil
}

// MulLazy multiplies two ciphertexts without relinearizing, raising the
// ciphertext degree. The PS evaluator does not call it directly: it
// multiplies through MulRelin, which relinearizes after every product.
func (e *Evaluator) MulLazy(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree()+b.Degree(), a.Level())
	if err := e.eval.Mul(a, b, out); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	return out, nil
}

// MulPlaintext multiplies a ciphertext by a packed plaintext vector,
// which never raises ciphertext degree.
func (e *Evaluator) MulPlaintext(a *rlwe.Ciphertext, pt *rlwe.Plaintext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree(), a.Level())
	if err := e.eval.Mul(a, pt, out); err != nil {
		return nil, fmt.Errorf("mul plaintext: %w", err)
	}
	return out, nil
}

// Relinearize reduces a's degree back to 1. MulRelin calls it after each
// multiplication; relinearization is not deferred across several products.
func (e *Evaluator) Relinearize(a *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, 1, a.Level())
	if err := e.eval.Relinearize(a, out); err != nil {
		return nil, fmt.Errorf("relinearize: %w", err)
	}
	return out, nil
}

// MulRelin multiplies and immediately relinearizes, for call sites that
// do not defer relinearization.
func (e *Evaluator) MulRelin(a, b *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	raised, err := e.MulLazy(a, b)
	if err != nil {
		return nil, err
	}
	return e.Relinearize(raised)
}

// Rotate cyclically rotates the packed slots of a by steps (// used when reassembling a row's packed chunks into aligned lanes).
func (e *Evaluator) Rotate(a *rlwe.Ciphertext, steps int) (*rlwe.Ciphertext, error) {
	out := bfv.NewCiphertext(e.params.Parameters, a.Degree(), a.Level())
	if err := e.eval.RotateColumns(a, steps, out); err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	return out, nil
}

// GaloisElementForRotation exposes the Galois element a steps-rotation
// needs, so callers can request exactly the rotation keys GenerateKeys
// must produce.
func GaloisElementForRotation(params Params, steps int) uint64 {
	return params.GaloisElement(steps)
}

// Representation tags which domain a ciphertext's polynomials are
// currently stored in: Coefficient (the domain add/sub/relinearize and
// fresh encryption/decryption operate in) or Evaluation (NTT domain,
// where plaintext multiplication is cheap per-slot instead of a
// polynomial convolution). The PS evaluator's materialized source powers
// must be in Evaluation representation before they feed the inner-loop
// plaintext multiplications; everything above the PS low-degree split
// stays in Coefficient representation. Passing the wrong representation
// to the wrong operation produces silently wrong plaintexts, never a
// runtime error, so call sites must track it explicitly rather than
// inferring it from a ciphertext alone.
type Representation int

const (
	Coefficient Representation = iota
	Evaluation
)

// ChangeRepresentation returns a copy of ct switched to the requested
// representation, or ct itself (still copied) if it is already there.
// NTT/INTT act in place on each of ct's RNS polynomials at its current
// modulus level, mirroring the representation toggle lattigo's own
// internal operators (e.g. Trace) perform around ctIn.IsNTT.
func (e *Evaluator) ChangeRepresentation(ct *rlwe.Ciphertext, to Representation) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	wantNTT := to == Evaluation
	if out.IsNTT == wantNTT {
		return out, nil
	}
	ringQ := e.params.RingQ().AtLevel(out.Level())
	for i := range out.Q {
		if wantNTT {
			ringQ.NTT(out.Q[i], out.Q[i])
		} else {
			ringQ.INTT(out.Q[i], out.Q[i])
		}
	}
	out.IsNTT = wantNTT
	return out, nil
}

// ModDownLevel switches ct down to the last modulus level (dropping every
// remaining RNS prime but one), the form the wire codec requires for
// server responses: a query answer is decrypted exactly once, so there is
// no reason to ship the noise budget for further multiplications. Each
// Rescale call drops exactly one level (the same scale-invariant
// technique BGV/BFV use when catching up the plaintext scale after a
// multiplication), so this loops until level 0 is reached.
func (e *Evaluator) ModDownLevel(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	out := ct.CopyNew()
	for out.Level() > 0 {
		next := bfv.NewCiphertext(e.params.Parameters, out.Degree(), out.Level()-1)
		if err := e.eval.Rescale(out, next); err != nil {
			return nil, fmt.Errorf("mod down level %d: %w", out.Level(), err)
		}
		out = next
	}
	return out, nil
}

// SeededEncryptor draws a fresh 32-byte seed per call and encrypts with
// a PRNG keyed from it, so the resulting ciphertext's second polynomial is
// fully determined by (params, seed): the wire codec only needs to carry
// the seed and the first polynomial, regenerating the second on the
// receiving side. Used only for fresh client queries (server responses
// are always un-seeded, since they are serialized once and never
// re-derived).
type SeededEncryptor struct {
	params Params
	pk     *rlwe.PublicKey
}

// NewSeededEncryptor returns a SeededEncryptor bound to pk.
func NewSeededEncryptor(params Params, pk *rlwe.PublicKey) *SeededEncryptor {
	return &SeededEncryptor{params: params, pk: pk}
}

// EncryptSeeded encrypts pt, returning the compact seeded form.
func (e *SeededEncryptor) EncryptSeeded(pt *rlwe.Plaintext) (*SeededCiphertext, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("draw ciphertext seed: %w", err)
	}
	prng, err := sampling.NewKeyedPRNG(seed[:])
	if err != nil {
		return nil, fmt.Errorf("seeded prng: %w", err)
	}
	enc := rlwe.NewEncryptor(e.params.Parameters, e.pk).WithPRNG(prng)
	ct, err := enc.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("seeded encrypt: %w", err)
	}
	return &SeededCiphertext{Level: ct.Level(), Seed: seed, C0: ct.Q[0]}, nil
}

// Expand reconstructs the full two-polynomial ciphertext a SeededCiphertext
// represents, regenerating its uniformly-random half with the same keyed
// PRNG the encryptor drew it from.
func (sc *SeededCiphertext) Expand(params Params) (*rlwe.Ciphertext, error) {
	prng, err := sampling.NewKeyedPRNG(sc.Seed[:])
	if err != nil {
		return nil, fmt.Errorf("seeded ciphertext prng: %w", err)
	}
	ringQ := params.RingQ().AtLevel(sc.Level)
	c1 := ringQ.NewRNSPoly()
	ring.NewUniformSampler(prng, ringQ).Read(c1)

	ct := bfv.NewCiphertext(params.Parameters, 1, sc.Level)
	ct.Q[0].Copy(sc.C0)
	ct.Q[1].Copy(c1)
	return ct, nil
}
