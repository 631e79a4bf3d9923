// Package params holds the cryptographic parameters P shared between the
// PSI server and client, loaded from and saved to a TOML file via
// BurntSushi/toml.
package params

import (
	"bytes"
	"fmt"
	"math/bits"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/drand/labeled-psi/errs"
)

// PsiBits is the fixed bit-width of both items and labels.
const PsiBits = 256

// ChunkBits is the width of one SIMD-packed chunk.
const ChunkBits = 16

// Slots is the number of SIMD slots a single 256-bit item/label occupies.
const Slots = PsiBits / ChunkBits

// Params holds the full set of parameters P described in.
type Params struct {
	// NumHashTables is h: the number of cuckoo hash tables (<= 8).
	NumHashTables int `toml:"num_hash_tables"`
	// TableSize is H: the hash-table size per BigBox (a power of two).
	TableSize uint32 `toml:"table_size"`
	// SlotCount is N: the ciphertext SIMD lane count / BFV polynomial degree.
	SlotCount int `toml:"slot_count"`
	// PlaintextModulus is t: the BFV plaintext prime.
	PlaintextModulus uint64 `toml:"plaintext_modulus"`
	// Degree is D: total PS polynomial degree.
	Degree int `toml:"degree"`
	// LowDegree is L: the PS low-degree split.
	LowDegree int `toml:"low_degree"`
	// SourcePowers is the set source_powers clients must raise queries to.
	SourcePowers []int `toml:"source_powers"`
}

// Default returns the default parameter set from.
func Default() Params {
	return Params{
		NumHashTables:    3,
		TableSize:        1 << 12,
		SlotCount:        1 << 13,
		PlaintextModulus: 65537,
		Degree:           1304,
		LowDegree:        44,
		SourcePowers:     []int{1, 3, 11, 18, 45, 225},
	}
}

// RowsPerSegment returns N/s, the number of InnerBox logical rows that fit
// in one ciphertext's worth of slots (invariant P1: N divisible by s).
func (p Params) RowsPerSegment() int {
	return p.SlotCount / Slots
}

// SegmentCount returns S = ceil(H / (N/s)), the number of segments per
// BigBox.
func (p Params) SegmentCount() int {
	rps := p.RowsPerSegment()
	return int((uint32(p.TableSize) + uint32(rps) - 1) / uint32(rps))
}

// LogN returns the ring degree exponent the BFV backend needs, derived
// from SlotCount (Validate already guarantees it is a power of two).
func (p Params) LogN() int {
	return bits.Len(uint(p.SlotCount)) - 1
}

// Validate checks invariants P1 and P2 and basic sanity bounds, returning
// errs.ErrConfig wrapped with a reason on failure. It does not check P3
// (that the source powers reach every target power); powers.Build does.
func (p Params) Validate() error {
	if p.NumHashTables <= 0 || p.NumHashTables > 8 {
		return fmt.Errorf("%w: num_hash_tables must be in [1,8], got %d", errs.ErrConfig, p.NumHashTables)
	}
	if p.TableSize == 0 || p.TableSize&(p.TableSize-1) != 0 {
		return fmt.Errorf("%w: table_size must be a power of two, got %d", errs.ErrConfig, p.TableSize)
	}
	if p.SlotCount <= 0 || p.SlotCount&(p.SlotCount-1) != 0 {
		return fmt.Errorf("%w: slot_count must be a power of two, got %d", errs.ErrConfig, p.SlotCount)
	}
	if p.SlotCount%Slots != 0 {
		return fmt.Errorf("%w: slot_count (N=%d) must be divisible by s=%d", errs.ErrConfig, p.SlotCount, Slots)
	}
	if PsiBits%8 != 0 || ChunkBits%8 != 0 || PsiBits&(PsiBits-1) != 0 || ChunkBits&(ChunkBits-1) != 0 {
		return fmt.Errorf("%w: psi_bits and chunk_bits must be powers-of-two multiples of 8", errs.ErrConfig)
	}
	if p.LowDegree <= 0 || p.Degree <= 0 || p.LowDegree > p.Degree {
		return fmt.Errorf("%w: require 0 < low_degree <= degree", errs.ErrConfig)
	}
	if len(p.SourcePowers) == 0 {
		return fmt.Errorf("%w: source_powers must be non-empty", errs.ErrConfig)
	}
	return nil
}

// Load reads a Params value from a TOML file.
func Load(path string) (Params, error) {
	var p Params
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Params{}, fmt.Errorf("params: loading %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Save writes p to path as TOML.
func Save(path string, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("params: creating %s: %w", path, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	return enc.Encode(p)
}

// Marshal encodes p as TOML bytes, for embedding params alongside key
// material in a store rather than a standalone file.
func Marshal(p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("params: encoding: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes p from TOML bytes produced by Marshal.
func Unmarshal(b []byte) (Params, error) {
	var p Params
	if _, err := toml.Decode(string(b), &p); err != nil {
		return Params{}, fmt.Errorf("%w: decoding params: %v", errs.ErrMalformed, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
