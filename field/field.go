// Package field implements arithmetic over the prime field used by the
// auction's secret-sharing and circuit layers: p = 2^127 - 1, a Mersenne
// prime large enough that no bid, bit-decomposition intermediate, or
// Lagrange coefficient ever wraps.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Prime is 2^127 - 1.
var Prime = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

var (
	two     = big.NewInt(2)
	primeM2 = new(big.Int).Sub(Prime, two)
)

// Element is an immutable value in Z/pZ. The zero value Element{} behaves
// as zero; Zero() and New* are the usual constructors.
type Element struct {
	v *big.Int
}

func normalize(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, Prime)
	return r
}

// New builds a field element from an arbitrary (possibly negative,
// possibly out-of-range) integer.
func New(v int64) Element {
	return Element{v: normalize(big.NewInt(v))}
}

// FromBigInt builds a field element from a big.Int, reducing mod p.
func FromBigInt(v *big.Int) Element {
	return Element{v: normalize(v)}
}

// FromParty embeds a party ID (1..N) as the x-coordinate of its share.
func FromParty(id int) Element {
	return New(int64(id))
}

// Zero is the additive identity.
func Zero() Element { return Element{v: big.NewInt(0)} }

// One is the multiplicative identity.
func One() Element { return Element{v: big.NewInt(1)} }

// Random returns a uniformly random nonzero element, reading entropy from
// crypto/rand. Deterministic, seeded sampling is layered on top in the rng
// package and fed in by the caller.
func Random() Element {
	for {
		v, err := rand.Int(rand.Reader, Prime)
		if err != nil {
			panic(fmt.Errorf("field: reading randomness: %w", err))
		}
		if v.Sign() != 0 {
			return Element{v: v}
		}
	}
}

// RandomIncludingZero returns a uniformly random element, zero included.
func RandomIncludingZero() Element {
	v, err := rand.Int(rand.Reader, Prime)
	if err != nil {
		panic(fmt.Errorf("field: reading randomness: %w", err))
	}
	return Element{v: v}
}

// RandomFromSource samples using an external uint64 source (e.g. a seeded
// PRNG), rejection-sampling 16 bytes at a time to stay unbiased.
func RandomFromSource(nextUint64 func() uint64) Element {
	buf := make([]byte, 16)
	for {
		for i := 0; i < 2; i++ {
			v := nextUint64()
			for b := 0; b < 8; b++ {
				buf[i*8+b] = byte(v >> (8 * b))
			}
		}
		cand := new(big.Int).SetBytes(buf)
		if cand.Cmp(Prime) < 0 {
			return Element{v: cand}
		}
	}
}

func (e Element) big() *big.Int {
	if e.v == nil {
		return big.NewInt(0)
	}
	return e.v
}

// Add returns e + o mod p.
func (e Element) Add(o Element) Element {
	return Element{v: normalize(new(big.Int).Add(e.big(), o.big()))}
}

// Sub returns e - o mod p.
func (e Element) Sub(o Element) Element {
	return Element{v: normalize(new(big.Int).Sub(e.big(), o.big()))}
}

// Mul returns e * o mod p.
func (e Element) Mul(o Element) Element {
	return Element{v: normalize(new(big.Int).Mul(e.big(), o.big()))}
}

// Neg returns -e mod p.
func (e Element) Neg() Element {
	return Element{v: normalize(new(big.Int).Neg(e.big()))}
}

// Inverse returns the multiplicative inverse via Fermat's little theorem.
// Panics on the zero element, mirroring a precondition violation (§7).
func (e Element) Inverse() Element {
	if e.IsZero() {
		panic("field: inverse of zero")
	}
	return Element{v: new(big.Int).Exp(e.big(), primeM2, Prime)}
}

// Div returns e / o mod p.
func (e Element) Div(o Element) Element {
	return e.Mul(o.Inverse())
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool {
	return e.big().Sign() == 0
}

// Equal reports value equality.
func (e Element) Equal(o Element) bool {
	return e.big().Cmp(o.big()) == 0
}

// Cmp orders elements by their canonical [0,p) representative. Only used
// for deterministic tie-breaking in tests and canonical serialization, not
// for any field-theoretic purpose.
func (e Element) Cmp(o Element) int {
	return e.big().Cmp(o.big())
}

// Bit returns the i-th bit (0 = LSB) of the canonical representative.
func (e Element) Bit(i int) int {
	return int(e.big().Bit(i))
}

// ToInt64 returns the canonical representative as an int64. Panics if it
// does not fit, which should never happen for bid-sized or bit-sized
// values in this system.
func (e Element) ToInt64() int64 {
	if !e.big().IsInt64() {
		panic("field: value does not fit in int64")
	}
	return e.big().Int64()
}

// String renders the canonical decimal representative.
func (e Element) String() string {
	return e.big().String()
}

// Bytes returns the canonical big-endian byte encoding, fixed at 16 bytes
// (ceil(127/8)), used for hashing into VIDs and other digests.
func (e Element) Bytes() []byte {
	b := e.big().Bytes()
	out := make([]byte, 16)
	copy(out[16-len(b):], b)
	return out
}
