package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmeticIdentities(t *testing.T) {
	a := New(17)
	b := New(5)

	assert.True(t, a.Add(b).Sub(b).Equal(a))
	assert.True(t, a.Mul(b).Div(b).Equal(a))
	assert.True(t, a.Add(a.Neg()).IsZero())
	assert.True(t, Zero().Add(a).Equal(a))
	assert.True(t, One().Mul(a).Equal(a))
}

func TestNegativeAndWraparoundNormalize(t *testing.T) {
	assert.True(t, New(-1).Equal(FromBigInt(new(big.Int).Set(Prime)).Sub(One())))
}

func TestInverse(t *testing.T) {
	a := New(12345)
	inv := a.Inverse()
	assert.True(t, a.Mul(inv).Equal(One()))
}

func TestInverseOfZeroPanics(t *testing.T) {
	assert.Panics(t, func() { Zero().Inverse() })
}

func TestBitRoundTrip(t *testing.T) {
	v := New(0b1011)
	require.Equal(t, 1, v.Bit(0))
	require.Equal(t, 1, v.Bit(1))
	require.Equal(t, 0, v.Bit(2))
	require.Equal(t, 1, v.Bit(3))
}

func TestRandomFromSourceStaysInField(t *testing.T) {
	var calls int
	src := func() uint64 {
		calls++
		return uint64(calls) * 0x9E3779B97F4A7C15
	}
	for i := 0; i < 100; i++ {
		e := RandomFromSource(src)
		assert.Equal(t, -1, e.big().Cmp(Prime))
	}
}

func TestBytesEncodingIsSixteenBytes(t *testing.T) {
	e := New(42)
	assert.Len(t, e.Bytes(), 16)
}
