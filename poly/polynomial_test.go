package poly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondprice-mpc-auction/field"
)

func TestEvaluateConstant(t *testing.T) {
	p := Polynomial{Coeffs: []field.Element{field.New(7)}}
	assert.True(t, p.Evaluate(field.New(99)).Equal(field.New(7)))
}

func TestEvaluateLinear(t *testing.T) {
	// p(x) = 3 + 2x
	p := Polynomial{Coeffs: []field.Element{field.New(3), field.New(2)}}
	assert.True(t, p.Evaluate(field.New(5)).Equal(field.New(13)))
}

func TestRandomKeepsConstantTerm(t *testing.T) {
	secret := field.New(42)
	calls := 0
	randFn := func() field.Element { calls++; return field.New(int64(calls) * 11) }
	p := Random(2, secret, randFn)
	require.Len(t, p.Coeffs, 3)
	assert.True(t, p.Coeffs[0].Equal(secret))
	assert.True(t, p.Evaluate(field.Zero()).Equal(secret))
}

func TestInterpolateAtZeroRecoversSecret(t *testing.T) {
	secret := field.New(123)
	p := Random(2, secret, func() field.Element { return field.New(7) })

	points := []Point{
		{X: field.New(1), Y: p.Evaluate(field.New(1))},
		{X: field.New(2), Y: p.Evaluate(field.New(2))},
		{X: field.New(3), Y: p.Evaluate(field.New(3))},
	}
	got := InterpolateAtZero(points)
	assert.True(t, got.Equal(secret))
}

func TestInterpolateAtArbitraryX(t *testing.T) {
	p := Polynomial{Coeffs: []field.Element{field.New(5), field.New(3), field.New(1)}} // 5 + 3x + x^2
	points := []Point{
		{X: field.New(1), Y: p.Evaluate(field.New(1))},
		{X: field.New(2), Y: p.Evaluate(field.New(2))},
		{X: field.New(3), Y: p.Evaluate(field.New(3))},
	}
	for _, x := range []int64{0, 4, 10, -2} {
		xe := field.New(x)
		got := InterpolateAt(points, xe)
		assert.True(t, got.Equal(p.Evaluate(xe)), "mismatch at x=%d", x)
	}
}

func TestLagrangeCoefficientsAtZeroMatchesDirectInterpolation(t *testing.T) {
	secret := field.New(55)
	p := Random(3, secret, func() field.Element { return field.New(19) })

	xs := []field.Element{field.New(1), field.New(2), field.New(3), field.New(4)}
	ys := make([]field.Element, len(xs))
	for i, x := range xs {
		ys[i] = p.Evaluate(x)
	}

	lambdas := LagrangeCoefficientsAtZero(xs)
	got := Recombine(lambdas, ys)
	assert.True(t, got.Equal(secret))
}

func TestDegree(t *testing.T) {
	p := Polynomial{Coeffs: []field.Element{field.Zero(), field.Zero(), field.Zero()}}
	assert.Equal(t, 2, p.Degree())
}
