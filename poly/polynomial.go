// Package poly implements univariate polynomials over field.Element:
// Horner evaluation, random sampling with a fixed constant term, and
// Lagrange interpolation (at x=0, at an arbitrary x, and as precomputed
// coefficients at x=0). This is deliberately narrower than a
// general-purpose polynomial library — it holds only what the protocol
// stack uses, always over the same field.
package poly

import "secondprice-mpc-auction/field"

// Polynomial is an ordered coefficient list, constant term first:
// coeffs[0] + coeffs[1]*x + coeffs[2]*x^2 + ...
type Polynomial struct {
	Coeffs []field.Element
}

// Degree returns len(coeffs)-1.
func (p Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// Evaluate computes p(x) via Horner's method.
func (p Polynomial) Evaluate(x field.Element) field.Element {
	acc := field.Zero()
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.Coeffs[i])
	}
	return acc
}

// Random builds a degree-d polynomial with the given constant term and
// uniformly random higher-order coefficients, using randFn for each
// coefficient (typically field.Random, or a seeded variant).
func Random(degree int, constant field.Element, randFn func() field.Element) Polynomial {
	coeffs := make([]field.Element, degree+1)
	coeffs[0] = constant
	for i := 1; i <= degree; i++ {
		coeffs[i] = randFn()
	}
	return Polynomial{Coeffs: coeffs}
}

// Point is one (x, p(x)) sample used for interpolation.
type Point struct {
	X field.Element
	Y field.Element
}

// InterpolateAtZero reconstructs p(0) given >= degree+1 distinct points on
// a polynomial of that degree, via the standard Lagrange-at-zero formula.
func InterpolateAtZero(points []Point) field.Element {
	return InterpolateAt(points, field.Zero())
}

// InterpolateAt reconstructs p(x) at an arbitrary x given >= degree+1
// distinct points on a polynomial of that degree. CSS uses this to derive a
// party's own share at x=self from F+1 echo points when it never received a
// direct share from the dealer.
func InterpolateAt(points []Point, x field.Element) field.Element {
	result := field.Zero()
	for i, pi := range points {
		num := field.One()
		den := field.One()
		for j, pj := range points {
			if i == j {
				continue
			}
			num = num.Mul(x.Sub(pj.X))
			den = den.Mul(pi.X.Sub(pj.X))
		}
		term := pi.Y.Mul(num).Div(den)
		result = result.Add(term)
	}
	return result
}

// LagrangeCoefficientsAtZero precomputes, for a fixed ordered set of
// x-values, the coefficients lambda_i such that
// sum_i lambda_i * y_i == p(0) for any polynomial passing through
// (xValues[i], y_i). MPCArith calls it afresh for every open and every
// multiplication gate; no basis is cached.
func LagrangeCoefficientsAtZero(xValues []field.Element) []field.Element {
	lambdas := make([]field.Element, len(xValues))
	for i, xi := range xValues {
		num := field.One()
		den := field.One()
		for j, xj := range xValues {
			if i == j {
				continue
			}
			num = num.Mul(xj.Neg())
			den = den.Mul(xi.Sub(xj))
		}
		lambdas[i] = num.Div(den)
	}
	return lambdas
}

// Recombine applies precomputed Lagrange coefficients to a matching slice
// of y-values, returning sum_i lambda_i * y_i.
func Recombine(lambdas []field.Element, ys []field.Element) field.Element {
	result := field.Zero()
	for i := range lambdas {
		result = result.Add(lambdas[i].Mul(ys[i]))
	}
	return result
}
