package tpspace

import "math"

// This file implements closed-form real-root solving for quadratics through
// quartics, mirroring the analytic approach the reference planner uses in
// its own poly_roots helper for the holonomic-blend obstacle-distance
// equation, rather than pulling in a general eigenvalue-based solver for a
// narrow, well-conditioned internal use.

const rootEps = 1e-9

func solveQuadratic(a, b, c float64) []float64 {
	if math.Abs(a) < rootEps {
		if math.Abs(b) < rootEps {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}

func solveCubic(a, b, c, d float64) []float64 {
	if math.Abs(a) < rootEps {
		return solveQuadratic(b, c, d)
	}
	A, B, C := b/a, c/a, d/a
	p := B - A*A/3
	q := 2*A*A*A/27 - A*B/3 + C

	var ts []float64
	discr := q*q/4 + p*p*p/27
	switch {
	case discr > rootEps:
		sq := math.Sqrt(discr)
		u := math.Cbrt(-q/2 + sq)
		v := math.Cbrt(-q/2 - sq)
		ts = []float64{u + v}
	case discr > -rootEps:
		u := math.Cbrt(-q / 2)
		ts = []float64{2 * u, -u}
	default:
		r := math.Sqrt(-p * p * p / 27)
		arg := -q / (2 * r)
		if arg > 1 {
			arg = 1
		} else if arg < -1 {
			arg = -1
		}
		phi := math.Acos(arg)
		scale := 2 * math.Sqrt(-p/3)
		ts = []float64{
			scale * math.Cos(phi/3),
			scale * math.Cos((phi+2*math.Pi)/3),
			scale * math.Cos((phi+4*math.Pi)/3),
		}
	}
	roots := make([]float64, len(ts))
	for i, t := range ts {
		roots[i] = t - A/3
	}
	return roots
}

// solveQuartic finds the real roots of a*x^4+b*x^3+c*x^2+d*x+e=0 via
// Ferrari's method: depress to y^4+p*y^2+q*y+r=0 with x=y-b/(4a), then
// factor into two real quadratics using a real root of the resolvent cubic
// m^3+p*m^2+(p^2/4-r)*m-q^2/8=0.
func solveQuartic(a, b, c, d, e float64) []float64 {
	if math.Abs(a) < rootEps {
		return solveCubic(b, c, d, e)
	}
	b, c, d, e = b/a, c/a, d/a, e/a
	p := c - 3*b*b/8
	q := d - b*c/2 + b*b*b/8
	r := e - b*d/4 + b*b*c/16 - 3*b*b*b*b/256
	shift := b / 4

	if math.Abs(q) < 1e-9 {
		var ys []float64
		for _, z := range solveQuadratic(1, p, r) {
			if z >= 0 {
				sq := math.Sqrt(z)
				ys = append(ys, sq, -sq)
			}
		}
		roots := make([]float64, len(ys))
		for i, y := range ys {
			roots[i] = y - shift
		}
		return roots
	}

	cubicRoots := solveCubic(1, p, p*p/4-r, -q*q/8)
	m := math.Inf(-1)
	for _, cr := range cubicRoots {
		if cr > m {
			m = cr
		}
	}
	if len(cubicRoots) == 0 || 2*m <= 0 {
		return nil
	}
	sqrt2m := math.Sqrt(2 * m)
	var ys []float64
	ys = append(ys, solveQuadratic(1, -sqrt2m, p/2+m+q/(2*sqrt2m))...)
	ys = append(ys, solveQuadratic(1, sqrt2m, p/2+m-q/(2*sqrt2m))...)
	roots := make([]float64, len(ys))
	for i, y := range ys {
		roots[i] = y - shift
	}
	return roots
}

// realRootsInRange filters roots to [lo, hi], tolerating a small overshoot
// (the caller passes hi already inflated, mirroring the reference's
// 1.01*T_ramp retention window).
func realRootsInRange(roots []float64, lo, hi float64) []float64 {
	out := make([]float64, 0, len(roots))
	for _, rt := range roots {
		if math.IsNaN(rt) || math.IsInf(rt, 0) {
			continue
		}
		if rt >= lo && rt <= hi {
			out = append(out, rt)
		}
	}
	return out
}
