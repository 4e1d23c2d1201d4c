package engine

import "math"

// BoxFromLengthsAngles builds reduced box vectors from edge lengths (nm) and
// angles (degrees) as stored in PDB CRYST1 records and DCD unit cells.
func BoxFromLengthsAngles(a, b, c, alpha, beta, gamma float64) *Box {
	if alpha == 90 && beta == 90 && gamma == 90 {
		return Orthorhombic(a, b, c)
	}
	ca, cb, cg := cosDeg(alpha), cosDeg(beta), cosDeg(gamma)
	sg := math.Sin(gamma * math.Pi / 180)
	cx := c * cb
	cy := c * (ca - cb*cg) / sg
	cz := math.Sqrt(math.Max(c*c-cx*cx-cy*cy, 0))
	return &Box{
		{a, 0, 0},
		{b * cg, b * sg, 0},
		{cx, cy, cz},
	}
}

// LengthsAngles is the inverse of BoxFromLengthsAngles.
func (b *Box) LengthsAngles() (la, lb, lc, alpha, beta, gamma float64) {
	la, lb, lc = b[0].Norm(), b[1].Norm(), b[2].Norm()
	alpha = angleDeg(b[1], b[2])
	beta = angleDeg(b[0], b[2])
	gamma = angleDeg(b[0], b[1])
	return
}

func cosDeg(d float64) float64 {
	if d == 90 {
		return 0
	}
	return math.Cos(d * math.Pi / 180)
}

func angleDeg(u, v Vec3) float64 {
	nu, nv := u.Norm(), v.Norm()
	if nu == 0 || nv == 0 {
		return 90
	}
	c := math.Max(-1, math.Min(1, u.Dot(v)/(nu*nv)))
	return math.Round(math.Acos(c)*180/math.Pi*1e6) / 1e6
}
