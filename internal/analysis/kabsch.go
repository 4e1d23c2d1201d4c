package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mdrun/internal/engine"
)

// ErrSVD indicates the superposition could not be computed.
var ErrSVD = errors.New("analysis: SVD did not converge")

// centroid returns the unweighted mean position.
func centroid(pos []engine.Vec3) engine.Vec3 {
	var c engine.Vec3
	for _, p := range pos {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pos)))
}

func centered(pos []engine.Vec3) ([]engine.Vec3, engine.Vec3) {
	c := centroid(pos)
	out := make([]engine.Vec3, len(pos))
	for i, p := range pos {
		out[i] = p.Sub(c)
	}
	return out, c
}

// Superposition is the rigid transform mapping a mobile set onto a
// reference: x' = R (x - MobileCenter) + RefCenter.
type Superposition struct {
	Rotation     [3][3]float64
	MobileCenter engine.Vec3
	RefCenter    engine.Vec3
}

func (s *Superposition) Apply(p engine.Vec3) engine.Vec3 {
	d := p.Sub(s.MobileCenter)
	var out engine.Vec3
	for i := 0; i < 3; i++ {
		out[i] = s.Rotation[i][0]*d[0] + s.Rotation[i][1]*d[1] + s.Rotation[i][2]*d[2]
	}
	return out.Add(s.RefCenter)
}

// Kabsch finds the proper rotation minimizing the RMSD between mobile and
// ref after both are centered.
func Kabsch(mobile, ref []engine.Vec3) (*Superposition, error) {
	if len(mobile) != len(ref) || len(mobile) == 0 {
		return nil, fmt.Errorf("%w: %d mobile vs %d reference atoms", engine.ErrDimensionMismatch, len(mobile), len(ref))
	}
	p, pc := centered(mobile)
	q, qc := centered(ref)

	// Covariance H = Pᵀ Q.
	h := mat.NewDense(3, 3, nil)
	for k := range p {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h.Set(i, j, h.At(i, j)+p[k][i]*q[k][j])
			}
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return nil, ErrSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V diag(1, 1, d) Uᵀ, with d correcting an improper rotation.
	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	diag := mat.NewDiagDense(3, []float64{1, 1, d})
	var r, tmp mat.Dense
	tmp.Mul(&v, diag)
	r.Mul(&tmp, u.T())

	s := &Superposition{MobileCenter: pc, RefCenter: qc}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s.Rotation[i][j] = r.At(i, j)
		}
	}
	return s, nil
}

// RMSD is the root mean square deviation between two equally sized sets.
func RMSD(a, b []engine.Vec3) float64 {
	if len(a) == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		d := a[i].Sub(b[i])
		sum += d.Dot(d)
	}
	return math.Sqrt(sum / float64(len(a)))
}

// SuperposedRMSD superposes mobile onto ref and returns the RMSD.
func SuperposedRMSD(mobile, ref []engine.Vec3) (float64, error) {
	s, err := Kabsch(mobile, ref)
	if err != nil {
		return 0, err
	}
	moved := make([]engine.Vec3, len(mobile))
	for i, p := range mobile {
		moved[i] = s.Apply(p)
	}
	return RMSD(moved, ref), nil
}
