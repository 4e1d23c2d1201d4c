package forcefield

import (
	"fmt"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/structure"
)

// inferBonds connects atoms closer than the sum of their covalent radii plus
// a tolerance. Quadratic in the atom count; meant for solute-sized inputs.
func inferBonds(atoms []engine.Atom, pos []engine.Vec3, p *Bonded) ([]engine.Bond, error) {
	radii := make([]float64, len(atoms))
	for i, a := range atoms {
		r, ok := structure.CovalentRadius(a.Element)
		if !ok {
			return nil, fmt.Errorf("%w: %q (atom %d %s)", ErrNoRadius, a.Element, i, a.Name)
		}
		radii[i] = r
	}
	var bonds []engine.Bond
	for i := range atoms {
		for j := i + 1; j < len(atoms); j++ {
			d := pos[j].Sub(pos[i]).Norm()
			if d < radii[i]+radii[j]+p.Tolerance && d > p.TooClose {
				bonds = append(bonds, engine.Bond{I: i, J: j, Length: d, K: p.BondK})
			}
		}
	}
	return bonds, nil
}

// elasticNetwork links consecutive residues of a chain and every other pair
// within the cutoff, with rest lengths taken from the input geometry.
func elasticNetwork(atoms []engine.Atom, pos []engine.Vec3, p *Bonded) []engine.Bond {
	var bonds []engine.Bond
	for i := range atoms {
		for j := i + 1; j < len(atoms); j++ {
			d := pos[j].Sub(pos[i]).Norm()
			sequential := j == i+1 && atoms[i].Chain == atoms[j].Chain
			if sequential || d < p.ElasticCutoff {
				bonds = append(bonds, engine.Bond{I: i, J: j, Length: d, K: p.ElasticK})
			}
		}
	}
	return bonds
}
