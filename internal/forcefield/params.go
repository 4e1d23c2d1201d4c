package forcefield

import "github.com/san-kum/mdrun/internal/engine"

// Bonded controls how bonds are inferred and parameterized.
type Bonded struct {
	// BondK is the force constant (kJ/mol/nm²) for inferred covalent bonds.
	BondK float64
	// Tolerance is added to the sum of covalent radii (nm).
	Tolerance float64
	// TooClose rejects overlapping atoms as bonded partners (nm).
	TooClose float64
	// ElasticK and ElasticCutoff define the network for CA traces.
	ElasticK      float64
	ElasticCutoff float64
	DefaultMass   float64
}

var defaultBonded = Bonded{
	BondK:         250000,
	Tolerance:     0.045,
	TooClose:      0.0625,
	ElasticK:      1000,
	ElasticCutoff: 0.9,
	DefaultMass:   12.01,
}

// ParameterSet is one named parameter file.
type ParameterSet struct {
	Name            string
	Pairs           *engine.PairParameters
	Bonded          *Bonded
	ImplicitSolvent bool
}

var builtin = map[string]*ParameterSet{
	"amber99sbildn.xml": {
		Name:   "amber99sbildn",
		Pairs:  &engine.PairParameters{Sigma: 0.32, Epsilon: 0.45, Dielectric: 1},
		Bonded: &defaultBonded,
	},
	"amber99_obc.xml": {
		Name:            "amber99_obc",
		Pairs:           &engine.PairParameters{Sigma: 0.32, Epsilon: 0.45, Dielectric: 4},
		ImplicitSolvent: true,
	},
	"amber14-all.xml": {
		Name:   "amber14-all",
		Pairs:  &engine.PairParameters{Sigma: 0.325, Epsilon: 0.5, Dielectric: 1},
		Bonded: &defaultBonded,
	},
	"amber14/tip3pfb.xml": {
		Name:  "tip3pfb",
		Pairs: &engine.PairParameters{Sigma: 0.315, Epsilon: 0.636, Dielectric: 1},
	},
}

type chargedSite struct {
	atom   string
	charge float64
}

// Net side-chain charges at neutral pH, placed on one representative atom.
var residueCharges = map[string]chargedSite{
	"LYS": {"NZ", 1},
	"ARG": {"CZ", 1},
	"ASP": {"CG", -1},
	"GLU": {"CD", -1},
}

func residueCharge(a *engine.Atom, caOnly bool) float64 {
	site, ok := residueCharges[a.ResName]
	if !ok {
		return 0
	}
	if a.Name == site.atom || (caOnly && a.Name == "CA") {
		return site.charge
	}
	return 0
}
