package structure

import (
	"strings"
	"unicode"
)

// Masses in amu for the elements commonly found in biomolecular systems.
var elementMass = map[string]float64{
	"H":  1.008,
	"C":  12.01,
	"O":  16.00,
	"N":  14.01,
	"P":  30.97,
	"S":  32.06,
	"Se": 78.96,
	"K":  39.1,
	"Ca": 40.08,
	"Mg": 24.30,
	"Cl": 35.45,
	"Na": 22.99,
	"Cu": 63.55,
	"Zn": 65.38,
	"Fe": 55.84,
	"Mn": 54.94,
	"F":  18.998,
	"Br": 79.904,
	"I":  126.90,
}

// Covalent radii in nm (Cordero et al. 2008). H is enlarged slightly so
// that hydrogens always find their heavy atom.
var covalentRadius = map[string]float64{
	"H":  0.040,
	"C":  0.076,
	"O":  0.066,
	"N":  0.071,
	"P":  0.107,
	"S":  0.105,
	"Se": 0.120,
	"K":  0.203,
	"Ca": 0.176,
	"Mg": 0.141,
	"Cl": 0.102,
	"Na": 0.166,
	"Cu": 0.132,
	"Zn": 0.122,
	"Fe": 0.152,
	"Mn": 0.161,
	"F":  0.057,
	"Br": 0.120,
	"I":  0.139,
}

// Mass returns the mass of an element, or 0 when unknown.
func Mass(element string) float64 { return elementMass[element] }

// CovalentRadius returns the covalent radius of an element in nm.
func CovalentRadius(element string) (float64, bool) {
	r, ok := covalentRadius[element]
	return r, ok
}

// ElementFromName guesses the element from a PDB atom name. Two-letter
// elements are only accepted for names that are not standard protein atoms.
func ElementFromName(name string) string {
	name = strings.TrimLeftFunc(strings.TrimSpace(name), unicode.IsDigit)
	if name == "" {
		return ""
	}
	if len(name) >= 2 {
		two := strings.ToUpper(name[:1]) + strings.ToLower(name[1:2])
		switch two {
		case "Cl", "Br", "Na", "Mg", "Zn", "Fe", "Ca", "Mn", "Cu", "Se":
			if !isProteinName(name) {
				return two
			}
		}
	}
	return strings.ToUpper(name[:1])
}

// isProteinName reports whether name looks like a standard protein atom
// (CA, CB, NE2, ...), which would otherwise be read as calcium or neon.
func isProteinName(name string) bool {
	if len(name) < 2 {
		return false
	}
	switch name[0] {
	case 'C', 'N', 'O', 'S', 'H':
	default:
		return false
	}
	return strings.ContainsRune("ABGDEZH", rune(name[1])) || unicode.IsDigit(rune(name[1]))
}
