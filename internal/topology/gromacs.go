package topology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/structure"
)

func readGromacsFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := ReadGromacs(fh)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.File = path
		}
		return nil, err
	}
	return f, nil
}

type molType struct {
	atoms []engine.Atom
	bonds []engine.Bond
}

// ReadGromacs parses the [ moleculetype ], [ atoms ], [ bonds ] and
// [ molecules ] sections of a self-contained .top file. #include lines are
// ignored; every molecule type must be defined inline.
func ReadGromacs(r io.Reader) (*File, error) {
	types := map[string]*molType{}
	var order []string
	var cur *molType
	var molecules [][2]string
	section := ""
	pairs := engine.DefaultPairParameters

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "[") {
			section = strings.TrimSpace(strings.Trim(text, "[]"))
			continue
		}
		fields := strings.Fields(text)
		fail := func(err error) error {
			return &SyntaxError{Line: line, Section: section, Err: err}
		}

		switch section {
		case "defaults", "system":
		case "moleculetype":
			cur = &molType{}
			types[fields[0]] = cur
			order = append(order, fields[0])
		case "atoms":
			if cur == nil {
				return nil, fail(fmt.Errorf("atoms outside a moleculetype"))
			}
			a, err := parseGromacsAtom(fields)
			if err != nil {
				return nil, fail(err)
			}
			cur.atoms = append(cur.atoms, a)
		case "bonds":
			if cur == nil {
				return nil, fail(fmt.Errorf("bonds outside a moleculetype"))
			}
			b, err := parseGromacsBond(fields, len(cur.atoms))
			if err != nil {
				return nil, fail(err)
			}
			cur.bonds = append(cur.bonds, b)
		case "molecules":
			if len(fields) < 2 {
				return nil, fail(fmt.Errorf("expected name and count"))
			}
			molecules = append(molecules, [2]string{fields[0], fields[1]})
		case "mdrun_pairs":
			// Optional uniform soft-core parameters: sigma (nm) epsilon (kJ/mol) dielectric.
			if len(fields) < 3 {
				return nil, fail(fmt.Errorf("expected sigma epsilon dielectric"))
			}
			v, err := parseFloats(fields[:3])
			if err != nil {
				return nil, fail(err)
			}
			pairs = engine.PairParameters{Sigma: v[0], Epsilon: v[1], Dielectric: v[2]}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// Without a [ molecules ] section each type appears once.
	if len(molecules) == 0 {
		for _, name := range order {
			molecules = append(molecules, [2]string{name, "1"})
		}
	}

	top := &engine.Topology{}
	for _, m := range molecules {
		mt, ok := types[m[0]]
		if !ok {
			return nil, &SyntaxError{Line: line, Section: "molecules", Err: fmt.Errorf("unknown molecule type %q", m[0])}
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 {
			return nil, &SyntaxError{Line: line, Section: "molecules", Err: fmt.Errorf("bad count %q", m[1])}
		}
		for k := 0; k < n; k++ {
			offset := top.NumAtoms()
			top.Atoms = append(top.Atoms, mt.atoms...)
			for _, b := range mt.bonds {
				b.I += offset
				b.J += offset
				top.Bonds = append(top.Bonds, b)
			}
		}
	}
	return &File{Topology: top, Pairs: pairs}, nil
}

// parseGromacsAtom reads "nr type resnr residue atom cgnr charge mass".
func parseGromacsAtom(f []string) (engine.Atom, error) {
	if len(f) < 5 {
		return engine.Atom{}, fmt.Errorf("atom line needs at least 5 fields, got %d", len(f))
	}
	resid, err := strconv.Atoi(f[2])
	if err != nil {
		return engine.Atom{}, fmt.Errorf("residue number: %w", err)
	}
	a := engine.Atom{
		ResID:   resid,
		ResName: f[3],
		Name:    f[4],
		Element: structure.ElementFromName(f[4]),
	}
	if len(f) > 6 {
		if a.Charge, err = strconv.ParseFloat(f[6], 64); err != nil {
			return a, fmt.Errorf("charge: %w", err)
		}
	}
	if len(f) > 7 {
		if a.Mass, err = strconv.ParseFloat(f[7], 64); err != nil {
			return a, fmt.Errorf("mass: %w", err)
		}
	} else {
		a.Mass = structure.Mass(a.Element)
	}
	return a, nil
}

// parseGromacsBond reads "ai aj funct b0 kb" with 1-based indices.
func parseGromacsBond(f []string, natoms int) (engine.Bond, error) {
	if len(f) < 5 {
		return engine.Bond{}, fmt.Errorf("bond line needs ai aj funct b0 kb")
	}
	ai, err1 := strconv.Atoi(f[0])
	aj, err2 := strconv.Atoi(f[1])
	if err1 != nil || err2 != nil {
		return engine.Bond{}, fmt.Errorf("bond indices %q %q", f[0], f[1])
	}
	if ai < 1 || aj < 1 || ai > natoms || aj > natoms {
		return engine.Bond{}, fmt.Errorf("bond %d-%d outside 1..%d", ai, aj, natoms)
	}
	v, err := parseFloats(f[3:5])
	if err != nil {
		return engine.Bond{}, err
	}
	return engine.Bond{I: ai - 1, J: aj - 1, Length: v[0], K: v[1]}, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
