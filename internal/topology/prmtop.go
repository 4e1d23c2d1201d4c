package topology

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/structure"
)

const (
	// amberChargeScale converts prmtop charges to elementary charges.
	amberChargeScale = 18.2223
	kcalToKJ         = 4.184
)

var formatRE = regexp.MustCompile(`%FORMAT\((\d+)([aAIiEeFf])(\d+)`)

type prmSection struct {
	name  string
	width int
	lines []string
}

func (s *prmSection) strings() []string {
	var out []string
	for _, l := range s.lines {
		for i := 0; i < len(l); i += s.width {
			end := i + s.width
			if end > len(l) {
				end = len(l)
			}
			v := strings.TrimSpace(l[i:end])
			if v == "" {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

func (s *prmSection) ints() ([]int, error) {
	raw := s.strings()
	out := make([]int, len(raw))
	for i, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%%FLAG %s: %w", s.name, err)
		}
		out[i] = n
	}
	return out, nil
}

func (s *prmSection) floats() ([]float64, error) {
	raw := s.strings()
	out := make([]float64, len(raw))
	for i, v := range raw {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%%FLAG %s: %w", s.name, err)
		}
		out[i] = x
	}
	return out, nil
}

func readPrmtopFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := ReadPrmtop(fh)
	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.File = path
		}
		return nil, err
	}
	return f, nil
}

// ReadPrmtop parses the atom, residue, bond and box sections of an Amber
// parameter/topology file. Bond constants are converted from kcal/mol/Å²
// with E = k(r-r0)² to kJ/mol/nm² with E = K/2 (r-r0)².
func ReadPrmtop(r io.Reader) (*File, error) {
	sections := map[string]*prmSection{}
	var cur *prmSection

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		switch {
		case strings.HasPrefix(text, "%VERSION"), strings.HasPrefix(text, "%COMMENT"):
		case strings.HasPrefix(text, "%FLAG"):
			name := strings.TrimSpace(strings.TrimPrefix(text, "%FLAG"))
			cur = &prmSection{name: name}
			sections[name] = cur
		case strings.HasPrefix(text, "%FORMAT"):
			if cur == nil {
				return nil, &SyntaxError{Line: line, Err: fmt.Errorf("%%FORMAT before %%FLAG")}
			}
			m := formatRE.FindStringSubmatch(text)
			if m == nil {
				return nil, &SyntaxError{Line: line, Section: cur.name, Err: fmt.Errorf("unsupported format %q", text)}
			}
			cur.width, _ = strconv.Atoi(m[3])
		default:
			if cur != nil && cur.width > 0 {
				cur.lines = append(cur.lines, text)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	need := func(name string) (*prmSection, error) {
		s, ok := sections[name]
		if !ok {
			return nil, &SyntaxError{Line: line, Section: name, Err: fmt.Errorf("missing section")}
		}
		return s, nil
	}

	sec, err := need("POINTERS")
	if err != nil {
		return nil, err
	}
	pointers, err := sec.ints()
	if err != nil || len(pointers) < 1 {
		return nil, &SyntaxError{Line: line, Section: "POINTERS", Err: fmt.Errorf("no atom count")}
	}
	natom := pointers[0]

	if sec, err = need("ATOM_NAME"); err != nil {
		return nil, err
	}
	names := sec.strings()
	if len(names) < natom {
		return nil, &SyntaxError{Line: line, Section: "ATOM_NAME", Err: fmt.Errorf("%d names for %d atoms", len(names), natom)}
	}

	top := &engine.Topology{Atoms: make([]engine.Atom, natom)}
	for i := range top.Atoms {
		top.Atoms[i].Name = names[i]
		top.Atoms[i].Element = structure.ElementFromName(names[i])
	}

	if s, ok := sections["ATOMIC_NUMBER"]; ok {
		nums, err := s.ints()
		if err != nil {
			return nil, err
		}
		for i := 0; i < natom && i < len(nums); i++ {
			if e := elementByNumber[nums[i]]; e != "" {
				top.Atoms[i].Element = e
			}
		}
	}
	if s, ok := sections["CHARGE"]; ok {
		q, err := s.floats()
		if err != nil {
			return nil, err
		}
		for i := 0; i < natom && i < len(q); i++ {
			top.Atoms[i].Charge = q[i] / amberChargeScale
		}
	}
	if s, ok := sections["MASS"]; ok {
		m, err := s.floats()
		if err != nil {
			return nil, err
		}
		for i := 0; i < natom && i < len(m); i++ {
			top.Atoms[i].Mass = m[i]
		}
	} else {
		for i := range top.Atoms {
			top.Atoms[i].Mass = structure.Mass(top.Atoms[i].Element)
		}
	}

	if err := assignResidues(top, sections); err != nil {
		return nil, err
	}
	if err := assignBonds(top, sections); err != nil {
		return nil, err
	}
	if s, ok := sections["BOX_DIMENSIONS"]; ok {
		v, err := s.floats()
		if err != nil {
			return nil, err
		}
		if len(v) >= 4 {
			top.Box = engine.BoxFromLengthsAngles(v[1]/10, v[2]/10, v[3]/10, 90, v[0], 90)
		}
	}
	return &File{Topology: top, Pairs: engine.DefaultPairParameters}, nil
}

func assignResidues(top *engine.Topology, sections map[string]*prmSection) error {
	lab, ok1 := sections["RESIDUE_LABEL"]
	ptr, ok2 := sections["RESIDUE_POINTER"]
	if !ok1 || !ok2 {
		return nil
	}
	labels := lab.strings()
	starts, err := ptr.ints()
	if err != nil {
		return err
	}
	for r, start := range starts {
		end := top.NumAtoms()
		if r+1 < len(starts) {
			end = starts[r+1] - 1
		}
		for i := start - 1; i < end && i < top.NumAtoms(); i++ {
			if i < 0 {
				continue
			}
			top.Atoms[i].ResID = r + 1
			if r < len(labels) {
				top.Atoms[i].ResName = labels[r]
			}
		}
	}
	return nil
}

func assignBonds(top *engine.Topology, sections map[string]*prmSection) error {
	kSec, ok1 := sections["BOND_FORCE_CONSTANT"]
	rSec, ok2 := sections["BOND_EQUIL_VALUE"]
	if !ok1 || !ok2 {
		return nil
	}
	ks, err := kSec.floats()
	if err != nil {
		return err
	}
	rs, err := rSec.floats()
	if err != nil {
		return err
	}
	for _, name := range []string{"BONDS_INC_HYDROGEN", "BONDS_WITHOUT_HYDROGEN"} {
		s, ok := sections[name]
		if !ok {
			continue
		}
		v, err := s.ints()
		if err != nil {
			return err
		}
		if len(v)%3 != 0 {
			return &SyntaxError{Section: name, Err: fmt.Errorf("%d values is not a multiple of 3", len(v))}
		}
		for k := 0; k < len(v); k += 3 {
			// Atom indices are stored as coordinate offsets (3*i).
			i, j, typ := v[k]/3, v[k+1]/3, v[k+2]-1
			if i >= top.NumAtoms() || j >= top.NumAtoms() || typ < 0 || typ >= len(ks) || typ >= len(rs) {
				return &SyntaxError{Section: name, Err: fmt.Errorf("bond %d-%d type %d out of range", i, j, typ+1)}
			}
			top.Bonds = append(top.Bonds, engine.Bond{
				I:      i,
				J:      j,
				Length: rs[typ] / 10,
				K:      2 * ks[typ] * kcalToKJ * 100,
			})
		}
	}
	return nil
}

var elementByNumber = map[int]string{
	1: "H", 6: "C", 7: "N", 8: "O", 9: "F", 11: "Na", 12: "Mg", 15: "P", 16: "S",
	17: "Cl", 19: "K", 20: "Ca", 25: "Mn", 26: "Fe", 29: "Cu", 30: "Zn", 34: "Se",
	35: "Br", 53: "I",
}
