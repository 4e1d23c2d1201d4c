// Package structure reads and writes PDB coordinate files.
package structure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/mdrun/internal/engine"
)

var (
	// ErrNoAtoms indicates a PDB file without ATOM or HETATM records.
	ErrNoAtoms = errors.New("structure: no atoms found")

	// ErrInconsistentModels indicates MODEL blocks with different atom counts.
	ErrInconsistentModels = errors.New("structure: models differ in atom count")
)

// ParseError locates a malformed record.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Structure is the content of a PDB file. Positions are in nm; every model
// is one frame.
type Structure struct {
	Atoms  []engine.Atom
	Frames [][]engine.Vec3
	Box    *engine.Box
	// Conect holds explicit CONECT bonds as 0-based atom index pairs.
	Conect [][2]int
}

func (s *Structure) NumAtoms() int { return len(s.Atoms) }

// Positions returns the coordinates of the first model.
func (s *Structure) Positions() []engine.Vec3 {
	if len(s.Frames) == 0 {
		return nil
	}
	return s.Frames[0]
}

// Topology returns the atoms and box without any bonds.
func (s *Structure) Topology() *engine.Topology {
	top := &engine.Topology{Atoms: append([]engine.Atom(nil), s.Atoms...)}
	if s.Box != nil {
		b := *s.Box
		top.Box = &b
	}
	return top
}

func ReadFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Read(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
			return nil, pe
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Read parses PDB records. Atom metadata is taken from the first model;
// later models contribute coordinates only.
func Read(r io.Reader) (*Structure, error) {
	s := &Structure{}
	var frame []engine.Vec3
	serialToIndex := map[int]int{}
	firstModel := true
	sawModel := false

	flush := func() error {
		if frame == nil {
			return nil
		}
		if !firstModel && len(frame) != len(s.Atoms) {
			return fmt.Errorf("%w: %d vs %d", ErrInconsistentModels, len(frame), len(s.Atoms))
		}
		s.Frames = append(s.Frames, frame)
		frame = nil
		firstModel = false
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		switch {
		case strings.HasPrefix(text, "ATOM") || strings.HasPrefix(text, "HETATM"):
			pos, err := parseCoords(text)
			if err != nil {
				return nil, &ParseError{Line: line, Err: err}
			}
			if frame == nil {
				frame = make([]engine.Vec3, 0, len(s.Atoms))
			}
			frame = append(frame, pos)
			if firstModel {
				atom, serial, err := parseAtom(text)
				if err != nil {
					return nil, &ParseError{Line: line, Err: err}
				}
				serialToIndex[serial] = len(s.Atoms)
				s.Atoms = append(s.Atoms, atom)
			}
		case strings.HasPrefix(text, "CRYST1"):
			if s.Box == nil {
				box, err := parseCryst1(text)
				if err != nil {
					return nil, &ParseError{Line: line, Err: err}
				}
				s.Box = box
			}
		case strings.HasPrefix(text, "MODEL"):
			sawModel = true
		case strings.HasPrefix(text, "ENDMDL"):
			if err := flush(); err != nil {
				return nil, &ParseError{Line: line, Err: err}
			}
		case strings.HasPrefix(text, "CONECT"):
			s.Conect = append(s.Conect, parseConect(text, serialToIndex)...)
		case strings.HasPrefix(text, "END") && !sawModel:
			if err := flush(); err != nil {
				return nil, &ParseError{Line: line, Err: err}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(s.Atoms) == 0 {
		return nil, ErrNoAtoms
	}
	return s, nil
}

func field(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

func parseCoords(line string) (engine.Vec3, error) {
	var v engine.Vec3
	for i, col := range [3]int{30, 38, 46} {
		x, err := strconv.ParseFloat(field(line, col, col+8), 64)
		if err != nil {
			return v, fmt.Errorf("coordinate %d: %w", i, err)
		}
		v[i] = x / 10
	}
	return v, nil
}

func parseAtom(line string) (engine.Atom, int, error) {
	serial, _ := strconv.Atoi(field(line, 6, 11))
	resid, err := strconv.Atoi(field(line, 22, 26))
	if err != nil {
		return engine.Atom{}, 0, fmt.Errorf("residue number: %w", err)
	}
	a := engine.Atom{
		Name:    field(line, 12, 16),
		ResName: field(line, 17, 20),
		ResID:   resid,
		Chain:   field(line, 21, 22),
		Element: normalizeElement(field(line, 76, 78)),
	}
	if a.Element == "" {
		a.Element = ElementFromName(a.Name)
	}
	if q := field(line, 78, 80); q != "" {
		a.Charge = parseFormalCharge(q)
	}
	a.Mass = Mass(a.Element)
	return a, serial, nil
}

func normalizeElement(e string) string {
	if e == "" {
		return ""
	}
	if len(e) == 1 {
		return strings.ToUpper(e)
	}
	return strings.ToUpper(e[:1]) + strings.ToLower(e[1:])
}

// parseFormalCharge reads "2+" or "1-" style charges from columns 79-80.
func parseFormalCharge(q string) float64 {
	if len(q) != 2 {
		return 0
	}
	n, err := strconv.Atoi(q[:1])
	if err != nil {
		return 0
	}
	if q[1] == '-' {
		return -float64(n)
	}
	return float64(n)
}

func parseCryst1(line string) (*engine.Box, error) {
	var v [6]float64
	cols := [6][2]int{{6, 15}, {15, 24}, {24, 33}, {33, 40}, {40, 47}, {47, 54}}
	for i, c := range cols {
		x, err := strconv.ParseFloat(field(line, c[0], c[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("CRYST1 field %d: %w", i, err)
		}
		v[i] = x
	}
	// A 1 Å unit cell is the conventional placeholder for "no box".
	if v[0] <= 1 && v[1] <= 1 && v[2] <= 1 {
		return nil, nil
	}
	return engine.BoxFromLengthsAngles(v[0]/10, v[1]/10, v[2]/10, v[3], v[4], v[5]), nil
}

func parseConect(line string, serialToIndex map[int]int) [][2]int {
	from, ok := serialToIndex[atoiField(line, 6, 11)]
	if !ok {
		return nil
	}
	var out [][2]int
	for col := 11; col+5 <= len(line); col += 5 {
		to, ok := serialToIndex[atoiField(line, col, col+5)]
		if ok && to > from {
			out = append(out, [2]int{from, to})
		}
	}
	return out
}

func atoiField(line string, start, end int) int {
	n, err := strconv.Atoi(field(line, start, end))
	if err != nil {
		return -1
	}
	return n
}
