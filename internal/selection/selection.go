// Package selection implements a small atom-selection language:
//
//	all, none, protein, backbone, water
//	name CA CB, resname ALA GLY, element C N, chain A, segid A
//	resid 1:10 15, index 0-99
//	and, or, not, parentheses
//
// Names accept shell-style wildcards (name C*). Index is 0-based.
package selection

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/san-kum/mdrun/internal/engine"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("selection: syntax error")

type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("selection: %s at token %d in %q", e.Msg, e.Pos, e.Expr)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Selector is a compiled selection.
type Selector struct {
	expr string
	root node
}

func (s *Selector) String() string { return s.expr }

// Select returns the indices of matching atoms in ascending order.
func (s *Selector) Select(atoms []engine.Atom) []int {
	var out []int
	for i := range atoms {
		if s.root.match(i, &atoms[i]) {
			out = append(out, i)
		}
	}
	return out
}

// Select compiles expr and applies it.
func Select(expr string, atoms []engine.Atom) ([]int, error) {
	s, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return s.Select(atoms), nil
}

func Compile(expr string) (*Selector, error) {
	p := &parser{expr: expr, toks: tokenize(expr)}
	if len(p.toks) == 0 {
		return nil, p.fail("empty selection")
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, p.fail(fmt.Sprintf("unexpected %q", p.toks[p.pos]))
	}
	return &Selector{expr: expr, root: root}, nil
}

var proteinResidues = setOf(
	"ALA", "ARG", "ASN", "ASP", "CYS", "GLN", "GLU", "GLY", "HIS", "ILE",
	"LEU", "LYS", "MET", "PHE", "PRO", "SER", "THR", "TRP", "TYR", "VAL",
	"HID", "HIE", "HIP", "HSD", "HSE", "HSP", "CYX", "CYM", "ASH", "GLH",
	"LYN", "ACE", "NME", "NALA", "CALA", "MSE",
)

var waterResidues = setOf("HOH", "WAT", "SOL", "TIP3", "TIP4", "SPC", "T3P")

var backboneNames = setOf("N", "CA", "C", "O")

func setOf(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, s := range items {
		m[s] = struct{}{}
	}
	return m
}

type node interface {
	match(i int, a *engine.Atom) bool
}

type constNode bool

func (c constNode) match(int, *engine.Atom) bool { return bool(c) }

type notNode struct{ n node }

func (n notNode) match(i int, a *engine.Atom) bool { return !n.n.match(i, a) }

type andNode struct{ l, r node }

func (n andNode) match(i int, a *engine.Atom) bool { return n.l.match(i, a) && n.r.match(i, a) }

type orNode struct{ l, r node }

func (n orNode) match(i int, a *engine.Atom) bool { return n.l.match(i, a) || n.r.match(i, a) }

type funcNode func(i int, a *engine.Atom) bool

func (f funcNode) match(i int, a *engine.Atom) bool { return f(i, a) }

type rangeSpec struct{ lo, hi int }

func inRanges(v int, rs []rangeSpec) bool {
	for _, r := range rs {
		if v >= r.lo && v <= r.hi {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, v string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, v); ok {
			return true
		}
	}
	return false
}

func tokenize(expr string) []string {
	expr = strings.ReplaceAll(expr, "(", " ( ")
	expr = strings.ReplaceAll(expr, ")", " ) ")
	return strings.Fields(expr)
}

var keywords = setOf("and", "or", "not", "(", ")", "all", "none", "protein", "backbone", "water",
	"name", "resname", "resid", "resnum", "index", "chain", "segid", "element", "type")

type parser struct {
	expr string
	toks []string
	pos  int
}

func (p *parser) fail(msg string) error {
	return &SyntaxError{Expr: p.expr, Pos: p.pos, Msg: msg}
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return strings.ToLower(p.toks[p.pos])
	}
	return ""
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "or" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek() == "and" {
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek() == "not" {
		p.pos++
		n, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{n}, nil
	}
	return p.parsePrimary()
}

// args consumes the non-keyword tokens following a selector keyword.
func (p *parser) args(kw string) ([]string, error) {
	var out []string
	for p.pos < len(p.toks) {
		if _, ok := keywords[strings.ToLower(p.toks[p.pos])]; ok {
			break
		}
		out = append(out, p.toks[p.pos])
		p.pos++
	}
	if len(out) == 0 {
		return nil, p.fail(fmt.Sprintf("%s needs at least one value", kw))
	}
	return out, nil
}

func (p *parser) ranges(kw string) ([]rangeSpec, error) {
	vals, err := p.args(kw)
	if err != nil {
		return nil, err
	}
	var out []rangeSpec
	for _, v := range vals {
		lo, hi, ok := strings.Cut(v, ":")
		if !ok {
			lo, hi, ok = strings.Cut(v, "-")
		}
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, p.fail(fmt.Sprintf("%s: bad number %q", kw, v))
		}
		b := a
		if ok {
			if b, err = strconv.Atoi(hi); err != nil {
				return nil, p.fail(fmt.Sprintf("%s: bad range %q", kw, v))
			}
		}
		if b < a {
			return nil, p.fail(fmt.Sprintf("%s: empty range %q", kw, v))
		}
		out = append(out, rangeSpec{a, b})
	}
	return out, nil
}

func (p *parser) parsePrimary() (node, error) {
	if p.pos >= len(p.toks) {
		return nil, p.fail("unexpected end of selection")
	}
	kw := p.peek()
	p.pos++
	switch kw {
	case "(":
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, p.fail("missing )")
		}
		p.pos++
		return n, nil
	case "all":
		return constNode(true), nil
	case "none":
		return constNode(false), nil
	case "protein":
		return funcNode(func(_ int, a *engine.Atom) bool {
			_, ok := proteinResidues[a.ResName]
			return ok
		}), nil
	case "backbone":
		return funcNode(func(_ int, a *engine.Atom) bool {
			_, prot := proteinResidues[a.ResName]
			_, bb := backboneNames[a.Name]
			return prot && bb
		}), nil
	case "water":
		return funcNode(func(_ int, a *engine.Atom) bool {
			_, ok := waterResidues[a.ResName]
			return ok
		}), nil
	case "name", "resname", "chain", "segid", "element", "type":
		pats, err := p.args(kw)
		if err != nil {
			return nil, err
		}
		get := fieldGetter(kw)
		return funcNode(func(_ int, a *engine.Atom) bool { return matchAny(pats, get(a)) }), nil
	case "resid", "resnum":
		rs, err := p.ranges(kw)
		if err != nil {
			return nil, err
		}
		return funcNode(func(_ int, a *engine.Atom) bool { return inRanges(a.ResID, rs) }), nil
	case "index":
		rs, err := p.ranges(kw)
		if err != nil {
			return nil, err
		}
		return funcNode(func(i int, _ *engine.Atom) bool { return inRanges(i, rs) }), nil
	}
	p.pos--
	return nil, p.fail(fmt.Sprintf("unknown keyword %q", p.toks[p.pos]))
}

func fieldGetter(kw string) func(a *engine.Atom) string {
	switch kw {
	case "name":
		return func(a *engine.Atom) string { return a.Name }
	case "resname":
		return func(a *engine.Atom) string { return a.ResName }
	case "chain", "segid":
		return func(a *engine.Atom) string { return a.Chain }
	}
	return func(a *engine.Atom) string { return a.Element }
}
