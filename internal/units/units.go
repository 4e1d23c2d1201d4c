// Package units provides typed physical quantities for simulation settings.
//
// Every quantity is stored in the engine's internal unit system:
//
//   - [Time]: picoseconds
//   - [Temperature]: kelvin
//   - [Length]: nanometers
//   - [Frequency]: inverse picoseconds
//   - [Pressure]: bar
//
// Quantities are parsed from strings that always carry a unit ("2 fs",
// "300 K", "8 angstrom"). A bare number or a unit of the wrong dimension is
// rejected instead of being coerced.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingUnit indicates a quantity given as a bare number.
	ErrMissingUnit = errors.New("units: missing unit")

	// ErrUnknownUnit indicates a unit symbol that is not recognized.
	ErrUnknownUnit = errors.New("units: unknown unit")

	// ErrUnitMismatch indicates a unit of the wrong dimension for the target quantity.
	ErrUnitMismatch = errors.New("units: unit mismatch")
)

type dimension int

const (
	dimTime dimension = iota
	dimTemperature
	dimLength
	dimFrequency
	dimPressure
)

func (d dimension) String() string {
	switch d {
	case dimTime:
		return "time"
	case dimTemperature:
		return "temperature"
	case dimLength:
		return "length"
	case dimFrequency:
		return "frequency"
	case dimPressure:
		return "pressure"
	}
	return "unknown"
}

type unitDef struct {
	dim   dimension
	scale float64
}

var table = map[string]unitDef{
	"fs":       {dimTime, 1e-3},
	"ps":       {dimTime, 1},
	"ns":       {dimTime, 1e3},
	"us":       {dimTime, 1e6},
	"µs":       {dimTime, 1e6},
	"k":        {dimTemperature, 1},
	"kelvin":   {dimTemperature, 1},
	"pm":       {dimLength, 1e-3},
	"a":        {dimLength, 0.1},
	"å":        {dimLength, 0.1},
	"angstrom": {dimLength, 0.1},
	"nm":       {dimLength, 1},
	"/fs":      {dimFrequency, 1e3},
	"/ps":      {dimFrequency, 1},
	"/ns":      {dimFrequency, 1e-3},
	"1/fs":     {dimFrequency, 1e3},
	"1/ps":     {dimFrequency, 1},
	"1/ns":     {dimFrequency, 1e-3},
	"ps^-1":    {dimFrequency, 1},
	"bar":      {dimPressure, 1},
	"atm":      {dimPressure, 1.01325},
}

// parse splits s into a number and unit and converts it to the internal unit
// of dimension want.
func parse(s string, want dimension) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty %s", ErrMissingUnit, want)
	}
	cut := len(s)
	for i, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == '-' || r == '+' {
			continue
		}
		// exponent marker only when followed by a digit or sign
		if (r == 'e' || r == 'E') && i+1 < len(s) && strings.ContainsRune("0123456789+-", rune(s[i+1])) && i > 0 {
			continue
		}
		cut = i
		break
	}
	num, sym := strings.TrimSpace(s[:cut]), strings.TrimSpace(s[cut:])
	if num == "" {
		return 0, fmt.Errorf("units: no numeric value in %q", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("units: parse %q: %w", s, err)
	}
	if sym == "" {
		return 0, fmt.Errorf("%w: %q (expected a %s)", ErrMissingUnit, s, want)
	}
	def, ok := table[strings.ToLower(strings.ReplaceAll(sym, " ", ""))]
	if !ok {
		return 0, fmt.Errorf("%w: %q in %q", ErrUnknownUnit, sym, s)
	}
	if def.dim != want {
		return 0, fmt.Errorf("%w: %q is a %s, expected a %s", ErrUnitMismatch, s, def.dim, want)
	}
	return v * def.scale, nil
}

func decodeNode(node *yaml.Node, want dimension) (float64, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("units: line %d: expected a scalar %s", node.Line, want)
	}
	v, err := parse(node.Value, want)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return v, nil
}

// Time is a duration in picoseconds.
type Time float64

const (
	Femtosecond Time = 1e-3
	Picosecond  Time = 1
	Nanosecond  Time = 1e3
)

func ParseTime(s string) (Time, error) {
	v, err := parse(s, dimTime)
	return Time(v), err
}

func (t Time) Picoseconds() float64 { return float64(t) }
func (t Time) Nanoseconds() float64 { return float64(t) / 1e3 }
func (t Time) String() string       { return formatValue(float64(t), "ps") }

func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node, dimTime)
	if err != nil {
		return err
	}
	*t = Time(v)
	return nil
}

func (t Time) MarshalYAML() (interface{}, error) { return t.String(), nil }

// Temperature is an absolute temperature in kelvin.
type Temperature float64

const Kelvin Temperature = 1

func ParseTemperature(s string) (Temperature, error) {
	v, err := parse(s, dimTemperature)
	return Temperature(v), err
}

func (t Temperature) Kelvin() float64 { return float64(t) }
func (t Temperature) String() string  { return formatValue(float64(t), "K") }

func (t *Temperature) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node, dimTemperature)
	if err != nil {
		return err
	}
	*t = Temperature(v)
	return nil
}

func (t Temperature) MarshalYAML() (interface{}, error) { return t.String(), nil }

// Length is a distance in nanometers.
type Length float64

const (
	Angstrom  Length = 0.1
	Nanometer Length = 1
)

func ParseLength(s string) (Length, error) {
	v, err := parse(s, dimLength)
	return Length(v), err
}

func (l Length) Nanometers() float64 { return float64(l) }
func (l Length) Angstroms() float64  { return float64(l) * 10 }
func (l Length) String() string      { return formatValue(float64(l), "nm") }

func (l *Length) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node, dimLength)
	if err != nil {
		return err
	}
	*l = Length(v)
	return nil
}

func (l Length) MarshalYAML() (interface{}, error) { return l.String(), nil }

// Frequency is a rate in inverse picoseconds, used for friction coefficients.
type Frequency float64

const PerPicosecond Frequency = 1

func ParseFrequency(s string) (Frequency, error) {
	v, err := parse(s, dimFrequency)
	return Frequency(v), err
}

func (f Frequency) PerPicosecond() float64 { return float64(f) }
func (f Frequency) String() string         { return formatValue(float64(f), "/ps") }

func (f *Frequency) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node, dimFrequency)
	if err != nil {
		return err
	}
	*f = Frequency(v)
	return nil
}

func (f Frequency) MarshalYAML() (interface{}, error) { return f.String(), nil }

// Pressure is in bar.
type Pressure float64

const Bar Pressure = 1

func ParsePressure(s string) (Pressure, error) {
	v, err := parse(s, dimPressure)
	return Pressure(v), err
}

func (p Pressure) Bar() float64   { return float64(p) }
func (p Pressure) String() string { return formatValue(float64(p), "bar") }

func (p *Pressure) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node, dimPressure)
	if err != nil {
		return err
	}
	*p = Pressure(v)
	return nil
}

func (p Pressure) MarshalYAML() (interface{}, error) { return p.String(), nil }

func formatValue(v float64, unit string) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + " " + unit
}

// stepTolerance absorbs float error when dividing two decimal durations,
// e.g. 0.01 ps / 0.002 ps.
const stepTolerance = 1e-9

// Steps returns how many whole steps of size dt fit in total.
func Steps(total, dt Time) (int, error) {
	if dt <= 0 {
		return 0, fmt.Errorf("units: timestep must be positive, got %s", dt)
	}
	if total < 0 {
		return 0, fmt.Errorf("units: duration must not be negative, got %s", total)
	}
	r := float64(total) / float64(dt)
	n := math.Floor(r + stepTolerance*math.Max(1, r))
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("units: %s / %s overflows the step counter", total, dt)
	}
	return int(n), nil
}

// Physical constants in engine units.
const (
	// BoltzmannKJ is k_B in kJ/(mol K).
	BoltzmannKJ = 0.0083144626

	// BarNm3ToKJPerMol converts pressure*volume in bar*nm^3 to kJ/mol.
	BarNm3ToKJPerMol = 0.06022140857
)
