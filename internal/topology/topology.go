// Package topology reads molecular topologies from GROMACS .top and Amber
// .prmtop files.
package topology

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/san-kum/mdrun/internal/engine"
)

var (
	// ErrUnsupportedFormat indicates a file extension no reader handles.
	ErrUnsupportedFormat = errors.New("topology: unsupported file format")

	// ErrEmpty indicates a topology without atoms.
	ErrEmpty = errors.New("topology: no atoms")
)

// SyntaxError locates a malformed line or section.
type SyntaxError struct {
	File    string
	Line    int
	Section string
	Err     error
}

func (e *SyntaxError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("%s:%d [%s]: %v", e.File, e.Line, e.Section, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// File is a parsed topology together with its own pair parameters.
type File struct {
	Path     string
	Topology *engine.Topology
	Pairs    engine.PairParameters
}

// Load dispatches on the file extension.
func Load(path string) (*File, error) {
	var (
		f   *File
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".top":
		f, err = readGromacsFile(path)
	case ".prmtop", ".parm7":
		f, err = readPrmtopFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if f.Topology.NumAtoms() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	f.Path = path
	return f, nil
}

// SetBox attaches periodic box vectors, typically from the coordinate file.
func (f *File) SetBox(box *engine.Box) {
	if box == nil {
		return
	}
	b := *box
	f.Topology.Box = &b
}

// CreateSystem builds an engine System using the topology's own parameters.
func (f *File) CreateSystem(opts engine.SystemOptions) (*engine.System, error) {
	return engine.BuildSystem(f.Topology, opts, f.Pairs)
}
