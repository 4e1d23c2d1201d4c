package trajectory

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

// Reader gives random access to the frames of a DCD file. Positions are
// returned in nm.
type Reader struct {
	path      string
	f         *os.File
	order     binary.ByteOrder
	natoms    int
	hasCell   bool
	header    int64
	frameSize int64
	frames    int
	interval  int
	delta     float32
	buf       []byte
}

func OpenDCD(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{path: path, f: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	head := make([]byte, 4+headerBlock+4)
	if _, err := io.ReadFull(r.f, head); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	r.order = binary.LittleEndian
	if r.order.Uint32(head) != headerBlock {
		r.order = binary.BigEndian
		if r.order.Uint32(head) != headerBlock {
			return ErrBadHeader
		}
	}
	if string(head[4:8]) != "CORD" {
		return fmt.Errorf("%w: bad magic %q", ErrBadHeader, head[4:8])
	}
	icntrl := func(i int) uint32 { return r.order.Uint32(head[8+4*i:]) }
	if icntrl(19) == 0 {
		return fmt.Errorf("%w: X-PLOR DCD not supported", ErrBadHeader)
	}
	if icntrl(8) != 0 {
		return fmt.Errorf("%w: fixed atoms not supported", ErrBadHeader)
	}
	if icntrl(11) != 0 {
		return fmt.Errorf("%w: four-dimensional DCD not supported", ErrBadHeader)
	}
	r.interval = int(int32(icntrl(2)))
	r.delta = math.Float32frombits(icntrl(9))
	r.hasCell = icntrl(10) != 0

	var size [4]byte
	if _, err := io.ReadFull(r.f, size[:]); err != nil {
		return fmt.Errorf("%w: title: %v", ErrBadHeader, err)
	}
	titleBytes := int64(r.order.Uint32(size[:]))
	// title block, its trailing marker, then the 4/natoms/4 block.
	rest := make([]byte, titleBytes+4+12)
	if _, err := io.ReadFull(r.f, rest); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if int64(r.order.Uint32(rest[titleBytes:])) != titleBytes {
		return fmt.Errorf("%w: title block markers differ", ErrBadHeader)
	}
	atoms := rest[titleBytes+4:]
	if r.order.Uint32(atoms) != 4 || r.order.Uint32(atoms[8:]) != 4 {
		return fmt.Errorf("%w: atom count block", ErrBadHeader)
	}
	r.natoms = int(int32(r.order.Uint32(atoms[4:])))
	if r.natoms <= 0 {
		return fmt.Errorf("%w: %d atoms", ErrBadHeader, r.natoms)
	}

	r.header = int64(len(head)) + 4 + int64(len(rest))
	r.frameSize = frameBytes(r.natoms, r.hasCell)
	st, err := r.f.Stat()
	if err != nil {
		return err
	}
	// Trailing partial frames from an interrupted writer are ignored.
	r.frames = int((st.Size() - r.header) / r.frameSize)
	r.buf = make([]byte, r.frameSize)
	return nil
}

func (r *Reader) NumAtoms() int { return r.natoms }
func (r *Reader) Len() int      { return r.frames }
func (r *Reader) HasCell() bool { return r.hasCell }
func (r *Reader) Interval() int { return r.interval }
func (r *Reader) Path() string  { return r.path }
func (r *Reader) TimeStep() units.Time {
	return units.Time(float64(r.delta) / akmaPerPs)
}

// Frame reads frame i (0-based).
func (r *Reader) Frame(i int) ([]engine.Vec3, *engine.Box, error) {
	if r.f == nil {
		return nil, nil, ErrClosed
	}
	if i < 0 || i >= r.frames {
		return nil, nil, &FrameError{File: r.path, Frame: i, Frames: r.frames}
	}
	if _, err := r.f.ReadAt(r.buf, r.header+int64(i)*r.frameSize); err != nil {
		return nil, nil, fmt.Errorf("%s: frame %d: %w", r.path, i, err)
	}
	buf := r.buf
	var box *engine.Box
	if r.hasCell {
		if r.order.Uint32(buf) != cellBlock {
			return nil, nil, fmt.Errorf("%s: frame %d: bad unit cell block", r.path, i)
		}
		var c [6]float64
		for k := range c {
			c[k] = math.Float64frombits(r.order.Uint64(buf[4+8*k:]))
		}
		box = cellToBox(c)
		buf = buf[frameMarkers+cellBlock:]
	}

	pos := make([]engine.Vec3, r.natoms)
	block := 4 * r.natoms
	for axis := 0; axis < 3; axis++ {
		if int(r.order.Uint32(buf)) != block {
			return nil, nil, fmt.Errorf("%s: frame %d: bad coordinate block", r.path, i)
		}
		data := buf[4 : 4+block]
		for k := 0; k < r.natoms; k++ {
			pos[k][axis] = float64(math.Float32frombits(r.order.Uint32(data[4*k:]))) / 10
		}
		buf = buf[frameMarkers+block:]
	}
	return pos, box, nil
}

func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// cellToBox decodes the CHARMM unit cell record (A, gamma, B, beta, alpha, C).
// Angles may be stored as cosines or in degrees.
func cellToBox(c [6]float64) *engine.Box {
	a, b, cc := c[0], c[2], c[5]
	if a <= 0 || b <= 0 || cc <= 0 {
		return nil
	}
	alpha, beta, gamma := c[4], c[3], c[1]
	if math.Abs(alpha) <= 1 && math.Abs(beta) <= 1 && math.Abs(gamma) <= 1 {
		alpha = 90 - math.Asin(alpha)*180/math.Pi
		beta = 90 - math.Asin(beta)*180/math.Pi
		gamma = 90 - math.Asin(gamma)*180/math.Pi
	}
	return engine.BoxFromLengthsAngles(a/10, b/10, cc/10, alpha, beta, gamma)
}
