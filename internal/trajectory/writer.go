package trajectory

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/mdrun/internal/engine"
	"github.com/san-kum/mdrun/internal/units"
)

// Writer appends frames to a new little-endian DCD file and keeps the frame
// count in the header current after every frame.
type Writer struct {
	f        *os.File
	natoms   int
	hasCell  bool
	interval int
	frames   int
	buf      []byte
}

// CreateDCD starts a trajectory. interval is the number of integration
// steps between frames; hasCell stores a unit cell with every frame.
func CreateDCD(path string, natoms, interval int, dt units.Time, hasCell bool) (*Writer, error) {
	if natoms <= 0 {
		return nil, fmt.Errorf("trajectory: cannot write %d atoms", natoms)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		f:        f,
		natoms:   natoms,
		hasCell:  hasCell,
		interval: interval,
		buf:      make([]byte, frameBytes(natoms, hasCell)),
	}
	if _, err := f.Write(w.header(dt)); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) header(dt units.Time) []byte {
	le := binary.LittleEndian
	title := fmt.Sprintf("%-80s", "Created by mdrun")
	h := make([]byte, 0, 4+headerBlock+4+4+4+titleLen+4+12)
	h = le.AppendUint32(h, headerBlock)
	h = append(h, "CORD"...)
	icntrl := make([]uint32, 20)
	icntrl[1] = uint32(w.interval) // ISTART
	icntrl[2] = uint32(w.interval) // NSAVC
	icntrl[9] = math.Float32bits(float32(dt.Picoseconds() * akmaPerPs))
	if w.hasCell {
		icntrl[10] = 1
	}
	icntrl[19] = charmmVer
	for _, v := range icntrl {
		h = le.AppendUint32(h, v)
	}
	h = le.AppendUint32(h, headerBlock)

	h = le.AppendUint32(h, 4+titleLen)
	h = le.AppendUint32(h, 1)
	h = append(h, title[:titleLen]...)
	h = le.AppendUint32(h, 4+titleLen)

	h = le.AppendUint32(h, 4)
	h = le.AppendUint32(h, uint32(w.natoms))
	h = le.AppendUint32(h, 4)
	return h
}

// WriteFrame appends positions (nm) and, when the file stores unit cells,
// the box.
func (w *Writer) WriteFrame(pos []engine.Vec3, box *engine.Box) error {
	if w.f == nil {
		return ErrClosed
	}
	if len(pos) != w.natoms {
		return fmt.Errorf("%w: %d positions for %d atoms", ErrAtomMismatch, len(pos), w.natoms)
	}
	le := binary.LittleEndian
	b := w.buf[:0]
	if w.hasCell {
		var cell [6]float64
		if box != nil {
			a, bb, c, alpha, beta, gamma := box.LengthsAngles()
			cell = [6]float64{a * 10, cosDeg(gamma), bb * 10, cosDeg(beta), cosDeg(alpha), c * 10}
		}
		b = le.AppendUint32(b, cellBlock)
		for _, v := range cell {
			b = le.AppendUint64(b, math.Float64bits(v))
		}
		b = le.AppendUint32(b, cellBlock)
	}
	block := uint32(4 * w.natoms)
	for axis := 0; axis < 3; axis++ {
		b = le.AppendUint32(b, block)
		for _, p := range pos {
			b = le.AppendUint32(b, math.Float32bits(float32(p[axis]*10)))
		}
		b = le.AppendUint32(b, block)
	}
	if _, err := w.f.Write(b); err != nil {
		return err
	}
	w.frames++
	return w.updateHeader()
}

func (w *Writer) updateHeader() error {
	le := binary.LittleEndian
	var v [4]byte
	le.PutUint32(v[:], uint32(w.frames))
	if _, err := w.f.WriteAt(v[:], offsetNSet); err != nil {
		return err
	}
	le.PutUint32(v[:], uint32(w.frames*w.interval))
	_, err := w.f.WriteAt(v[:], offsetNStep)
	return err
}

func (w *Writer) Frames() int { return w.frames }

func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func cosDeg(d float64) float64 {
	if d == 90 {
		return 0
	}
	return math.Cos(d * math.Pi / 180)
}
