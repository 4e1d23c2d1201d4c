// Package npy writes two-dimensional int16 NumPy arrays. Everything else
// goes through github.com/sbinet/npyio, which writes slices only as 1-D
// and matrices only as float64.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	magic     = "\x93NUMPY"
	alignment = 64
)

// ErrShape indicates a shape that does not match the data length.
var ErrShape = errors.New("npy: shape does not match data length")

func header(rows, cols int) []byte {
	dict := fmt.Sprintf("{'descr': '<i2', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// magic(6) + version(2) + length(2) + dict + padding + '\n' is a multiple of 64.
	total := len(magic) + 4 + len(dict) + 1
	pad := (alignment - total%alignment) % alignment
	var b bytes.Buffer
	b.WriteString(magic)
	b.Write([]byte{1, 0})
	binary.Write(&b, binary.LittleEndian, uint16(len(dict)+pad+1))
	b.WriteString(dict)
	b.Write(bytes.Repeat([]byte{' '}, pad))
	b.WriteByte('\n')
	return b.Bytes()
}

// WriteInt16Matrix writes data as a C-order rows×cols '<i2' array.
func WriteInt16Matrix(w io.Writer, data []int16, rows, cols int) error {
	if rows < 0 || cols < 0 || rows*cols != len(data) {
		return fmt.Errorf("%w: (%d, %d) for %d values", ErrShape, rows, cols, len(data))
	}
	bw := bufio.NewWriter(w)
	bw.Write(header(rows, cols))
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile creates path and fills it with write. A failed write removes
// the partial file.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
