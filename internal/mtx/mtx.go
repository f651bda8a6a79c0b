// Package mtx implements dense complex square matrices and their Matrix
// Market exchange format serialization. State matrices, symmetries and
// projections are all stored on disk in this format.
package mtx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Shape errors reported by Read and New.
var (
	ErrNotSquare = errors.New("matrix is not square")
	ErrEmpty     = errors.New("matrix has no rows")
)

// Matrix is a dense square matrix of complex values stored in row-major order.
type Matrix struct {
	Size int
	Data []complex128
}

// New creates a zero matrix of the given size.
func New(size int) *Matrix {
	return &Matrix{Size: size, Data: make([]complex128, size*size)}
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) complex128 {
	return m.Data[i*m.Size+j]
}

// Set assigns the element at row i, column j.
func (m *Matrix) Set(i, j int, v complex128) {
	m.Data[i*m.Size+j] = v
}

// Clone returns a deep copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{Size: m.Size, Data: make([]complex128, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// header is the parsed MatrixMarket banner line.
type header struct {
	format string // "array" or "coordinate"
	field  string // "real", "integer" or "complex"
}

func parseHeader(line string) (header, error) {
	fields := strings.Fields(strings.ToLower(line))
	// %%MatrixMarket matrix <format> <field> <symmetry>
	if len(fields) < 5 || fields[0] != "%%matrixmarket" || fields[1] != "matrix" {
		return header{}, fmt.Errorf("not a MatrixMarket banner: %q", line)
	}
	h := header{format: fields[2], field: fields[3]}
	if h.format != "array" && h.format != "coordinate" {
		return header{}, fmt.Errorf("unsupported MatrixMarket format %q", h.format)
	}
	switch h.field {
	case "real", "integer", "complex":
	default:
		return header{}, fmt.Errorf("unsupported MatrixMarket field %q", h.field)
	}
	if fields[4] != "general" {
		return header{}, fmt.Errorf("unsupported MatrixMarket symmetry %q", fields[4])
	}
	return h, nil
}

// Read parses a MatrixMarket document into a square complex matrix. Both the
// dense "array" layout (column-major values) and the sparse "coordinate"
// layout (1-based indices) are accepted, with real, integer or complex fields.
func Read(r io.Reader) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("empty MatrixMarket document")
	}
	h, err := parseHeader(sc.Text())
	if err != nil {
		return nil, err
	}

	sizeLine, err := nextDataLine(sc)
	if err != nil {
		return nil, fmt.Errorf("missing size line: %w", err)
	}
	dims := strings.Fields(sizeLine)
	wantDims := 2
	if h.format == "coordinate" {
		wantDims = 3
	}
	if len(dims) != wantDims {
		return nil, fmt.Errorf("malformed size line %q", sizeLine)
	}
	rows, err := strconv.Atoi(dims[0])
	if err != nil {
		return nil, fmt.Errorf("malformed row count %q", dims[0])
	}
	cols, err := strconv.Atoi(dims[1])
	if err != nil {
		return nil, fmt.Errorf("malformed column count %q", dims[1])
	}
	if rows != cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, rows, cols)
	}
	if rows == 0 {
		return nil, ErrEmpty
	}

	m := New(rows)
	if h.format == "array" {
		if err := readArray(sc, h, m); err != nil {
			return nil, err
		}
		return m, nil
	}
	nnz, err := strconv.Atoi(dims[2])
	if err != nil {
		return nil, fmt.Errorf("malformed entry count %q", dims[2])
	}
	if err := readCoordinate(sc, h, m, nnz); err != nil {
		return nil, err
	}
	return m, nil
}

// readArray fills the matrix from dense values listed in column-major order.
func readArray(sc *bufio.Scanner, h header, m *Matrix) error {
	total := m.Size * m.Size
	for k := 0; k < total; k++ {
		line, err := nextDataLine(sc)
		if err != nil {
			return fmt.Errorf("truncated array data at entry %d: %w", k, err)
		}
		v, err := parseValue(line, h.field)
		if err != nil {
			return err
		}
		col := k / m.Size
		row := k % m.Size
		m.Set(row, col, v)
	}
	return nil
}

// readCoordinate fills the matrix from sparse 1-based (i, j, value) entries.
func readCoordinate(sc *bufio.Scanner, h header, m *Matrix, nnz int) error {
	for k := 0; k < nnz; k++ {
		line, err := nextDataLine(sc)
		if err != nil {
			return fmt.Errorf("truncated coordinate data at entry %d: %w", k, err)
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("malformed coordinate entry %q", line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("malformed row index %q", fields[0])
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("malformed column index %q", fields[1])
		}
		if i < 1 || i > m.Size || j < 1 || j > m.Size {
			return fmt.Errorf("coordinate entry (%d, %d) outside %dx%d matrix", i, j, m.Size, m.Size)
		}
		v, err := parseValue(strings.Join(fields[2:], " "), h.field)
		if err != nil {
			return err
		}
		m.Set(i-1, j-1, v)
	}
	return nil
}

// parseValue parses a single value of the given field type into a complex number.
func parseValue(s, field string) (complex128, error) {
	fields := strings.Fields(s)
	if field == "complex" {
		if len(fields) != 2 {
			return 0, fmt.Errorf("malformed complex value %q", s)
		}
		re, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed real part %q", fields[0])
		}
		im, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed imaginary part %q", fields[1])
		}
		return complex(re, im), nil
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("malformed %s value %q", field, s)
	}
	re, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s value %q", field, s)
	}
	return complex(re, 0), nil
}

// nextDataLine returns the next non-empty, non-comment line.
func nextDataLine(sc *bufio.Scanner) (string, error) {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		return line, nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.ErrUnexpectedEOF
}

// Write serializes the matrix as a dense complex MatrixMarket document.
func Write(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "%%MatrixMarket matrix array complex general"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(bw, "% Created with cssfinder."); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "%d %d\n", m.Size, m.Size); err != nil {
		return err
	}
	// Array layout is column-major.
	for j := 0; j < m.Size; j++ {
		for i := 0; i < m.Size; i++ {
			v := m.At(i, j)
			if _, err := fmt.Fprintf(bw, "%.18e %.18e\n", real(v), imag(v)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadFile loads a matrix from the file at path.
func ReadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

// WriteFile stores the matrix at path, creating parent directories as needed.
func WriteFile(path string, m *Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
