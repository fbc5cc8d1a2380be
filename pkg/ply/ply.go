// Package ply reads and writes point clouds in the two formats common to
// point-cloud training pipelines: ASCII PLY meshes reduced to their vertex
// list, and NumPy .npy arrays of float32 coordinates. Files with a .gz
// suffix are compressed transparently.
package ply

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/orneryd/pointloss/pkg/pointset"
)

// ErrFormat is wrapped by every parse failure in this package.
var ErrFormat = errors.New("ply: malformed file")

// ReadPLY parses an ASCII PLY vertex list into a single-batch point set.
// Only the x, y, z properties of the vertex element are kept; faces and
// additional properties are ignored.
func ReadPLY(r io.Reader) (pointset.Set, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "ply" {
		return pointset.Set{}, fmt.Errorf("%w: missing ply magic", ErrFormat)
	}

	var (
		vertices  = -1
		inVertex  bool
		xyzCols   [3]int
		propIndex int
	)
	xyzCols = [3]int{-1, -1, -1}

	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return pointset.Set{}, fmt.Errorf("%w: only ascii format is supported", ErrFormat)
			}
		case "element":
			inVertex = len(fields) >= 3 && fields[1] == "vertex"
			if inVertex {
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return pointset.Set{}, fmt.Errorf("%w: bad vertex count %q", ErrFormat, fields[2])
				}
				vertices = n
				propIndex = 0
			}
		case "property":
			if inVertex && len(fields) >= 3 {
				switch fields[2] {
				case "x":
					xyzCols[0] = propIndex
				case "y":
					xyzCols[1] = propIndex
				case "z":
					xyzCols[2] = propIndex
				}
				propIndex++
			}
		case "end_header":
			goto body
		}
	}
	return pointset.Set{}, fmt.Errorf("%w: missing end_header", ErrFormat)

body:
	if vertices < 0 {
		return pointset.Set{}, fmt.Errorf("%w: no vertex element", ErrFormat)
	}
	if vertices == 0 {
		return pointset.Set{}, fmt.Errorf("%w: empty vertex element", ErrFormat)
	}
	for axis, col := range xyzCols {
		if col < 0 {
			return pointset.Set{}, fmt.Errorf("%w: vertex element lacks %c property", ErrFormat, 'x'+axis)
		}
	}

	out := pointset.New(1, vertices)
	for i := 0; i < vertices; i++ {
		if !sc.Scan() {
			return pointset.Set{}, fmt.Errorf("%w: expected %d vertices, got %d", ErrFormat, vertices, i)
		}
		fields := strings.Fields(sc.Text())
		p := out.Point(0, i)
		for axis, col := range xyzCols {
			if col >= len(fields) {
				return pointset.Set{}, fmt.Errorf("%w: vertex row %d has %d columns", ErrFormat, i, len(fields))
			}
			v, err := strconv.ParseFloat(fields[col], 32)
			if err != nil {
				return pointset.Set{}, fmt.Errorf("%w: vertex row %d: %v", ErrFormat, i, err)
			}
			p[axis] = float32(v)
		}
	}
	if err := sc.Err(); err != nil {
		return pointset.Set{}, err
	}
	return out, nil
}

// WritePLY writes batch element b of s as an ASCII PLY vertex list.
func WritePLY(w io.Writer, s pointset.Set, b int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\nelement vertex %d\n", s.N)
	bw.WriteString("property float x\nproperty float y\nproperty float z\nend_header\n")
	for i := 0; i < s.N; i++ {
		p := s.Point(b, i)
		fmt.Fprintf(bw, "%g %g %g\n", p[0], p[1], p[2])
	}
	return bw.Flush()
}

// ReadFile loads a point cloud from path, dispatching on the file suffix:
// .ply and .npy, each optionally followed by .gz.
func ReadFile(path string) (pointset.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return pointset.Set{}, err
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return pointset.Set{}, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
		name = strings.TrimSuffix(name, ".gz")
	}

	var s pointset.Set
	switch {
	case strings.HasSuffix(name, ".ply"):
		s, err = ReadPLY(r)
	case strings.HasSuffix(name, ".npy"):
		s, err = ReadNPY(r)
	default:
		return pointset.Set{}, fmt.Errorf("%w: unsupported suffix in %q", ErrFormat, path)
	}
	if err != nil {
		return pointset.Set{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteFile stores s at path, dispatching on the file suffix the same way
// ReadFile does. PLY output holds batch element 0 only; NPY output holds the
// full batch.
func WriteFile(path string, s pointset.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	name := path
	var zw *gzip.Writer
	if strings.HasSuffix(name, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
		name = strings.TrimSuffix(name, ".gz")
	}

	switch {
	case strings.HasSuffix(name, ".ply"):
		err = WritePLY(w, s, 0)
	case strings.HasSuffix(name, ".npy"):
		err = WriteNPY(w, s)
	default:
		err = fmt.Errorf("%w: unsupported suffix in %q", ErrFormat, path)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Close()
}
