package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/orneryd/pointloss/pkg/pointset"
)

var npyMagic = []byte("\x93NUMPY")

// ReadNPY parses a NumPy v1 .npy array of little-endian float32 with shape
// (N, 3) or (B, N, 3) into a point set. A two-dimensional array becomes a
// single-batch set.
func ReadNPY(r io.Reader) (pointset.Set, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, head); err != nil {
		return pointset.Set{}, fmt.Errorf("%w: short npy header: %v", ErrFormat, err)
	}
	if string(head[:len(npyMagic)]) != string(npyMagic) {
		return pointset.Set{}, fmt.Errorf("%w: missing npy magic", ErrFormat)
	}
	if head[len(npyMagic)] != 1 {
		return pointset.Set{}, fmt.Errorf("%w: unsupported npy version %d.%d",
			ErrFormat, head[len(npyMagic)], head[len(npyMagic)+1])
	}

	var hlen uint16
	if err := binary.Read(br, binary.LittleEndian, &hlen); err != nil {
		return pointset.Set{}, fmt.Errorf("%w: short npy header: %v", ErrFormat, err)
	}
	header := make([]byte, hlen)
	if _, err := io.ReadFull(br, header); err != nil {
		return pointset.Set{}, fmt.Errorf("%w: short npy header: %v", ErrFormat, err)
	}

	descr, fortran, shape, err := parseNPYDict(string(header))
	if err != nil {
		return pointset.Set{}, err
	}
	if descr != "<f4" {
		return pointset.Set{}, fmt.Errorf("%w: dtype %q, want <f4", ErrFormat, descr)
	}
	if fortran {
		return pointset.Set{}, fmt.Errorf("%w: fortran order is not supported", ErrFormat)
	}

	var b, n int
	switch len(shape) {
	case 2:
		b, n = 1, shape[0]
	case 3:
		b, n = shape[0], shape[1]
	default:
		return pointset.Set{}, fmt.Errorf("%w: rank %d array, want 2 or 3", ErrFormat, len(shape))
	}
	if shape[len(shape)-1] != pointset.Dims {
		return pointset.Set{}, fmt.Errorf("%w: trailing dimension %d, want 3", ErrFormat, shape[len(shape)-1])
	}
	if b <= 0 || n <= 0 {
		return pointset.Set{}, fmt.Errorf("%w: empty array", ErrFormat)
	}

	out := pointset.New(b, n)
	raw := make([]byte, 4*len(out.Data))
	if _, err := io.ReadFull(br, raw); err != nil {
		return pointset.Set{}, fmt.Errorf("%w: short npy payload: %v", ErrFormat, err)
	}
	for i := range out.Data {
		out.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}

// WriteNPY writes s as a NumPy v1 .npy array of little-endian float32 with
// shape (B, N, 3).
func WriteNPY(w io.Writer, s pointset.Set) error {
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d, %d), }",
		s.B, s.N, pointset.Dims)
	// Total header size (magic through trailing newline) pads to a
	// multiple of 64 for aligned payload access.
	pre := len(npyMagic) + 2 + 2
	pad := 64 - (pre+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.WriteByte(1)
	bw.WriteByte(0)
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	raw := make([]byte, 4)
	for _, v := range s.Data {
		binary.LittleEndian.PutUint32(raw, math.Float32bits(v))
		bw.Write(raw)
	}
	return bw.Flush()
}

// parseNPYDict pulls descr, fortran_order and shape out of the Python dict
// literal in an npy header.
func parseNPYDict(s string) (descr string, fortran bool, shape []int, err error) {
	descr, err = dictString(s, "descr")
	if err != nil {
		return "", false, nil, err
	}

	switch {
	case strings.Contains(s, "'fortran_order': False"):
		fortran = false
	case strings.Contains(s, "'fortran_order': True"):
		fortran = true
	default:
		return "", false, nil, fmt.Errorf("%w: npy header lacks fortran_order", ErrFormat)
	}

	open := strings.Index(s, "'shape':")
	if open < 0 {
		return "", false, nil, fmt.Errorf("%w: npy header lacks shape", ErrFormat)
	}
	lp := strings.Index(s[open:], "(")
	rp := strings.Index(s[open:], ")")
	if lp < 0 || rp < 0 || rp < lp {
		return "", false, nil, fmt.Errorf("%w: malformed npy shape", ErrFormat)
	}
	for _, part := range strings.Split(s[open+lp+1:open+rp], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", false, nil, fmt.Errorf("%w: malformed npy shape: %v", ErrFormat, convErr)
		}
		shape = append(shape, dim)
	}
	return descr, fortran, shape, nil
}

func dictString(s, key string) (string, error) {
	marker := "'" + key + "':"
	at := strings.Index(s, marker)
	if at < 0 {
		return "", fmt.Errorf("%w: npy header lacks %s", ErrFormat, key)
	}
	rest := s[at+len(marker):]
	open := strings.Index(rest, "'")
	if open < 0 {
		return "", fmt.Errorf("%w: malformed npy %s", ErrFormat, key)
	}
	end := strings.Index(rest[open+1:], "'")
	if end < 0 {
		return "", fmt.Errorf("%w: malformed npy %s", ErrFormat, key)
	}
	return rest[open+1 : open+1+end], nil
}
