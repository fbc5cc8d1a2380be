// Package pointset defines the batched point-cloud buffers shared by every
// loss operation: point sets, assignment plans, nearest-neighbor results and
// the match workspace.
//
// All buffers are row-major, contiguous float32 slices with the shape carried
// alongside the data. Shapes are validated once when a buffer is constructed
// (or adopted from a caller-owned slice); accessors after that point are plain
// slice arithmetic. Buffers are allocated by the caller and never retained
// across operations.
//
// Layout conventions:
//   - Set:       [B, N, 3]      point b,i at Data[(b*N+i)*3 : (b*N+i)*3+3]
//   - Plan:      [B, M, N]      weight b,i,j at Data[(b*M+i)*N+j]
//   - Workspace: [B, 2*(M+N)]   per-batch refinement capacities and scratch
//   - Result:    dist/idx pairs for both nearest-neighbor directions
package pointset

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Dims is the fixed point dimensionality. Only 3D point clouds are supported.
const Dims = 3

// Set is a batch of B point clouds with N points each, shape [B, N, 3].
type Set struct {
	Data []float32
	B, N int
}

// New allocates a zero-filled point set of shape [b, n, 3].
func New(b, n int) Set {
	return Set{Data: make([]float32, b*n*Dims), B: b, N: n}
}

// FromSlice adopts a caller-owned slice as a point set of shape [b, n, 3].
// The slice is not copied.
func FromSlice(b, n int, data []float32) (Set, error) {
	if b <= 0 || n <= 0 {
		return Set{}, fmt.Errorf("pointset: non-positive shape [%d, %d, 3]", b, n)
	}
	if len(data) != b*n*Dims {
		return Set{}, fmt.Errorf("pointset: buffer length %d does not match shape [%d, %d, 3]", len(data), b, n)
	}
	return Set{Data: data, B: b, N: n}, nil
}

// Point returns the 3-element coordinate slice of point i in batch b.
// The slice aliases the set's backing buffer.
func (s Set) Point(b, i int) []float32 {
	off := (b*s.N + i) * Dims
	return s.Data[off : off+Dims : off+Dims]
}

// Batch returns the contiguous [N*3] coordinate block of batch element b.
func (s Set) Batch(b int) []float32 {
	off := b * s.N * Dims
	return s.Data[off : off+s.N*Dims : off+s.N*Dims]
}

// Len reports the total number of points across all batches.
func (s Set) Len() int { return s.B * s.N }

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := Set{Data: make([]float32, len(s.Data)), B: s.B, N: s.N}
	copy(out.Data, s.Data)
	return out
}

// Finite reports whether every coordinate is a finite float32.
func (s Set) Finite() bool {
	for _, v := range s.Data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Zero overwrites every coordinate with 0. Used by gradient producers that
// accumulate into a Set-shaped buffer.
func (s Set) Zero() {
	clear(s.Data)
}

// Plan is an approximate assignment between a query set (M rows) and a
// dataset set (N columns), shape [B, M, N]. Entries are non-negative and each
// row sums to at most 1.
type Plan struct {
	Data    []float32
	B, M, N int
}

// NewPlan allocates a zero-filled plan of shape [b, m, n].
func NewPlan(b, m, n int) Plan {
	return Plan{Data: make([]float32, b*m*n), B: b, M: m, N: n}
}

// Row returns the weight row of query i in batch b, length N.
func (p Plan) Row(b, i int) []float32 {
	off := (b*p.M + i) * p.N
	return p.Data[off : off+p.N : off+p.N]
}

// At returns the weight assigned from query i to dataset point j in batch b.
func (p Plan) At(b, i, j int) float32 {
	return p.Data[(b*p.M+i)*p.N+j]
}

// Workspace is the per-batch accumulation buffer used by the match engine to
// track remaining capacities across refinement levels, shape [B, 2*(M+N)].
// Its contents have no meaning outside a single Match invocation.
//
// Per-batch layout: [ remQ(M) | remD(N) | rowScratch(M) | colScratch(N) ].
type Workspace struct {
	Data    []float32
	B, M, N int
}

// NewWorkspace allocates a workspace for shape parameters b, m, n.
func NewWorkspace(b, m, n int) Workspace {
	return Workspace{Data: make([]float32, b*2*(m+n)), B: b, M: m, N: n}
}

// Batch returns the 2*(M+N) scratch block of batch element b.
func (w Workspace) Batch(b int) []float32 {
	stride := 2 * (w.M + w.N)
	off := b * stride
	return w.Data[off : off+stride : off+stride]
}

// Result holds both directions of a nearest-neighbor query between a dataset
// set (N points) and a query set (M points).
//
// DistA[b*N+i] is the squared Euclidean distance from dataset point i to its
// nearest query point, whose index is IdxA[b*N+i]. DistB/IdxB are the reverse
// direction. Ties are broken toward the lowest index.
type Result struct {
	DistA []float32
	IdxA  []int32
	DistB []float32
	IdxB  []int32
	B     int
	N     int // dataset points per batch
	M     int // query points per batch
}

// NewResult allocates result buffers for shape parameters b, n, m.
func NewResult(b, n, m int) Result {
	return Result{
		DistA: make([]float32, b*n),
		IdxA:  make([]int32, b*n),
		DistB: make([]float32, b*m),
		IdxB:  make([]int32, b*m),
		B:     b,
		N:     n,
		M:     m,
	}
}
