package simd

// Implementation represents the active SIMD implementation
type Implementation string

const (
	// ImplGeneric indicates the pure Go fallback (no SIMD)
	ImplGeneric Implementation = "generic"
	// ImplAVX2 indicates x86 AVX2+FMA SIMD
	ImplAVX2 Implementation = "avx2"
	// ImplNEON indicates ARM NEON SIMD
	ImplNEON Implementation = "neon"
)

// RuntimeInfo contains information about the active SIMD implementation
type RuntimeInfo struct {
	// Implementation is the active SIMD backend
	Implementation Implementation
	// Features lists specific CPU features being used
	Features []string
	// Accelerated indicates whether SIMD acceleration is active
	Accelerated bool
}

// Dot computes the dot product of two float32 vectors.
//
// Returns 0 if the vectors are empty or have different lengths.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return dot(a, b)
}

// SquaredDistance computes the squared Euclidean distance between two
// float32 vectors: sum((a[i]-b[i])^2).
//
// Returns 0 if the vectors are empty or have different lengths.
func SquaredDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return squaredDistance(a, b)
}

// EuclideanDistance computes the Euclidean distance between two float32
// vectors: sqrt(sum((a[i]-b[i])^2)).
//
// Returns 0 if the vectors are empty or have different lengths.
func EuclideanDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return euclideanDistance(a, b)
}

// Norm computes the Euclidean norm (L2 norm) of a float32 vector.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return norm(v)
}

// ScaleInPlace multiplies every element of v by s.
func ScaleInPlace(v []float32, s float32) {
	if len(v) == 0 {
		return
	}
	scaleInPlace(v, s)
}

// NearestPoint scans a contiguous [n, 3] coordinate block and returns the
// index of the point nearest to (x, y, z) together with the squared
// Euclidean distance. Exact distance ties resolve to the lowest index.
//
// Parameters:
//   - points: contiguous array of n*3 float32 coordinates
//
// Returns (-1, 0) if points is empty or not a multiple of 3.
func NearestPoint(points []float32, x, y, z float32) (int32, float32) {
	if len(points) == 0 || len(points)%3 != 0 {
		return -1, 0
	}
	return nearestPoint(points, x, y, z)
}

// SquaredDistances fills out[i] with the squared Euclidean distance from
// (x, y, z) to point i of a contiguous [n, 3] coordinate block. out must
// hold at least n elements; extra capacity is left untouched.
func SquaredDistances(points []float32, x, y, z float32, out []float32) {
	n := len(points) / 3
	if n == 0 || len(out) < n {
		return
	}
	squaredDistances(points, x, y, z, out)
}

// Info returns information about the active SIMD implementation.
func Info() RuntimeInfo {
	return runtimeInfo()
}
