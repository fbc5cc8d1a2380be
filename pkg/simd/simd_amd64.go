//go:build amd64 && !nosimd

package simd

import (
	"math"

	"golang.org/x/sys/cpu"
)

// x86/amd64 optimized implementations.
// Uses loop unrolling that the Go compiler can auto-vectorize with AVX2/SSE.

var hasAVX2 = cpu.X86.HasAVX2 && cpu.X86.HasFMA

func dot(a, b []float32) float32 {
	n := len(a)

	// 8-way unrolling matches the 256-bit AVX2 lane width (8 float32s)
	var s0, s1, s2, s3, s4, s5, s6, s7 float32

	i := 0
	for ; i <= n-8; i += 8 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}

	return s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
}

func squaredDistance(a, b []float32) float32 {
	n := len(a)

	var s0, s1, s2, s3, s4, s5, s6, s7 float32

	i := 0
	for ; i <= n-8; i += 8 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		d4 := a[i+4] - b[i+4]
		d5 := a[i+5] - b[i+5]
		d6 := a[i+6] - b[i+6]
		d7 := a[i+7] - b[i+7]

		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}

	return s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
}

func euclideanDistance(a, b []float32) float32 {
	return float32(math.Sqrt(float64(squaredDistance(a, b))))
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

func scaleInPlace(v []float32, s float32) {
	n := len(v)
	i := 0
	for ; i <= n-8; i += 8 {
		v[i] *= s
		v[i+1] *= s
		v[i+2] *= s
		v[i+3] *= s
		v[i+4] *= s
		v[i+5] *= s
		v[i+6] *= s
		v[i+7] *= s
	}
	for ; i < n; i++ {
		v[i] *= s
	}
}

func nearestPoint(points []float32, x, y, z float32) (int32, float32) {
	n := len(points) / 3

	best := int32(0)
	bestDist := squaredDistance3(points[0], points[1], points[2], x, y, z)

	// 4 points per iteration keeps 12 coordinate loads in flight
	i := 1
	for ; i <= n-4; i += 4 {
		off := i * 3
		d0 := squaredDistance3(points[off], points[off+1], points[off+2], x, y, z)
		d1 := squaredDistance3(points[off+3], points[off+4], points[off+5], x, y, z)
		d2 := squaredDistance3(points[off+6], points[off+7], points[off+8], x, y, z)
		d3 := squaredDistance3(points[off+9], points[off+10], points[off+11], x, y, z)

		// strict < keeps the lowest index on exact ties
		if d0 < bestDist {
			bestDist, best = d0, int32(i)
		}
		if d1 < bestDist {
			bestDist, best = d1, int32(i+1)
		}
		if d2 < bestDist {
			bestDist, best = d2, int32(i+2)
		}
		if d3 < bestDist {
			bestDist, best = d3, int32(i+3)
		}
	}
	for ; i < n; i++ {
		off := i * 3
		d := squaredDistance3(points[off], points[off+1], points[off+2], x, y, z)
		if d < bestDist {
			bestDist, best = d, int32(i)
		}
	}

	return best, bestDist
}

func squaredDistances(points []float32, x, y, z float32, out []float32) {
	n := len(points) / 3
	for i := 0; i < n; i++ {
		off := i * 3
		out[i] = squaredDistance3(points[off], points[off+1], points[off+2], x, y, z)
	}
}

func squaredDistance3(px, py, pz, x, y, z float32) float32 {
	dx := px - x
	dy := py - y
	dz := pz - z
	return dx*dx + dy*dy + dz*dz
}

func runtimeInfo() RuntimeInfo {
	features := []string{"SSE2"}
	if hasAVX2 {
		features = append(features, "AVX2", "FMA")
		return RuntimeInfo{Implementation: ImplAVX2, Features: features, Accelerated: true}
	}
	return RuntimeInfo{Implementation: ImplGeneric, Features: features, Accelerated: false}
}
