//go:build arm64 && !nosimd

package simd

import (
	"github.com/viterin/vek/vek32"
)

// ARM64 NEON-optimized implementations using the viterin/vek SIMD library.
// vek32 carries NEON assembly kernels for float32 slices on arm64; the
// fixed-stride point kernels below unroll by hand instead, since the 3-float
// stride defeats slice-kernel dispatch.

func dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

func squaredDistance(a, b []float32) float32 {
	d := vek32.Distance(a, b)
	return d * d
}

func euclideanDistance(a, b []float32) float32 {
	return vek32.Distance(a, b)
}

func norm(v []float32) float32 {
	return vek32.Norm(v)
}

func scaleInPlace(v []float32, s float32) {
	vek32.MulNumber_Inplace(v, s)
}

func nearestPoint(points []float32, x, y, z float32) (int32, float32) {
	n := len(points) / 3

	best := int32(0)
	bestDist := squaredDistance3(points[0], points[1], points[2], x, y, z)

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
	info := vek32.Info()
	return RuntimeInfo{
		Implementation: ImplNEON,
		Features:       info.CPUFeatures,
		Accelerated:    info.Acceleration,
	}
}
