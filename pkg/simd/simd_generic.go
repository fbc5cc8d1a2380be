//go:build (!amd64 && !arm64) || nosimd

package simd

import (
	"github.com/viterin/vek/vek32"
)

// Generic fallback implementations using the viterin/vek library.
// On platforms without AVX2/NEON, vek32 uses optimized pure Go loops that
// still beat naive code through better memory access patterns.

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

	for i := 1; i < n; i++ {
		off := i * 3
		d := squaredDistance3(points[off], points[off+1], points[off+2], x, y, z)
		// strict < keeps the lowest index on exact ties
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
		Implementation: ImplGeneric,
		Features:       info.CPUFeatures,
		Accelerated:    info.Acceleration,
	}
}
