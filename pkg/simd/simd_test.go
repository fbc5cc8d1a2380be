package simd

import (
	"math"
	"testing"
)

const epsilon = 1e-5

func approxEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) < float64(eps)
}

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "simple",
			a:        []float32{1, 2, 3},
			b:        []float32{4, 5, 6},
			expected: 32, // 1*4 + 2*5 + 3*6
		},
		{
			name:     "zeros",
			a:        []float32{0, 0, 0},
			b:        []float32{0, 0, 0},
			expected: 0,
		},
		{
			name:     "empty",
			a:        []float32{},
			b:        []float32{},
			expected: 0,
		},
		{
			name:     "mismatched lengths",
			a:        []float32{1, 2},
			b:        []float32{1},
			expected: 0,
		},
		{
			name:     "negative",
			a:        []float32{-1, -2, -3},
			b:        []float32{4, 5, 6},
			expected: -32,
		},
		{
			name:     "long vector (past unroll width)",
			a:        make([]float32, 19),
			b:        make([]float32, 19),
			expected: 19,
		},
	}

	for i := range tests[len(tests)-1].a {
		tests[len(tests)-1].a[i] = 1
		tests[len(tests)-1].b[i] = 1
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dot(tt.a, tt.b)
			if !approxEqual(result, tt.expected, epsilon) {
				t.Errorf("Dot() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSquaredDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{
			name:     "3-4-5 triangle",
			a:        []float32{0, 0},
			b:        []float32{3, 4},
			expected: 25,
		},
		{
			name:     "identical",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
		{
			name:     "empty",
			a:        []float32{},
			b:        []float32{},
			expected: 0,
		},
		{
			name:     "unit offset in 11 dims",
			a:        make([]float32, 11),
			b:        make([]float32, 11),
			expected: 11,
		},
	}

	for i := range tests[len(tests)-1].b {
		tests[len(tests)-1].b[i] = 1
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SquaredDistance(tt.a, tt.b)
			if !approxEqual(result, tt.expected, epsilon) {
				t.Errorf("SquaredDistance() = %v, want %v", result, tt.expected)
			}

			want := float32(math.Sqrt(float64(tt.expected)))
			if got := EuclideanDistance(tt.a, tt.b); !approxEqual(got, want, epsilon) {
				t.Errorf("EuclideanDistance() = %v, want %v", got, want)
			}
		})
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); !approxEqual(got, 5, epsilon) {
		t.Errorf("Norm() = %v, want 5", got)
	}
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil) = %v, want 0", got)
	}
}

func TestScaleInPlace(t *testing.T) {
	v := []float32{1, -2, 3, -4, 5, -6, 7, -8, 9}
	ScaleInPlace(v, 0.5)
	want := []float32{0.5, -1, 1.5, -2, 2.5, -3, 3.5, -4, 4.5}
	for i := range v {
		if !approxEqual(v[i], want[i], epsilon) {
			t.Fatalf("ScaleInPlace()[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestNearestPoint(t *testing.T) {
	tests := []struct {
		name     string
		points   []float32
		x, y, z  float32
		wantIdx  int32
		wantDist float32
	}{
		{
			name:     "single point",
			points:   []float32{1, 0, 0},
			x:        0, y: 0, z: 0,
			wantIdx:  0,
			wantDist: 1,
		},
		{
			name: "closest in the middle",
			points: []float32{
				5, 0, 0,
				1, 1, 0,
				9, 9, 9,
			},
			x: 1, y: 0, z: 0,
			wantIdx:  1,
			wantDist: 1,
		},
		{
			name: "tie goes to lowest index",
			points: []float32{
				1, 0, 0,
				0, 1, 0,
				0, 0, 1,
			},
			x: 0, y: 0, z: 0,
			wantIdx:  0,
			wantDist: 1,
		},
		{
			name:    "empty",
			points:  nil,
			wantIdx: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, dist := NearestPoint(tt.points, tt.x, tt.y, tt.z)
			if idx != tt.wantIdx {
				t.Errorf("NearestPoint() idx = %d, want %d", idx, tt.wantIdx)
			}
			if idx >= 0 && !approxEqual(dist, tt.wantDist, epsilon) {
				t.Errorf("NearestPoint() dist = %v, want %v", dist, tt.wantDist)
			}
		})
	}
}

func TestNearestPointMatchesScan(t *testing.T) {
	// large enough to exercise the unrolled path and its tail
	const n = 37
	points := make([]float32, n*3)
	for i := range points {
		points[i] = float32((i*2654435761)%1000)/500 - 1
	}

	q := []float32{0.25, -0.5, 0.75}
	gotIdx, gotDist := NearestPoint(points, q[0], q[1], q[2])

	wantIdx := int32(0)
	wantDist := float32(math.MaxFloat32)
	for i := 0; i < n; i++ {
		p := points[i*3 : i*3+3]
		d := SquaredDistance(p, q)
		if d < wantDist {
			wantDist = d
			wantIdx = int32(i)
		}
	}

	if gotIdx != wantIdx || !approxEqual(gotDist, wantDist, epsilon) {
		t.Errorf("NearestPoint() = (%d, %v), want (%d, %v)", gotIdx, gotDist, wantIdx, wantDist)
	}
}

func TestSquaredDistances(t *testing.T) {
	points := []float32{
		0, 0, 0,
		1, 0, 0,
		1, 1, 1,
	}
	out := make([]float32, 3)
	SquaredDistances(points, 1, 0, 0, out)

	want := []float32{1, 0, 2}
	for i := range want {
		if !approxEqual(out[i], want[i], epsilon) {
			t.Errorf("SquaredDistances()[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	if info.Implementation == "" {
		t.Error("Info() returned empty implementation")
	}
}
