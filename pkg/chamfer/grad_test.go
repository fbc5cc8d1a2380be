package chamfer

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/pointset"
)

// nnLoss is the float64 forward oracle for the gradient check: the weighted
// sum of both distance arrays under fixed upstream gradients.
func nnLoss(t *testing.T, cc *compute.Context, d, q pointset.Set, gradDistA, gradDistB []float32) float64 {
	t.Helper()
	res, err := NearestNeighbor(context.Background(), cc, d, q)
	require.NoError(t, err)

	var sum float64
	for i, g := range gradDistA {
		sum += float64(g) * float64(res.DistA[i])
	}
	for i, g := range gradDistB {
		sum += float64(g) * float64(res.DistB[i])
	}
	return sum
}

func TestGradFiniteDifference(t *testing.T) {
	cc := testContext(t)
	ctx := context.Background()

	// Well-separated points keep the argmin indices stable under the
	// finite-difference perturbation.
	d, err := pointset.FromSlice(1, 3, []float32{
		0, 0, 0,
		4, 0, 0,
		0, 4, 0,
	})
	require.NoError(t, err)
	q, err := pointset.FromSlice(1, 2, []float32{
		0.5, 0.25, 0,
		4.5, -0.25, 0.5,
	})
	require.NoError(t, err)

	gradDistA := []float32{1, -0.5, 0.75}
	gradDistB := []float32{0.25, 1.5}

	res, err := NearestNeighbor(ctx, cc, d, q)
	require.NoError(t, err)
	gradD, gradQ, err := Grad(ctx, cc, d, q, res, gradDistA, gradDistB)
	require.NoError(t, err)

	const h = 1e-3
	const tol = 5e-2

	check := func(s pointset.Set, grad pointset.Set) {
		for k := range s.Data {
			orig := s.Data[k]
			s.Data[k] = orig + h
			fPlus := nnLoss(t, cc, d, q, gradDistA, gradDistB)
			s.Data[k] = orig - h
			fMinus := nnLoss(t, cc, d, q, gradDistA, gradDistB)
			s.Data[k] = orig

			want := (fPlus - fMinus) / (2 * h)
			require.InDelta(t, want, float64(grad.Data[k]), tol,
				"coordinate %d", k)
		}
	}
	check(d, gradD)
	check(q, gradQ)
}

func TestGradZeroUpstreamIsZero(t *testing.T) {
	cc := testContext(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(41))

	d := randomSet(t, rng, 2, 8)
	q := randomSet(t, rng, 2, 6)

	res, err := NearestNeighbor(ctx, cc, d, q)
	require.NoError(t, err)

	gradD, gradQ, err := Grad(ctx, cc, d, q, res,
		make([]float32, 2*8), make([]float32, 2*6))
	require.NoError(t, err)

	for _, v := range gradD.Data {
		require.Equal(t, float32(0), v)
	}
	for _, v := range gradQ.Data {
		require.Equal(t, float32(0), v)
	}
}

func TestGradSharedNearestNeighborAccumulates(t *testing.T) {
	cc := testContext(t)
	ctx := context.Background()

	// Both dataset points are nearest to the single query point, so the
	// scatter onto that point must accumulate both contributions.
	d, err := pointset.FromSlice(1, 2, []float32{
		1, 0, 0,
		-1, 0, 0,
	})
	require.NoError(t, err)
	q, err := pointset.FromSlice(1, 1, []float32{0, 0, 0})
	require.NoError(t, err)

	res, err := NearestNeighbor(ctx, cc, d, q)
	require.NoError(t, err)

	gradD, gradQ, err := Grad(ctx, cc, d, q, res,
		[]float32{1, 1}, []float32{0})
	require.NoError(t, err)

	// dL/dd0.x = 2*(1-0) = 2, dL/dd1.x = 2*(-1-0) = -2; the query point
	// receives -2 and +2, which cancel.
	require.InDelta(t, 2.0, gradD.Data[0], 1e-6)
	require.InDelta(t, -2.0, gradD.Data[3], 1e-6)
	require.InDelta(t, 0.0, gradQ.Data[0], 1e-6)

	for _, v := range gradD.Data {
		require.False(t, math.IsNaN(float64(v)))
	}
}

func TestGradValidation(t *testing.T) {
	cc := testContext(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(43))

	d := randomSet(t, rng, 1, 4)
	q := randomSet(t, rng, 1, 3)

	res, err := NearestNeighbor(ctx, cc, d, q)
	require.NoError(t, err)

	t.Run("wrong result shape", func(t *testing.T) {
		bad := res
		bad.N = 5
		_, _, err := Grad(ctx, cc, d, q, bad,
			make([]float32, 4), make([]float32, 3))
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("wrong gradDistA length", func(t *testing.T) {
		_, _, err := Grad(ctx, cc, d, q, res,
			make([]float32, 3), make([]float32, 3))
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("index out of range", func(t *testing.T) {
		bad := res
		bad.IdxA = append([]int32(nil), res.IdxA...)
		bad.IdxA[0] = 99
		_, _, err := Grad(ctx, cc, d, q, bad,
			make([]float32, 4), make([]float32, 3))
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})
}
