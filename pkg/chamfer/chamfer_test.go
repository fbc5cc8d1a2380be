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

func testContext(t *testing.T) *compute.Context {
	t.Helper()
	cc, err := compute.New(nil)
	require.NoError(t, err)
	return cc
}

func randomSet(t *testing.T, rng *rand.Rand, b, n int) pointset.Set {
	t.Helper()
	s := pointset.New(b, n)
	for i := range s.Data {
		s.Data[i] = rng.Float32()*2 - 1
	}
	return s
}

// nnOracle recomputes one direction of the nearest-neighbor query with a
// plain scan.
func nnOracle(from, to pointset.Set) ([]float32, []int32) {
	dist := make([]float32, from.B*from.N)
	idx := make([]int32, from.B*from.N)
	for b := 0; b < from.B; b++ {
		for i := 0; i < from.N; i++ {
			p := from.Point(b, i)
			best := int32(0)
			bestDist := float32(math.MaxFloat32)
			for j := 0; j < to.N; j++ {
				o := to.Point(b, j)
				dx := p[0] - o[0]
				dy := p[1] - o[1]
				dz := p[2] - o[2]
				d2 := dx*dx + dy*dy + dz*dz
				if d2 < bestDist {
					bestDist = d2
					best = int32(j)
				}
			}
			dist[b*from.N+i] = bestDist
			idx[b*from.N+i] = best
		}
	}
	return dist, idx
}

func TestNearestNeighborMatchesOracle(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(29))

	d := randomSet(t, rng, 3, 33)
	q := randomSet(t, rng, 3, 17)

	res, err := NearestNeighbor(context.Background(), cc, d, q)
	require.NoError(t, err)

	wantDistA, wantIdxA := nnOracle(d, q)
	wantDistB, wantIdxB := nnOracle(q, d)

	require.Equal(t, wantIdxA, res.IdxA)
	require.Equal(t, wantIdxB, res.IdxB)
	for i := range wantDistA {
		require.InDelta(t, wantDistA[i], res.DistA[i], 1e-5)
	}
	for i := range wantDistB {
		require.InDelta(t, wantDistB[i], res.DistB[i], 1e-5)
	}
}

func TestNearestNeighborTieBreaksToLowestIndex(t *testing.T) {
	cc := testContext(t)

	// D = {(0,0,0)}, Q = {(1,0,0), (0,1,0)}: both query points are at
	// distance 1, so the lowest index must win.
	d, err := pointset.FromSlice(1, 1, []float32{0, 0, 0})
	require.NoError(t, err)
	q, err := pointset.FromSlice(1, 2, []float32{
		1, 0, 0,
		0, 1, 0,
	})
	require.NoError(t, err)

	res, err := NearestNeighbor(context.Background(), cc, d, q)
	require.NoError(t, err)

	require.Equal(t, int32(0), res.IdxA[0])
	require.InDelta(t, 1.0, res.DistA[0], 1e-6)

	// both query points map back to the single dataset point
	require.Equal(t, []int32{0, 0}, res.IdxB)
	require.InDelta(t, 1.0, res.DistB[0], 1e-6)
	require.InDelta(t, 1.0, res.DistB[1], 1e-6)
}

func TestNearestNeighborIdenticalSets(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(31))

	d := randomSet(t, rng, 2, 12)
	q := d.Clone()

	res, err := NearestNeighbor(context.Background(), cc, d, q)
	require.NoError(t, err)

	for b := 0; b < 2; b++ {
		for i := 0; i < 12; i++ {
			require.Equal(t, int32(i), res.IdxA[b*12+i])
			require.Equal(t, float32(0), res.DistA[b*12+i])
			require.Equal(t, int32(i), res.IdxB[b*12+i])
			require.Equal(t, float32(0), res.DistB[b*12+i])
		}
	}

	chd, err := Distance(context.Background(), cc, d, q)
	require.NoError(t, err)
	for _, v := range chd {
		require.Equal(t, float32(0), v)
	}
}

func TestNearestNeighborValidation(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(37))
	ctx := context.Background()

	d := randomSet(t, rng, 2, 4)

	t.Run("batch mismatch", func(t *testing.T) {
		q := randomSet(t, rng, 1, 4)
		_, err := NearestNeighbor(ctx, cc, d, q)
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("empty set", func(t *testing.T) {
		_, err := NearestNeighbor(ctx, cc, pointset.Set{B: 2}, d)
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("non-finite input", func(t *testing.T) {
		q := randomSet(t, rng, 2, 4)
		q.Data[0] = float32(math.Inf(1))
		_, err := NearestNeighbor(ctx, cc, d, q)
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})
}

func TestDistanceSinglePointSets(t *testing.T) {
	cc := testContext(t)

	d, err := pointset.FromSlice(1, 1, []float32{0, 0, 0})
	require.NoError(t, err)
	q, err := pointset.FromSlice(1, 1, []float32{2, 0, 0})
	require.NoError(t, err)

	chd, err := Distance(context.Background(), cc, d, q)
	require.NoError(t, err)
	require.InDelta(t, 8.0, chd[0], 1e-6) // 4 + 4
	require.False(t, math.IsNaN(float64(chd[0])))
}
