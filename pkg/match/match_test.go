package match

import (
	"context"
	"errors"
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

func TestMatchRowSumsBounded(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(7))

	cases := []struct {
		name string
		b    int
		n    int // dataset points
		m    int // query points
	}{
		{"square", 2, 8, 8},
		{"more dataset points", 1, 12, 5},
		{"more query points", 1, 5, 12},
		{"single point sets", 3, 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := randomSet(t, rng, tc.b, tc.n)
			q := randomSet(t, rng, tc.b, tc.m)

			plan, ws, err := Match(context.Background(), cc, d, q, DefaultSchedule())
			require.NoError(t, err)
			require.Len(t, ws.Data, tc.b*2*(tc.m+tc.n))

			for _, v := range plan.Data {
				require.GreaterOrEqual(t, v, float32(0))
				require.LessOrEqual(t, v, float32(1))
				require.False(t, math.IsNaN(float64(v)))
			}
			for b := 0; b < tc.b; b++ {
				for i := 0; i < tc.m; i++ {
					var sum float32
					for _, v := range plan.Row(b, i) {
						sum += v
					}
					require.LessOrEqual(t, sum, float32(1.0001),
						"row sum exceeds demand for batch %d row %d", b, i)
				}
			}
		})
	}
}

func TestMatchIdenticalSetsConcentratesOnDiagonal(t *testing.T) {
	cc := testContext(t)

	// four well-separated points, identical in both sets
	coords := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0.5, 0.5, 1,
	}
	d, err := pointset.FromSlice(1, 4, coords)
	require.NoError(t, err)
	q := d.Clone()

	plan, _, err := Match(context.Background(), cc, d, q, DefaultSchedule())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		diag := plan.At(0, i, i)
		require.Greater(t, diag, float32(0.9), "diagonal entry %d carries too little mass", i)
		for j := 0; j < 4; j++ {
			if j != i {
				require.Less(t, plan.At(0, i, j), diag)
			}
		}
	}

	cost, err := Cost(context.Background(), cc, d, q, plan)
	require.NoError(t, err)
	require.InDelta(t, 0, cost[0], 0.05)
}

func TestMatchDeterministic(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(11))

	d := randomSet(t, rng, 2, 9)
	q := randomSet(t, rng, 2, 6)

	plan1, _, err := Match(context.Background(), cc, d, q, DefaultSchedule())
	require.NoError(t, err)
	plan2, _, err := Match(context.Background(), cc, d, q, DefaultSchedule())
	require.NoError(t, err)

	require.Equal(t, plan1.Data, plan2.Data, "identical inputs must produce bitwise-identical plans")
}

func TestMatchIntoReusesBuffers(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(3))

	d := randomSet(t, rng, 1, 6)
	q := randomSet(t, rng, 1, 4)

	plan := pointset.NewPlan(1, 4, 6)
	ws := pointset.NewWorkspace(1, 4, 6)
	// dirty the buffers to verify they are fully overwritten
	for i := range plan.Data {
		plan.Data[i] = 42
	}

	require.NoError(t, MatchInto(context.Background(), cc, d, q, DefaultSchedule(), plan, ws))
	for _, v := range plan.Data {
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestMatchValidation(t *testing.T) {
	cc := testContext(t)
	rng := rand.New(rand.NewSource(5))
	ctx := context.Background()

	d := randomSet(t, rng, 2, 4)

	t.Run("batch mismatch", func(t *testing.T) {
		q := randomSet(t, rng, 3, 4)
		_, _, err := Match(ctx, cc, d, q, DefaultSchedule())
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("empty set", func(t *testing.T) {
		_, _, err := Match(ctx, cc, d, pointset.Set{B: 2}, DefaultSchedule())
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
		var empty *compute.EmptySetError
		require.True(t, errors.As(err, &empty))
	})

	t.Run("non-finite input", func(t *testing.T) {
		q := randomSet(t, rng, 2, 4)
		q.Data[5] = float32(math.NaN())
		_, _, err := Match(ctx, cc, d, q, DefaultSchedule())
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
		var nf *compute.NotFiniteError
		require.True(t, errors.As(err, &nf))
	})

	t.Run("bad schedule", func(t *testing.T) {
		q := randomSet(t, rng, 2, 4)
		sched := DefaultSchedule()
		sched.TempDecay = 1.5
		_, _, err := Match(ctx, cc, d, q, sched)
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})

	t.Run("wrong plan shape", func(t *testing.T) {
		q := randomSet(t, rng, 2, 4)
		plan := pointset.NewPlan(2, 4, 5)
		ws := pointset.NewWorkspace(2, 4, 4)
		err := MatchInto(ctx, cc, d, q, DefaultSchedule(), plan, ws)
		require.ErrorIs(t, err, compute.ErrInvalidArgument)
	})
}

func TestScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schedule)
		wantErr bool
	}{
		{"defaults", func(s *Schedule) {}, false},
		{"zero levels", func(s *Schedule) { s.Levels = 0 }, true},
		{"negative temp", func(s *Schedule) { s.InitTemp = -1 }, true},
		{"decay of one", func(s *Schedule) { s.TempDecay = 1 }, true},
		{"zero alternations", func(s *Schedule) { s.Alternations = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSchedule()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, compute.ErrInvalidArgument)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMassSharesSumToAllMass(t *testing.T) {
	s := DefaultSchedule()
	shares := s.massShares()
	require.Len(t, shares, s.Levels)

	// emitting share_l of the remaining mass at every level must drain
	// the full budget by the last level
	remaining := 1.0
	for _, f := range shares {
		remaining *= 1 - float64(f)
	}
	require.InDelta(t, 0, remaining, 1e-6)
	require.Equal(t, float32(1), shares[s.Levels-1])
}
