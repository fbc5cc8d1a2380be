// Package match implements the approximate transport distance between
// batched point sets: an annealed proportional-refinement engine producing a
// soft assignment plan, the weighted-distance reduction over a plan, and the
// gradient of that reduction with respect to both point sets.
//
// The engine does not compute exact optimal transport. It refines a plan
// over a fixed schedule of temperature levels, tracking per-point capacities
// so that no dataset point absorbs more matching mass than its budget and no
// query row exceeds its demand. The approximation quality and cost are both
// controlled by the Schedule.
package match

import (
	"context"

	"github.com/chewxy/math32"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/pointset"
	"github.com/orneryd/pointloss/pkg/simd"
)

// rowSumEps is the threshold under which a weight-row is considered empty
// and left unscaled, avoiding amplification of pure float noise.
const rowSumEps = 1e-12

// Match computes an approximate assignment plan between dataset set d
// ([B,N,3]) and query set q ([B,M,3]).
//
// The returned plan has shape [B,M,N]; entry (b,i,j) is the mass matched
// from query point i to dataset point j, with every row summing to at most
// 1. The returned workspace holds the engine's capacity accounting and has
// no meaning after the call; it is returned so callers that invoke Match
// repeatedly can hand it back via MatchInto and avoid reallocation.
//
// Levels run strictly in sequence; batch elements fan out across the
// context's workers.
func Match(ctx context.Context, cc *compute.Context, d, q pointset.Set, sched Schedule) (pointset.Plan, pointset.Workspace, error) {
	plan := pointset.NewPlan(d.B, q.N, d.N)
	ws := pointset.NewWorkspace(d.B, q.N, d.N)
	if err := MatchInto(ctx, cc, d, q, sched, plan, ws); err != nil {
		return pointset.Plan{}, pointset.Workspace{}, err
	}
	return plan, ws, nil
}

// MatchInto is Match writing into caller-allocated plan and workspace
// buffers. Both must have been sized for the shapes of d and q.
func MatchInto(ctx context.Context, cc *compute.Context, d, q pointset.Set, sched Schedule, plan pointset.Plan, ws pointset.Workspace) error {
	const op = "match.Match"
	if err := compute.ValidatePair(op, d, q); err != nil {
		return err
	}
	if err := sched.Validate(); err != nil {
		return err
	}
	if err := checkPlanShape(op, plan, d, q); err != nil {
		return err
	}
	if ws.B != d.B || ws.M != q.N || ws.N != d.N {
		return &compute.ShapeError{Op: op, Arg: "workspace",
			Want: shape2(d.B, 2*(q.N+d.N)), Got: shape2(ws.B, 2*(ws.M+ws.N))}
	}

	temps := sched.temperatures()
	shares := sched.massShares()

	cc.Logger().Debug("match engine start",
		"context_id", cc.ID(), "batches", d.B, "dataset_points", d.N,
		"query_points", q.N, "levels", sched.Levels)

	return cc.ForEachBatch(ctx, d.B, func(b int) error {
		matchBatch(d.Batch(b), q.Batch(b), d.N, q.N,
			plan.Data[b*q.N*d.N:(b+1)*q.N*d.N], ws.Batch(b), temps, shares, sched.Alternations)
		return nil
	})
}

// matchBatch runs the full level schedule for one batch element.
//
// dPts is [n,3], qPts is [m,3], plan is the [m,n] output block, ws is the
// 2(m+n) scratch block laid out as [remQ(m) | remD(n) | rowScr(m) | colScr(n)].
func matchBatch(dPts, qPts []float32, n, m int, plan, ws []float32, temps, shares []float32, alternations int) {
	remQ := ws[:m]
	remD := ws[m : m+n]
	rowScr := ws[m+n : m+n+m]
	colScr := ws[m+n+m:]

	// Demand and capacity absorb the cardinality mismatch: the smaller
	// side is granted proportionally more mass so every point can match.
	larger := n
	if m > n {
		larger = m
	}
	demand := float32(larger) / float32(m)
	capacity := float32(larger) / float32(n)

	for i := range remQ {
		remQ[i] = demand
	}
	for j := range remD {
		remD[j] = capacity
	}
	clear(plan)

	w := make([]float32, m*n)

	for l := range temps {
		invTemp := 1 / temps[l]

		// Affinity: exp of the negative scaled squared distance, biased
		// by each dataset point's remaining capacity so saturated points
		// stop attracting mass. The row minimum is subtracted before the
		// exp so the nearest pair anchors the row at weight 1 and sharp
		// levels cannot underflow the whole row to zero.
		for i := 0; i < m; i++ {
			qp := qPts[i*3 : i*3+3]
			d2 := colScr
			simd.SquaredDistances(dPts, qp[0], qp[1], qp[2], d2)
			d2min := d2[0]
			for j := 1; j < n; j++ {
				if d2[j] < d2min {
					d2min = d2[j]
				}
			}
			row := w[i*n : (i+1)*n]
			for j := 0; j < n; j++ {
				row[j] = math32.Exp(-(d2[j]-d2min)*invTemp) * remD[j]
			}
		}

		// Alternate row and column rescaling. Rows are scaled to the
		// level's emission target; columns only ever scale down, so after
		// the final column pass no dataset point exceeds its budget and
		// no query row exceeds its target.
		for t := 0; t < alternations; t++ {
			for i := 0; i < m; i++ {
				row := w[i*n : (i+1)*n]
				var sum float32
				for j := 0; j < n; j++ {
					sum += row[j]
				}
				target := remQ[i] * shares[l]
				if sum > rowSumEps {
					simd.ScaleInPlace(row, target/sum)
				}
			}

			clear(colScr)
			for i := 0; i < m; i++ {
				row := w[i*n : (i+1)*n]
				for j := 0; j < n; j++ {
					colScr[j] += row[j]
				}
			}
			for j := 0; j < n; j++ {
				if colScr[j] > remD[j] && colScr[j] > rowSumEps {
					colScr[j] = remD[j] / colScr[j]
				} else {
					colScr[j] = 1
				}
			}
			for i := 0; i < m; i++ {
				row := w[i*n : (i+1)*n]
				for j := 0; j < n; j++ {
					row[j] *= colScr[j]
				}
			}
		}

		// Consume capacities and accumulate the level into the plan.
		clear(colScr)
		for i := 0; i < m; i++ {
			row := w[i*n : (i+1)*n]
			var sum float32
			for j := 0; j < n; j++ {
				sum += row[j]
				colScr[j] += row[j]
			}
			rowScr[i] = sum
		}
		for i := 0; i < m; i++ {
			remQ[i] -= rowScr[i]
			if remQ[i] < 0 {
				remQ[i] = 0
			}
		}
		for j := 0; j < n; j++ {
			remD[j] -= colScr[j]
			if remD[j] < 0 {
				remD[j] = 0
			}
		}
		for k, v := range w {
			plan[k] += v
		}
	}

	// Express the plan as a fraction of each query's demand so rows sum to
	// at most 1 regardless of the cardinality ratio, and clamp the tiny
	// overshoot float accumulation can produce.
	invDemand := 1 / demand
	for k := range plan {
		v := plan[k] * invDemand
		if v > 1 {
			v = 1
		}
		plan[k] = v
	}
}

func checkPlanShape(op string, plan pointset.Plan, d, q pointset.Set) error {
	if plan.B != d.B || plan.M != q.N || plan.N != d.N {
		return &compute.ShapeError{Op: op, Arg: "plan",
			Want: shape3(d.B, q.N, d.N), Got: shape3(plan.B, plan.M, plan.N)}
	}
	if len(plan.Data) != plan.B*plan.M*plan.N {
		return &compute.ShapeError{Op: op, Arg: "plan",
			Want: shape3(plan.B, plan.M, plan.N), Got: shape1(len(plan.Data))}
	}
	return nil
}
