package match

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/pointset"
)

// gradEps guards the distance division in CostGrad. Pairs closer than this
// contribute zero gradient instead of NaN.
const gradEps = 1e-9

// Cost reduces a plan and the two point sets to one scalar per batch
// element: the sum over all (query, dataset) pairs of the plan weight times
// the Euclidean (not squared) distance. No normalization by point count is
// applied; callers normalize as needed.
func Cost(ctx context.Context, cc *compute.Context, d, q pointset.Set, plan pointset.Plan) ([]float32, error) {
	const op = "match.Cost"
	if err := compute.ValidatePair(op, d, q); err != nil {
		return nil, err
	}
	if err := checkPlanShape(op, plan, d, q); err != nil {
		return nil, err
	}

	cost := make([]float32, d.B)
	err := cc.ForEachBatch(ctx, d.B, func(b int) error {
		dPts := d.Batch(b)
		qPts := q.Batch(b)

		var total float64
		for i := 0; i < q.N; i++ {
			row := plan.Row(b, i)
			qx, qy, qz := qPts[i*3], qPts[i*3+1], qPts[i*3+2]
			for j := 0; j < d.N; j++ {
				dx := dPts[j*3] - qx
				dy := dPts[j*3+1] - qy
				dz := dPts[j*3+2] - qz
				total += float64(row[j] * math32.Sqrt(dx*dx+dy*dy+dz*dz))
			}
		}
		cost[b] = float32(total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cost, nil
}

// CostGrad computes the gradient of Cost with respect to both point sets.
// The plan is treated as a constant: gradient flows only through the
// distance term. Coincident pairs (distance below gradEps) contribute zero.
//
// Both gradient buffers are freshly written, not accumulated into.
func CostGrad(ctx context.Context, cc *compute.Context, d, q pointset.Set, plan pointset.Plan) (gradD, gradQ pointset.Set, err error) {
	const op = "match.CostGrad"
	if err := compute.ValidatePair(op, d, q); err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}
	if err := checkPlanShape(op, plan, d, q); err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}

	gradD = pointset.New(d.B, d.N)
	gradQ = pointset.New(q.B, q.N)

	// One goroutine owns all gradient rows of its batch element, so the
	// many-to-one accumulation below needs no synchronization.
	err = cc.ForEachBatch(ctx, d.B, func(b int) error {
		dPts := d.Batch(b)
		qPts := q.Batch(b)
		gD := gradD.Batch(b)
		gQ := gradQ.Batch(b)

		for i := 0; i < q.N; i++ {
			row := plan.Row(b, i)
			qx, qy, qz := qPts[i*3], qPts[i*3+1], qPts[i*3+2]
			for j := 0; j < d.N; j++ {
				w := row[j]
				if w == 0 {
					continue
				}
				dx := dPts[j*3] - qx
				dy := dPts[j*3+1] - qy
				dz := dPts[j*3+2] - qz
				dist := math32.Sqrt(dx*dx + dy*dy + dz*dz)
				if dist < gradEps {
					continue
				}
				s := w / dist
				gD[j*3] += s * dx
				gD[j*3+1] += s * dy
				gD[j*3+2] += s * dz
				gQ[i*3] -= s * dx
				gQ[i*3+1] -= s * dy
				gQ[i*3+2] -= s * dz
			}
		}
		return nil
	})
	if err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}
	return gradD, gradQ, nil
}

// EMD is a convenience wrapper: it matches q against d with the given
// schedule and returns the per-batch cost normalized by the query count,
// an approximation of the earth mover's distance between the clouds.
func EMD(ctx context.Context, cc *compute.Context, d, q pointset.Set, sched Schedule) ([]float32, error) {
	plan, _, err := Match(ctx, cc, d, q, sched)
	if err != nil {
		return nil, err
	}
	cost, err := Cost(ctx, cc, d, q, plan)
	if err != nil {
		return nil, err
	}
	inv := 1 / float32(q.N)
	for b := range cost {
		cost[b] *= inv
	}
	return cost, nil
}

// Correspondences extracts a hard assignment from a soft plan: for every
// query row the dataset index carrying the largest weight, lowest index on
// ties. Shape [B*M], int32, matching the nearest-neighbor index convention.
func Correspondences(plan pointset.Plan) []int32 {
	out := make([]int32, plan.B*plan.M)
	for b := 0; b < plan.B; b++ {
		for i := 0; i < plan.M; i++ {
			row := plan.Row(b, i)
			best := int32(0)
			bestW := row[0]
			for j := 1; j < plan.N; j++ {
				if row[j] > bestW {
					bestW = row[j]
					best = int32(j)
				}
			}
			out[b*plan.M+i] = best
		}
	}
	return out
}

func shape1(n int) string       { return fmt.Sprintf("[%d]", n) }
func shape2(b, n int) string    { return fmt.Sprintf("[%d, %d]", b, n) }
func shape3(b, m, n int) string { return fmt.Sprintf("[%d, %d, %d]", b, m, n) }
