// Package chamfer implements the bidirectional nearest-neighbor (Chamfer)
// distance between batched point sets and its gradient.
//
// The forward pass reports, for every point of each set, the squared
// Euclidean distance to its nearest point in the opposite set together with
// that point's index, in both directions. The backward pass scatters
// upstream gradients on the two distance arrays back onto point
// coordinates, treating the index selection as constant.
package chamfer

import (
	"context"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/pointset"
	"github.com/orneryd/pointloss/pkg/simd"
)

// NearestNeighbor computes both directions of the nearest-neighbor query
// between dataset set d ([B,N,3]) and query set q ([B,M,3]).
//
// Each result entry holds the minimum squared distance over the opposite
// set and the index achieving it; exact ties resolve to the lowest index.
// Every (batch, point) pair is an independent reduction, fanned out across
// the context's workers.
func NearestNeighbor(ctx context.Context, cc *compute.Context, d, q pointset.Set) (pointset.Result, error) {
	const op = "chamfer.NearestNeighbor"
	if err := compute.ValidatePair(op, d, q); err != nil {
		return pointset.Result{}, err
	}

	res := pointset.NewResult(d.B, d.N, q.N)

	cc.Logger().Debug("nearest neighbor start",
		"context_id", cc.ID(), "batches", d.B,
		"dataset_points", d.N, "query_points", q.N)

	// Dataset -> query direction: one writer per result row.
	err := cc.ForEachRange(ctx, d.B*d.N, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			b, i := r/d.N, r%d.N
			p := d.Point(b, i)
			idx, dist := simd.NearestPoint(q.Batch(b), p[0], p[1], p[2])
			res.IdxA[r] = idx
			res.DistA[r] = dist
		}
		return nil
	})
	if err != nil {
		return pointset.Result{}, err
	}

	// Query -> dataset direction.
	err = cc.ForEachRange(ctx, q.B*q.N, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			b, i := r/q.N, r%q.N
			p := q.Point(b, i)
			idx, dist := simd.NearestPoint(d.Batch(b), p[0], p[1], p[2])
			res.IdxB[r] = idx
			res.DistB[r] = dist
		}
		return nil
	})
	if err != nil {
		return pointset.Result{}, err
	}

	return res, nil
}

// Distance returns the aggregate Chamfer loss per batch element: the mean
// of the dataset-side squared distances plus the mean of the query-side
// squared distances.
func Distance(ctx context.Context, cc *compute.Context, d, q pointset.Set) ([]float32, error) {
	res, err := NearestNeighbor(ctx, cc, d, q)
	if err != nil {
		return nil, err
	}

	out := make([]float32, d.B)
	for b := 0; b < d.B; b++ {
		var sumA float64
		for i := 0; i < d.N; i++ {
			sumA += float64(res.DistA[b*d.N+i])
		}
		var sumB float64
		for i := 0; i < q.N; i++ {
			sumB += float64(res.DistB[b*q.N+i])
		}
		out[b] = float32(sumA/float64(d.N) + sumB/float64(q.N))
	}
	return out, nil
}
