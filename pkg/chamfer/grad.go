package chamfer

import (
	"context"

	"github.com/orneryd/pointloss/pkg/compute"
	"github.com/orneryd/pointloss/pkg/pointset"
)

// Grad scatters upstream gradients on the two nearest-neighbor distance
// arrays back onto point coordinates.
//
// For dataset point i with nearest query index k = res.IdxA[b,i], the
// squared-distance gradient 2*(d_i - q_k)*gradDistA[b,i] is added to
// gradD[b,i] and subtracted from gradQ[b,k]; the query direction is
// symmetric. Index selection carries no gradient of its own.
//
// Both gradient buffers are zero-initialized before accumulation. Because
// several points may share a nearest neighbor, the scatter into the target
// side is many-to-one; each batch element is owned by a single goroutine,
// which serializes those collisions without atomics.
func Grad(ctx context.Context, cc *compute.Context, d, q pointset.Set, res pointset.Result, gradDistA, gradDistB []float32) (gradD, gradQ pointset.Set, err error) {
	const op = "chamfer.Grad"
	if err := compute.ValidatePair(op, d, q); err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}
	if res.B != d.B || res.N != d.N || res.M != q.N {
		return pointset.Set{}, pointset.Set{}, &compute.ShapeError{
			Op: op, Arg: "result", Want: resultShape(d.B, d.N, q.N), Got: resultShape(res.B, res.N, res.M)}
	}
	if len(gradDistA) != d.B*d.N {
		return pointset.Set{}, pointset.Set{}, &compute.ShapeError{
			Op: op, Arg: "gradDistA", Want: flatShape(d.B * d.N), Got: flatShape(len(gradDistA))}
	}
	if len(gradDistB) != q.B*q.N {
		return pointset.Set{}, pointset.Set{}, &compute.ShapeError{
			Op: op, Arg: "gradDistB", Want: flatShape(q.B * q.N), Got: flatShape(len(gradDistB))}
	}
	if err := checkIndices(op, "idxA", res.IdxA, q.N); err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}
	if err := checkIndices(op, "idxB", res.IdxB, d.N); err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}

	gradD = pointset.New(d.B, d.N)
	gradQ = pointset.New(q.B, q.N)

	err = cc.ForEachBatch(ctx, d.B, func(b int) error {
		dPts := d.Batch(b)
		qPts := q.Batch(b)
		gD := gradD.Batch(b)
		gQ := gradQ.Batch(b)

		for i := 0; i < d.N; i++ {
			g := gradDistA[b*d.N+i]
			if g == 0 {
				continue
			}
			k := int(res.IdxA[b*d.N+i])
			gx := 2 * (dPts[i*3] - qPts[k*3]) * g
			gy := 2 * (dPts[i*3+1] - qPts[k*3+1]) * g
			gz := 2 * (dPts[i*3+2] - qPts[k*3+2]) * g
			gD[i*3] += gx
			gD[i*3+1] += gy
			gD[i*3+2] += gz
			gQ[k*3] -= gx
			gQ[k*3+1] -= gy
			gQ[k*3+2] -= gz
		}

		for i := 0; i < q.N; i++ {
			g := gradDistB[b*q.N+i]
			if g == 0 {
				continue
			}
			k := int(res.IdxB[b*q.N+i])
			gx := 2 * (qPts[i*3] - dPts[k*3]) * g
			gy := 2 * (qPts[i*3+1] - dPts[k*3+1]) * g
			gz := 2 * (qPts[i*3+2] - dPts[k*3+2]) * g
			gQ[i*3] += gx
			gQ[i*3+1] += gy
			gQ[i*3+2] += gz
			gD[k*3] -= gx
			gD[k*3+1] -= gy
			gD[k*3+2] -= gz
		}
		return nil
	})
	if err != nil {
		return pointset.Set{}, pointset.Set{}, err
	}
	return gradD, gradQ, nil
}

func checkIndices(op, arg string, idx []int32, limit int) error {
	for _, v := range idx {
		if v < 0 || int(v) >= limit {
			return &compute.ShapeError{Op: op, Arg: arg,
				Want: indexRange(limit), Got: indexValue(v)}
		}
	}
	return nil
}
