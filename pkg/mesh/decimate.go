package mesh

import (
	"context"
	"math"
)

// decimateRounds is the number of binary-search rounds over candidate cell
// sizes. 16 halvings narrow the coarse/fine range to well under a voxel for
// any clinically plausible volume extent.
const decimateRounds = 16

// fineCellDivisor derives the finest candidate cell size from the bounding
// box's largest dimension.
const fineCellDivisor = 2000

// Decimate reduces m to at most maxTriangles triangles by vertex clustering.
// Meshes already within budget are returned unchanged.
//
// Vertices are bucketed into a uniform grid and every occupied cell collapses
// to the centroid of its members; triangles whose corners land in fewer than
// three distinct cells are dropped, as are duplicates of an already-kept
// unordered corner triple. The cell size is found with a fixed binary search
// between the box's largest dimension (collapses everything) and that
// dimension divided by 2000 (typically over budget), keeping the smallest
// size that meets the budget. If no tested size fits, the coarsest tested
// result is returned as a best effort and may exceed the nominal cap.
//
// Cancellation is checked once per search round.
func Decimate(ctx context.Context, m *MeshData, maxTriangles int) (*MeshData, error) {
	if m.TriangleCount() <= maxTriangles {
		return m, nil
	}

	minB, maxB := bounds(m)
	largest := maxB[0] - minB[0]
	for k := 1; k < 3; k++ {
		if d := maxB[k] - minB[k]; d > largest {
			largest = d
		}
	}
	if largest <= 0 {
		// Every vertex coincides; all triangles collapse degenerate.
		out := &MeshData{}
		RecomputeNormals(out)
		return out, nil
	}

	lo := largest / fineCellDivisor
	hi := largest

	var best *MeshData
	var coarsest *MeshData
	coarsestSize := 0.0

	for round := 0; round < decimateRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cell := (lo + hi) / 2
		candidate := clusterAt(m, minB, cell)
		if cell > coarsestSize {
			coarsestSize = cell
			coarsest = candidate
		}
		if candidate.TriangleCount() <= maxTriangles {
			best = candidate
			hi = cell
		} else {
			lo = cell
		}
	}

	out := best
	if out == nil {
		out = coarsest
	}
	RecomputeNormals(out)
	return out, nil
}

// bounds returns the axis-aligned bounding box of the mesh vertices.
func bounds(m *MeshData) (min, max [3]float64) {
	for k := 0; k < 3; k++ {
		min[k] = math.Inf(1)
		max[k] = math.Inf(-1)
	}
	for i := 0; i < len(m.Vertices); i += 3 {
		for k := 0; k < 3; k++ {
			v := float64(m.Vertices[i+k])
			if v < min[k] {
				min[k] = v
			}
			if v > max[k] {
				max[k] = v
			}
		}
	}
	return min, max
}

type cellKey [3]int32

type triKey [3]uint32

// clusterAt collapses m onto a uniform grid with the given cell size.
func clusterAt(m *MeshData, minB [3]float64, cell float64) *MeshData {
	nv := m.VertexCount()
	inv := 1 / cell

	cells := make(map[cellKey]uint32)
	vertexCell := make([]uint32, nv)
	var sums [][3]float64
	var counts []int

	for v := 0; v < nv; v++ {
		var key cellKey
		for k := 0; k < 3; k++ {
			key[k] = int32(math.Floor((float64(m.Vertices[3*v+k]) - minB[k]) * inv))
		}
		idx, ok := cells[key]
		if !ok {
			idx = uint32(len(sums))
			cells[key] = idx
			sums = append(sums, [3]float64{})
			counts = append(counts, 0)
		}
		vertexCell[v] = idx
		for k := 0; k < 3; k++ {
			sums[idx][k] += float64(m.Vertices[3*v+k])
		}
		counts[idx]++
	}

	out := &MeshData{Vertices: make([]float32, 3*len(sums))}
	for i := range sums {
		for k := 0; k < 3; k++ {
			out.Vertices[3*i+k] = float32(sums[i][k] / float64(counts[i]))
		}
	}

	seen := make(map[triKey]struct{})
	for t := 0; t < len(m.Indices); t += 3 {
		a := vertexCell[m.Indices[t]]
		b := vertexCell[m.Indices[t+1]]
		c := vertexCell[m.Indices[t+2]]
		if a == b || b == c || a == c {
			continue
		}
		if _, dup := seen[canonicalTri(a, b, c)]; dup {
			continue
		}
		seen[canonicalTri(a, b, c)] = struct{}{}
		out.Indices = append(out.Indices, a, b, c)
	}
	return out
}

// canonicalTri orders a triangle's corner indices min/mid/max so duplicate
// triangles compare equal regardless of winding or rotation.
func canonicalTri(a, b, c uint32) triKey {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return triKey{a, b, c}
}
