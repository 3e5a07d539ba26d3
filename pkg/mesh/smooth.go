package mesh

import "context"

// Taubin smoothing factors. The negative μ pass undoes the shrinkage the λ
// pass would otherwise accumulate.
const (
	taubinLambda = 0.5
	taubinMu     = -0.53
)

// Smooth applies Taubin two-pass smoothing to m and returns the smoothed
// copy. Each iteration is one λ pass followed by one μ pass. A pass rederives
// neighbor sums from the triangle list, counting shared edges with
// multiplicity, and moves every vertex with at least one incident triangle
// toward (λ) or away from (μ) the average of its neighbors. Isolated
// vertices stay put.
//
// An empty mesh or iterations <= 0 returns the input unchanged. progress,
// when non-nil, receives one unit per completed pass out of iterations*2.
// Cancellation is checked between passes and aborts without a partial mesh.
func Smooth(ctx context.Context, m *MeshData, iterations int, progress func(done, total int)) (*MeshData, error) {
	if m.IsEmpty() || iterations <= 0 {
		return m, nil
	}

	nv := m.VertexCount()
	pos := make([]float64, len(m.Vertices))
	for i, v := range m.Vertices {
		pos[i] = float64(v)
	}

	sums := make([]float64, len(pos))
	counts := make([]int, nv)
	totalPasses := iterations * 2

	for pass := 0; pass < totalPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		factor := taubinLambda
		if pass%2 == 1 {
			factor = taubinMu
		}
		smoothPass(pos, m.Indices, sums, counts, factor)
		if progress != nil {
			progress(pass+1, totalPasses)
		}
	}

	out := &MeshData{
		Vertices: make([]float32, len(pos)),
		Indices:  append([]uint32(nil), m.Indices...),
	}
	for i, v := range pos {
		out.Vertices[i] = float32(v)
	}
	RecomputeNormals(out)
	return out, nil
}

// smoothPass runs one Laplacian pass over pos in place. sums and counts are
// scratch buffers reused across passes.
func smoothPass(pos []float64, indices []uint32, sums []float64, counts []int, factor float64) {
	for i := range sums {
		sums[i] = 0
	}
	for i := range counts {
		counts[i] = 0
	}

	// Each corner contributes its position to the other two corners of the
	// triangle. An edge shared by two triangles is therefore counted twice,
	// which weights the average toward well-connected neighbors.
	for t := 0; t < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		accumulate(pos, sums, counts, a, b)
		accumulate(pos, sums, counts, a, c)
		accumulate(pos, sums, counts, b, a)
		accumulate(pos, sums, counts, b, c)
		accumulate(pos, sums, counts, c, a)
		accumulate(pos, sums, counts, c, b)
	}

	for v := range counts {
		if counts[v] == 0 {
			continue
		}
		inv := 1 / float64(counts[v])
		for k := 0; k < 3; k++ {
			avg := sums[3*v+k] * inv
			pos[3*v+k] += factor * (avg - pos[3*v+k])
		}
	}
}

// accumulate adds vertex from's position into to's neighbor sum.
func accumulate(pos, sums []float64, counts []int, to, from uint32) {
	sums[3*to] += pos[3*from]
	sums[3*to+1] += pos[3*from+1]
	sums[3*to+2] += pos[3*from+2]
	counts[to]++
}
