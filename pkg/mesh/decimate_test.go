package mesh

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridMesh builds an n x n vertex grid in the xy plane triangulated into
// 2*(n-1)^2 triangles.
func gridMesh(n int) *MeshData {
	m := &MeshData{}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.Vertices = append(m.Vertices, float32(x), float32(y), 0)
		}
	}
	at := func(x, y int) uint32 { return uint32(y*n + x) }
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			m.Indices = append(m.Indices,
				at(x, y), at(x+1, y), at(x+1, y+1),
				at(x, y), at(x+1, y+1), at(x, y+1))
		}
	}
	RecomputeNormals(m)
	return m
}

func TestDecimateWithinBudgetUnchanged(t *testing.T) {
	m := gridMesh(5)
	out, err := Decimate(context.Background(), m, m.TriangleCount())
	require.NoError(t, err)
	assert.Same(t, m, out)
}

func TestDecimateMeetsBudget(t *testing.T) {
	m := gridMesh(30) // 1682 triangles
	const budget = 200

	out, err := Decimate(context.Background(), m, budget)
	require.NoError(t, err)

	assert.LessOrEqual(t, out.TriangleCount(), budget)
	assert.Greater(t, out.TriangleCount(), 0)
	assert.Less(t, out.VertexCount(), m.VertexCount())
}

func TestDecimatePreservesBounds(t *testing.T) {
	m := gridMesh(30)
	out, err := Decimate(context.Background(), m, 100)
	require.NoError(t, err)

	// Clustered centroids cannot leave the original bounding box.
	minB, maxB := bounds(m)
	for i := 0; i < len(out.Vertices); i += 3 {
		for k := 0; k < 3; k++ {
			v := float64(out.Vertices[i+k])
			assert.GreaterOrEqual(t, v, minB[k]-1e-6)
			assert.LessOrEqual(t, v, maxB[k]+1e-6)
		}
	}
}

func TestDecimateNoDegenerateOrDuplicateTriangles(t *testing.T) {
	m := gridMesh(30)
	out, err := Decimate(context.Background(), m, 150)
	require.NoError(t, err)

	seen := make(map[triKey]struct{})
	for i := 0; i < len(out.Indices); i += 3 {
		a, b, c := out.Indices[i], out.Indices[i+1], out.Indices[i+2]
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, b, c)
		assert.NotEqual(t, a, c)

		key := canonicalTri(a, b, c)
		_, dup := seen[key]
		assert.False(t, dup, "duplicate triangle %v", key)
		seen[key] = struct{}{}
	}
}

func TestDecimateDegenerateExtentCollapses(t *testing.T) {
	// Every vertex at the same point; no cell size can separate them.
	m := &MeshData{
		Vertices: []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
	out, err := Decimate(context.Background(), m, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, out.TriangleCount())
}

func TestDecimateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Decimate(ctx, gridMesh(30), 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestDecimateRefreshesNormals(t *testing.T) {
	m := gridMesh(30)
	out, err := Decimate(context.Background(), m, 100)
	require.NoError(t, err)

	require.Len(t, out.Normals, len(out.Vertices))
	var unit int
	for i := 0; i < out.VertexCount(); i++ {
		n := math.Sqrt(float64(out.Normals[3*i])*float64(out.Normals[3*i]) +
			float64(out.Normals[3*i+1])*float64(out.Normals[3*i+1]) +
			float64(out.Normals[3*i+2])*float64(out.Normals[3*i+2]))
		if math.Abs(n-1) < 1e-6 {
			unit++
		}
	}
	// Every vertex with incident triangles carries a unit normal.
	assert.Greater(t, unit, 0)
}

func TestCanonicalTri(t *testing.T) {
	want := triKey{1, 2, 3}
	assert.Equal(t, want, canonicalTri(1, 2, 3))
	assert.Equal(t, want, canonicalTri(3, 1, 2))
	assert.Equal(t, want, canonicalTri(2, 3, 1))
	assert.Equal(t, want, canonicalTri(3, 2, 1))
}
