package mesh

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisyOctahedron perturbs the octahedron radially so smoothing has work to do.
func noisyOctahedron() *MeshData {
	m := &MeshData{
		Vertices: []float32{
			1.3, 0, 0, -0.8, 0, 0,
			0, 1.2, 0, 0, -0.7, 0,
			0, 0, 1.4, 0, 0, -0.9,
		},
		Indices: []uint32{
			0, 2, 4, 2, 1, 4, 1, 3, 4, 3, 0, 4,
			2, 0, 5, 1, 2, 5, 3, 1, 5, 0, 3, 5,
		},
	}
	RecomputeNormals(m)
	return m
}

// radialSpread is the difference between the largest and smallest vertex
// distance from the origin.
func radialSpread(m *MeshData) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < m.VertexCount(); i++ {
		r := math.Sqrt(float64(m.Vertices[3*i])*float64(m.Vertices[3*i]) +
			float64(m.Vertices[3*i+1])*float64(m.Vertices[3*i+1]) +
			float64(m.Vertices[3*i+2])*float64(m.Vertices[3*i+2]))
		lo = math.Min(lo, r)
		hi = math.Max(hi, r)
	}
	return hi - lo
}

func TestSmoothReducesNoise(t *testing.T) {
	m := noisyOctahedron()
	before := radialSpread(m)

	out, err := Smooth(context.Background(), m, 10, nil)
	require.NoError(t, err)

	assert.Less(t, radialSpread(out), before)
	assert.Equal(t, m.TriangleCount(), out.TriangleCount())
	assert.Equal(t, m.VertexCount(), out.VertexCount())
}

func TestSmoothDoesNotMutateInput(t *testing.T) {
	m := noisyOctahedron()
	orig := append([]float32(nil), m.Vertices...)

	out, err := Smooth(context.Background(), m, 5, nil)
	require.NoError(t, err)
	require.NotSame(t, m, out)

	assert.Equal(t, orig, m.Vertices)
}

func TestSmoothZeroIterationsReturnsInput(t *testing.T) {
	m := noisyOctahedron()
	out, err := Smooth(context.Background(), m, 0, nil)
	require.NoError(t, err)
	assert.Same(t, m, out)
}

func TestSmoothEmptyMeshReturnsInput(t *testing.T) {
	m := &MeshData{}
	out, err := Smooth(context.Background(), m, 10, nil)
	require.NoError(t, err)
	assert.Same(t, m, out)
}

func TestSmoothProgress(t *testing.T) {
	m := noisyOctahedron()

	var calls [][2]int
	_, err := Smooth(context.Background(), m, 3, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)

	// One unit per pass, two passes per iteration.
	require.Len(t, calls, 6)
	assert.Equal(t, [2]int{1, 6}, calls[0])
	assert.Equal(t, [2]int{6, 6}, calls[5])
}

func TestSmoothCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Smooth(ctx, noisyOctahedron(), 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestSmoothIsolatedVertexStaysPut(t *testing.T) {
	m := noisyOctahedron()
	m.Vertices = append(m.Vertices, 42, 42, 42)
	m.Normals = append(m.Normals, 0, 0, 0)

	out, err := Smooth(context.Background(), m, 5, nil)
	require.NoError(t, err)

	last := out.VertexCount() - 1
	assert.Equal(t, float32(42), out.Vertices[3*last])
	assert.Equal(t, float32(42), out.Vertices[3*last+1])
	assert.Equal(t, float32(42), out.Vertices[3*last+2])
}

func TestSmoothRefreshesNormals(t *testing.T) {
	m := noisyOctahedron()
	out, err := Smooth(context.Background(), m, 5, nil)
	require.NoError(t, err)

	require.Len(t, out.Normals, len(out.Vertices))
	for i := 0; i < out.VertexCount(); i++ {
		n := math.Sqrt(float64(out.Normals[3*i])*float64(out.Normals[3*i]) +
			float64(out.Normals[3*i+1])*float64(out.Normals[3*i+1]) +
			float64(out.Normals[3*i+2])*float64(out.Normals[3*i+2]))
		assert.InDelta(t, 1, n, 1e-6)
	}
}
