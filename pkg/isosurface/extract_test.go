package isosurface

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicomto3d/pkg/dicomvol"
)

// sphereVolume builds an n^3 volume holding dense tissue inside a centered
// sphere of the given radius (in voxels) and air outside.
func sphereVolume(n int, radius float64) *dicomvol.VolumeData {
	v := &dicomvol.VolumeData{
		Data:    make([]int16, n*n*n),
		Columns: n,
		Rows:    n,
		Slices:  n,
		Spacing: [3]float64{1, 1, 1},
	}
	c := float64(n-1) / 2
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				idx := z*n*n + y*n + x
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius {
					v.Data[idx] = 1000
				} else {
					v.Data[idx] = -1000
				}
			}
		}
	}
	return v
}

func uniformVolume(n int, value int16) *dicomvol.VolumeData {
	v := &dicomvol.VolumeData{
		Data:    make([]int16, n*n*n),
		Columns: n,
		Rows:    n,
		Slices:  n,
		Spacing: [3]float64{1, 1, 1},
	}
	for i := range v.Data {
		v.Data[i] = value
	}
	return v
}

func TestExtractSphere(t *testing.T) {
	const n, radius = 20, 6.0
	vol := sphereVolume(n, radius)

	m, err := Extract(context.Background(), vol, 0, 1, nil)
	require.NoError(t, err)
	require.False(t, m.IsEmpty())
	require.Greater(t, m.TriangleCount(), 0)

	// Every vertex sits within a voxel of the sphere surface.
	c := float64(n-1) / 2
	for i := 0; i < m.VertexCount(); i++ {
		dx := float64(m.Vertices[3*i]) - c
		dy := float64(m.Vertices[3*i+1]) - c
		dz := float64(m.Vertices[3*i+2]) - c
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		assert.InDelta(t, radius, dist, 1.0, "vertex %d", i)
	}

	// Normals point out of the dense side, away from the sphere center.
	for i := 0; i < m.VertexCount(); i++ {
		dx := float64(m.Vertices[3*i]) - c
		dy := float64(m.Vertices[3*i+1]) - c
		dz := float64(m.Vertices[3*i+2]) - c
		dot := dx*float64(m.Normals[3*i]) + dy*float64(m.Normals[3*i+1]) + dz*float64(m.Normals[3*i+2])
		assert.Positive(t, dot, "vertex %d", i)
	}
}

func TestExtractSphereIsClosed(t *testing.T) {
	vol := sphereVolume(16, 5)

	m, err := Extract(context.Background(), vol, 0, 1, nil)
	require.NoError(t, err)
	require.False(t, m.IsEmpty())

	// A surface that never touches the volume border is watertight: every
	// undirected edge is shared by exactly two triangles.
	type edge [2]uint32
	edges := make(map[edge]int)
	add := func(a, b uint32) {
		if a > b {
			a, b = b, a
		}
		edges[edge{a, b}]++
	}
	for i := 0; i < len(m.Indices); i += 3 {
		add(m.Indices[i], m.Indices[i+1])
		add(m.Indices[i+1], m.Indices[i+2])
		add(m.Indices[i+2], m.Indices[i])
	}
	for e, count := range edges {
		assert.Equal(t, 2, count, "edge %v", e)
	}
}

func TestExtractSharesVertices(t *testing.T) {
	vol := sphereVolume(16, 5)

	m, err := Extract(context.Background(), vol, 0, 1, nil)
	require.NoError(t, err)

	// An indexed mesh with shared vertices has far fewer vertices than three
	// per triangle; for a closed surface roughly half as many.
	assert.Less(t, m.VertexCount(), m.TriangleCount())
}

func TestExtractNoCrossingYieldsEmptyMesh(t *testing.T) {
	m, err := Extract(context.Background(), uniformVolume(8, -1000), 0, 1, nil)
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, m.TriangleCount())
}

func TestExtractStrideReducesDetail(t *testing.T) {
	vol := sphereVolume(24, 8)

	fine, err := Extract(context.Background(), vol, 0, 1, nil)
	require.NoError(t, err)
	coarse, err := Extract(context.Background(), vol, 0, 3, nil)
	require.NoError(t, err)

	require.False(t, coarse.IsEmpty())
	assert.Less(t, coarse.TriangleCount(), fine.TriangleCount())
}

func TestExtractInvalidStride(t *testing.T) {
	_, err := Extract(context.Background(), sphereVolume(8, 2), 0, 0, nil)
	assert.Error(t, err)
}

func TestExtractTooThinVolume(t *testing.T) {
	v := &dicomvol.VolumeData{
		Data:    make([]int16, 8*8),
		Columns: 8,
		Rows:    8,
		Slices:  1,
		Spacing: [3]float64{1, 1, 1},
	}
	m, err := Extract(context.Background(), v, 0, 1, nil)
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
}

func TestExtractProgress(t *testing.T) {
	vol := sphereVolume(10, 3)

	var calls [][2]int
	_, err := Extract(context.Background(), vol, 0, 1, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)

	require.Len(t, calls, 9)
	assert.Equal(t, [2]int{1, 9}, calls[0])
	assert.Equal(t, [2]int{9, 9}, calls[8])
}

func TestExtractCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, sphereVolume(10, 3), 0, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractAppliesSpacingAndOrigin(t *testing.T) {
	vol := sphereVolume(16, 5)
	vol.Spacing = [3]float64{0.5, 0.5, 2.0}
	vol.Origin = [3]float64{-100, -120, 30}

	m, err := Extract(context.Background(), vol, 0, 1, nil)
	require.NoError(t, err)
	require.False(t, m.IsEmpty())

	// All vertices land inside the patient-space box of the volume.
	for i := 0; i < m.VertexCount(); i++ {
		x := float64(m.Vertices[3*i])
		y := float64(m.Vertices[3*i+1])
		z := float64(m.Vertices[3*i+2])
		assert.GreaterOrEqual(t, x, -100.0)
		assert.LessOrEqual(t, x, -100.0+15*0.5)
		assert.GreaterOrEqual(t, y, -120.0)
		assert.LessOrEqual(t, y, -120.0+15*0.5)
		assert.GreaterOrEqual(t, z, 30.0)
		assert.LessOrEqual(t, z, 30.0+15*2.0)
	}
}

func TestSampleCount(t *testing.T) {
	assert.Equal(t, 10, sampleCount(10, 1))
	assert.Equal(t, 5, sampleCount(10, 2))
	assert.Equal(t, 4, sampleCount(10, 3))
	assert.Equal(t, 0, sampleCount(0, 1))
}
