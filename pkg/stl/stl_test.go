package stl

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicomto3d/pkg/mesh"
)

func testMesh() *mesh.MeshData {
	// A unit right tetrahedron, four triangles.
	m := &mesh.MeshData{
		Vertices: []float32{
			0, 0, 0,
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		},
		Indices: []uint32{
			0, 2, 1,
			0, 1, 3,
			0, 3, 2,
			1, 2, 3,
		},
	}
	mesh.RecomputeNormals(m)
	return m
}

func TestSaveToSTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.stl")
	m := testMesh()

	require.NoError(t, SaveToSTL(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// 80-byte header, 4-byte count, 50 bytes per triangle.
	require.Len(t, data, 80+4+50*m.TriangleCount())

	count := binary.LittleEndian.Uint32(data[80:84])
	assert.Equal(t, uint32(m.TriangleCount()), count)
}

func TestSaveToSTLFirstTriangleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.stl")
	m := testMesh()

	require.NoError(t, SaveToSTL(path, m))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	read32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
	}

	// First triangle is (0,0,0)(0,1,0)(1,0,0), wound to face -z.
	rec := 84
	assert.InDelta(t, 0, read32(rec), 1e-6)   // normal x
	assert.InDelta(t, 0, read32(rec+4), 1e-6) // normal y
	assert.InDelta(t, -1, read32(rec+8), 1e-6)

	assert.InDelta(t, 0, read32(rec+12), 1e-6) // vertex a
	assert.InDelta(t, 0, read32(rec+16), 1e-6)
	assert.InDelta(t, 0, read32(rec+20), 1e-6)
	assert.InDelta(t, 0, read32(rec+24), 1e-6) // vertex b
	assert.InDelta(t, 1, read32(rec+28), 1e-6)
	assert.InDelta(t, 0, read32(rec+32), 1e-6)
	assert.InDelta(t, 1, read32(rec+36), 1e-6) // vertex c
	assert.InDelta(t, 0, read32(rec+40), 1e-6)
	assert.InDelta(t, 0, read32(rec+44), 1e-6)

	// Attribute byte count is zero.
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(data[rec+48:rec+50]))
}

func TestSaveToSTLEmptyMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.stl")

	require.NoError(t, SaveToSTL(path, &mesh.MeshData{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 84)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[80:84]))
}

func TestSaveToSTLBadPath(t *testing.T) {
	err := SaveToSTL(filepath.Join(t.TempDir(), "missing", "out.stl"), testMesh())
	assert.Error(t, err)
}
