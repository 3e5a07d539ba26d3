// Package mesh holds the triangle-mesh representation shared by the
// isosurface extractor and the rendering layer, plus the pure post-processing
// passes (Taubin smoothing, vertex-clustering decimation) applied to extracted
// surfaces. Meshes are never mutated in place; every pass returns a new mesh.
package mesh

import "gonum.org/v1/gonum/spatial/r3"

// MeshData is a triangle mesh in flat-array form: Vertices and Normals hold
// three float32 per vertex, Indices three entries per triangle.
type MeshData struct {
	Vertices []float32
	Normals  []float32
	Indices  []uint32
}

// VertexCount returns the number of vertices.
func (m *MeshData) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *MeshData) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no geometry.
func (m *MeshData) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *MeshData) vertex(i uint32) r3.Vec {
	return r3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// RecomputeNormals replaces the mesh's normals with area-weighted vertex
// normals derived from the current geometry. Vertices without any incident
// non-degenerate triangle keep a zero normal.
func RecomputeNormals(m *MeshData) {
	normals := make([]float64, len(m.Vertices))
	for t := 0; t < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		va, vb, vc := m.vertex(a), m.vertex(b), m.vertex(c)
		// Cross product length is twice the triangle area, so summing the
		// unnormalized normals weights each face by its area.
		n := r3.Cross(r3.Sub(vb, va), r3.Sub(vc, va))
		for _, idx := range []uint32{a, b, c} {
			normals[3*idx] += n.X
			normals[3*idx+1] += n.Y
			normals[3*idx+2] += n.Z
		}
	}

	m.Normals = make([]float32, len(m.Vertices))
	for i := 0; i < len(normals); i += 3 {
		n := r3.Vec{X: normals[i], Y: normals[i+1], Z: normals[i+2]}
		if norm := r3.Norm(n); norm > 0 {
			n = r3.Scale(1/norm, n)
			m.Normals[i] = float32(n.X)
			m.Normals[i+1] = float32(n.Y)
			m.Normals[i+2] = float32(n.Z)
		}
	}
}
