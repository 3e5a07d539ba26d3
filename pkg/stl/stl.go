// Package stl writes triangle meshes as binary STL files.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"dicomto3d/pkg/mesh"
)

const headerSize = 80

// SaveToSTL writes m to path in binary STL format: an 80-byte header, a
// uint32 triangle count, then one 50-byte record per triangle holding the
// facet normal, the three vertices and a zero attribute byte count.
func SaveToSTL(path string, m *mesh.MeshData) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	var header [headerSize]byte
	copy(header[:], "dicomto3d binary STL")
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(m.TriangleCount())); err != nil {
		return err
	}

	for t := 0; t < len(m.Indices); t += 3 {
		a := triVertex(m, m.Indices[t])
		b := triVertex(m, m.Indices[t+1])
		c := triVertex(m, m.Indices[t+2])

		n := facetNormal(a, b, c)
		record := []float32{
			float32(n.X), float32(n.Y), float32(n.Z),
			float32(a.X), float32(a.Y), float32(a.Z),
			float32(b.X), float32(b.Y), float32(b.Z),
			float32(c.X), float32(c.Y), float32(c.Z),
		}
		if err := binary.Write(w, binary.LittleEndian, record); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}

	return w.Flush()
}

func triVertex(m *mesh.MeshData, i uint32) r3.Vec {
	return r3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// facetNormal computes the unit normal from the triangle winding. Degenerate
// triangles get a zero normal, which STL readers tolerate.
func facetNormal(a, b, c r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if norm := r3.Norm(n); norm > 0 {
		return r3.Scale(1/norm, n)
	}
	return r3.Vec{}
}
