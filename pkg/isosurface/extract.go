// Package isosurface extracts triangle-mesh isosurfaces from a Hounsfield-unit
// volume with the marching cubes algorithm.
package isosurface

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"dicomto3d/pkg/dicomvol"
	"dicomto3d/pkg/mesh"
)

// Extract runs marching cubes over vol at the given Hounsfield threshold.
//
// stride samples every Nth voxel per axis, trading fidelity for speed; 1
// visits every voxel. Vertices are shared between adjacent cells so the
// result is a proper indexed mesh, with unit per-vertex normals pointing out
// of the dense (above-threshold) side. A volume where no cell crosses the
// threshold yields a valid zero-vertex mesh, not an error.
//
// progress, when non-nil, receives (done, total) once per completed cell
// layer. Cancellation is checked per layer.
func Extract(ctx context.Context, vol *dicomvol.VolumeData, threshold float64, stride int, progress func(done, total int)) (*mesh.MeshData, error) {
	if stride < 1 {
		return nil, fmt.Errorf("stride must be >= 1, got %d", stride)
	}

	ex := &extraction{
		vol:       vol,
		threshold: threshold,
		stride:    stride,
		nx:        sampleCount(vol.Columns, stride),
		ny:        sampleCount(vol.Rows, stride),
		nz:        sampleCount(vol.Slices, stride),
		cache:     make(map[uint64]uint32),
		out:       &mesh.MeshData{},
	}
	if ex.nx < 2 || ex.ny < 2 || ex.nz < 2 {
		// Too thin to form a cell in some axis.
		return ex.out, nil
	}

	totalLayers := ex.nz - 1
	for gz := 0; gz < totalLayers; gz++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ex.marchLayer(gz)
		if progress != nil {
			progress(gz+1, totalLayers)
		}
	}
	return ex.out, nil
}

// sampleCount is the number of grid samples along an axis of dim voxels.
func sampleCount(dim, stride int) int {
	if dim <= 0 {
		return 0
	}
	return (dim-1)/stride + 1
}

type extraction struct {
	vol       *dicomvol.VolumeData
	threshold float64
	stride    int

	// Sample-grid dimensions.
	nx, ny, nz int

	// cache maps a cut edge's canonical identity to its vertex index, so
	// cells sharing the edge share the vertex.
	cache map[uint64]uint32
	out   *mesh.MeshData
}

func (ex *extraction) marchLayer(gz int) {
	var corners [8]float64
	for gy := 0; gy < ex.ny-1; gy++ {
		for gx := 0; gx < ex.nx-1; gx++ {
			caseIndex := 0
			for i, off := range cornerOffsets {
				corners[i] = ex.sample(gx+off[0], gy+off[1], gz+off[2])
				if corners[i] < ex.threshold {
					caseIndex |= 1 << i
				}
			}
			tris := triTable[caseIndex]
			for t := 0; t < len(tris); t += 3 {
				a := ex.edgeVertex(gx, gy, gz, int(tris[t]), &corners)
				b := ex.edgeVertex(gx, gy, gz, int(tris[t+1]), &corners)
				c := ex.edgeVertex(gx, gy, gz, int(tris[t+2]), &corners)
				ex.out.Indices = append(ex.out.Indices, a, b, c)
			}
		}
	}
}

// sample reads the HU value at sample-grid coordinates.
func (ex *extraction) sample(gx, gy, gz int) float64 {
	return float64(ex.vol.At(gx*ex.stride, gy*ex.stride, gz*ex.stride))
}

// edgeVertex returns the index of the interpolated vertex on the given cell
// edge, creating it on first use.
func (ex *extraction) edgeVertex(gx, gy, gz, edge int, corners *[8]float64) uint32 {
	anchor := edgeAnchor[edge]
	off := cornerOffsets[anchor[0]]
	key := ex.edgeKey(gx+off[0], gy+off[1], gz+off[2], anchor[1])
	if idx, ok := ex.cache[key]; ok {
		return idx
	}

	c1, c2 := cellEdges[edge][0], cellEdges[edge][1]
	v1, v2 := corners[c1], corners[c2]

	t := 0.5
	if d := v2 - v1; math.Abs(d) > 1e-12 {
		t = (ex.threshold - v1) / d
	}

	o1, o2 := cornerOffsets[c1], cornerOffsets[c2]
	var grid [3]float64
	base := [3]int{gx, gy, gz}
	for k := 0; k < 3; k++ {
		a := float64(base[k] + o1[k])
		b := float64(base[k] + o2[k])
		grid[k] = a + t*(b-a)
	}

	pos := r3.Vec{
		X: ex.vol.Origin[0] + grid[0]*float64(ex.stride)*ex.vol.Spacing[0],
		Y: ex.vol.Origin[1] + grid[1]*float64(ex.stride)*ex.vol.Spacing[1],
		Z: ex.vol.Origin[2] + grid[2]*float64(ex.stride)*ex.vol.Spacing[2],
	}

	g1 := ex.gradient(gx+o1[0], gy+o1[1], gz+o1[2])
	g2 := ex.gradient(gx+o2[0], gy+o2[1], gz+o2[2])
	// The scalar field grows toward dense tissue, so the outward normal is
	// the negated gradient.
	normal := r3.Scale(-1, r3.Add(g1, r3.Scale(t, r3.Sub(g2, g1))))
	if n := r3.Norm(normal); n > 0 {
		normal = r3.Scale(1/n, normal)
	}

	idx := uint32(ex.out.VertexCount())
	ex.out.Vertices = append(ex.out.Vertices, float32(pos.X), float32(pos.Y), float32(pos.Z))
	ex.out.Normals = append(ex.out.Normals, float32(normal.X), float32(normal.Y), float32(normal.Z))
	ex.cache[key] = idx
	return idx
}

// edgeKey encodes an edge's lower sample-grid corner and axis into one value.
func (ex *extraction) edgeKey(gx, gy, gz, axis int) uint64 {
	linear := uint64((gz*ex.ny+gy)*ex.nx + gx)
	return linear*3 + uint64(axis)
}

// gradient estimates the HU gradient at a sample-grid point with central
// differences, falling back to one-sided differences at the volume border.
// The result is in HU per millimetre.
func (ex *extraction) gradient(gx, gy, gz int) r3.Vec {
	x, y, z := gx*ex.stride, gy*ex.stride, gz*ex.stride
	return r3.Vec{
		X: ex.axisDiff(x, y, z, 0),
		Y: ex.axisDiff(x, y, z, 1),
		Z: ex.axisDiff(x, y, z, 2),
	}
}

func (ex *extraction) axisDiff(x, y, z, axis int) float64 {
	dims := [3]int{ex.vol.Columns, ex.vol.Rows, ex.vol.Slices}
	coord := [3]int{x, y, z}

	lo, hi := coord, coord
	if coord[axis] > 0 {
		lo[axis]--
	}
	if coord[axis] < dims[axis]-1 {
		hi[axis]++
	}
	span := float64(hi[axis]-lo[axis]) * ex.vol.Spacing[axis]
	if span == 0 {
		return 0
	}
	vLo := float64(ex.vol.At(lo[0], lo[1], lo[2]))
	vHi := float64(ex.vol.At(hi[0], hi[1], hi[2]))
	return (vHi - vLo) / span
}
