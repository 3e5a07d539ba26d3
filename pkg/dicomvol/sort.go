package dicomvol

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateNormal is the cross-product magnitude below which an orientation
// is treated as unusable for sorting.
const degenerateNormal = 1e-10

// geometryKey projects the slice position onto the normal of the slice plane.
// Slices of a well-formed series share one orientation, so the projection
// orders them along the scan axis regardless of how the axis is tilted.
// Returns NaN when orientation or position is missing or the direction
// cosines are degenerate.
func geometryKey(r *SliceRecord) float64 {
	if !r.HasPosition || !r.HasOrientation {
		return math.NaN()
	}
	row := r3.Vec{X: r.Orientation[0], Y: r.Orientation[1], Z: r.Orientation[2]}
	col := r3.Vec{X: r.Orientation[3], Y: r.Orientation[4], Z: r.Orientation[5]}
	normal := r3.Cross(row, col)
	if r3.Norm(normal) < degenerateNormal {
		return math.NaN()
	}
	pos := r3.Vec{X: r.Position[0], Y: r.Position[1], Z: r.Position[2]}
	return r3.Dot(r3.Unit(normal), pos)
}

// CompareSlices orders two slice records:
//
//  1. by geometry key, when both records have one;
//  2. else by SliceLocation, when both records have one (a record with a
//     geometry key facing one without falls through to this rule too);
//  3. else by InstanceNumber;
//  4. ties broken by file path.
//
// The result is a strict weak ordering, so repeated loads of the same
// directory produce the same slice order.
func CompareSlices(a, b *SliceRecord) int {
	if a.HasGeometryKey() && b.HasGeometryKey() {
		if a.GeometryKey != b.GeometryKey {
			return compareFloat(a.GeometryKey, b.GeometryKey)
		}
	} else if a.HasLocation() && b.HasLocation() {
		if a.SliceLocation != b.SliceLocation {
			return compareFloat(a.SliceLocation, b.SliceLocation)
		}
	} else if a.InstanceNumber != b.InstanceNumber {
		if a.InstanceNumber < b.InstanceNumber {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Path, b.Path)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// sortSlices orders records into ascending anatomical order.
func sortSlices(records []*SliceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return CompareSlices(records[i], records[j]) < 0
	})
}
