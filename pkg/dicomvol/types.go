// Package dicomvol loads a directory of DICOM CT/CBCT slice files into a
// calibrated Hounsfield-unit volume. It handles the unreliable parts of real
// scanner output: partial or missing geometry metadata, mixed foreign files in
// the study directory, compressed transfer syntaxes and truncated pixel frames.
package dicomvol

import (
	"errors"
	"math"
)

// Fatal load errors. Anything else that goes wrong with an individual slice is
// absorbed: unparsable files are skipped during the scan and undecodable pixel
// frames are filled with the air sentinel during volume assembly.
var (
	ErrNoFilesFound     = errors.New("no candidate slice files found")
	ErrNoValidSlices    = errors.New("no parseable DICOM slices found")
	ErrInconsistentDims = errors.New("inconsistent slice dimensions within series")
	ErrUnsupportedDepth = errors.New("unsupported pixel bit depth")
)

// AirHU is the Hounsfield value used to fill voxels whose samples could not be
// decoded (failed transcode, truncated frame).
const AirHU int16 = -1000

// SliceRecord holds the per-file metadata gathered during the catalog scan.
// Records are transient: they exist to order the series and resolve spacing,
// and are discarded once the DicomVolume is built.
type SliceRecord struct {
	Path      string
	SeriesUID string

	InstanceNumber int

	// SliceLocation is NaN when the tag is absent.
	SliceLocation float64

	// Position is ImagePositionPatient; valid only when HasPosition is set.
	Position    [3]float64
	HasPosition bool

	// Orientation is ImageOrientationPatient (row cosines then column
	// cosines); valid only when HasOrientation is set.
	Orientation    [6]float64
	HasOrientation bool

	// GeometryKey is the projection of Position onto the slice normal,
	// or NaN when the geometry metadata is missing or degenerate.
	GeometryKey float64

	// PixelSpacing is (row spacing, column spacing) in mm, as stored in DICOM.
	PixelSpacing         [2]float64
	SliceThickness       float64
	SpacingBetweenSlices float64

	Rows    int
	Columns int
}

// HasGeometryKey reports whether the record carries a usable geometry sort key.
func (r *SliceRecord) HasGeometryKey() bool {
	return !math.IsNaN(r.GeometryKey)
}

// HasLocation reports whether the record carries a SliceLocation value.
func (r *SliceRecord) HasLocation() bool {
	return !math.IsNaN(r.SliceLocation)
}

// Metadata is the representative study metadata taken from the first slice in
// sorted order.
type Metadata struct {
	PatientName       string
	StudyDate         string
	Modality          string
	SeriesDescription string
	SeriesUID         string

	// PixelSpacing is (row spacing, column spacing) in mm.
	PixelSpacing   [2]float64
	SliceThickness float64
	Rows           int
	Columns        int
}

// DicomVolume describes a loaded series: the slice files in ascending
// anatomical order plus the resolved geometry. It is immutable once built and
// may be shared freely across goroutines.
type DicomVolume struct {
	// SliceFiles lists the series files in ascending anatomical order.
	SliceFiles []string

	// Spacing is the voxel spacing (x, y, z) in mm.
	Spacing [3]float64

	// Origin is the patient-space position of the first sorted slice in mm.
	Origin [3]float64

	Meta Metadata
}

// VolumeData is the dense Hounsfield-unit buffer assembled from a DicomVolume.
// Data is indexed z*Rows*Columns + y*Columns + x. It is immutable once built;
// concurrent extractions may read it without locking.
type VolumeData struct {
	Data []int16

	Columns int
	Rows    int
	Slices  int

	// Spacing is the voxel spacing (x, y, z) in mm.
	Spacing [3]float64

	// Origin is the patient-space position of voxel (0,0,0) in mm.
	Origin [3]float64
}

// At returns the HU value at voxel (x, y, z). Bounds are the caller's problem.
func (v *VolumeData) At(x, y, z int) int16 {
	return v.Data[z*v.Rows*v.Columns+y*v.Columns+x]
}
