package dicomvol

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// LoadVolume scans dir for DICOM slice files, selects the dominant series and
// returns it in ascending anatomical order with resolved spacing and origin.
//
// Only headers are parsed here; pixel data is skipped for speed. Files that
// fail to parse are silently ignored so that stray non-DICOM files in the
// study directory cannot abort the load. Cancellation is observed once per
// file and aborts with no partial result.
func LoadVolume(ctx context.Context, dir string) (*DicomVolume, error) {
	candidates, err := findCandidates(dir)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFilesFound, dir)
	}

	var records []*SliceRecord
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := parseSliceHeader(path)
		if err != nil {
			// Foreign or partial file; skip it.
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoValidSlices, dir)
	}

	series := dominantSeries(records)
	sortSlices(series)

	return assembleVolume(series), nil
}

// findCandidates enumerates slice files by the .dcm suffix, falling back to
// extensionless files for exports that name slices IM000001 style.
// The result is sorted so the scan order never depends on directory iteration.
func findCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading study directory: %w", err)
	}

	var withExt, bare []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch ext := strings.ToLower(filepath.Ext(name)); ext {
		case ".dcm":
			withExt = append(withExt, filepath.Join(dir, name))
		case "":
			bare = append(bare, filepath.Join(dir, name))
		}
	}

	candidates := withExt
	if len(candidates) == 0 {
		candidates = bare
	}
	sort.Strings(candidates)
	return candidates, nil
}

// parseSliceHeader reads the metadata of a single file into a SliceRecord.
func parseSliceHeader(path string) (*SliceRecord, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}

	rec := &SliceRecord{
		Path:          path,
		SliceLocation: math.NaN(),
		GeometryKey:   math.NaN(),
	}

	rec.SeriesUID, _ = firstString(&ds, tag.SeriesInstanceUID)
	rec.InstanceNumber, _ = firstInt(&ds, tag.InstanceNumber)
	if loc, ok := firstFloat(&ds, tag.SliceLocation); ok {
		rec.SliceLocation = loc
	}
	if pos, ok := floatsExact(&ds, tag.ImagePositionPatient, 3); ok {
		copy(rec.Position[:], pos)
		rec.HasPosition = true
	}
	if orient, ok := floatsExact(&ds, tag.ImageOrientationPatient, 6); ok {
		copy(rec.Orientation[:], orient)
		rec.HasOrientation = true
	}
	if spacing, ok := floatsExact(&ds, tag.PixelSpacing, 2); ok {
		copy(rec.PixelSpacing[:], spacing)
	}
	rec.SliceThickness, _ = firstFloat(&ds, tag.SliceThickness)
	rec.SpacingBetweenSlices, _ = firstFloat(&ds, tag.SpacingBetweenSlices)
	rec.Rows, _ = firstInt(&ds, tag.Rows)
	rec.Columns, _ = firstInt(&ds, tag.Columns)

	rec.GeometryKey = geometryKey(rec)
	return rec, nil
}

// dominantSeries groups records by series UID and returns the largest group.
// Equal-count groups resolve to the lexicographically smallest UID so the
// choice does not depend on scan order.
func dominantSeries(records []*SliceRecord) []*SliceRecord {
	groups := make(map[string][]*SliceRecord)
	for _, r := range records {
		groups[r.SeriesUID] = append(groups[r.SeriesUID], r)
	}

	var bestUID string
	first := true
	for uid, group := range groups {
		if first || len(group) > len(groups[bestUID]) ||
			(len(group) == len(groups[bestUID]) && uid < bestUID) {
			bestUID = uid
			first = false
		}
	}
	return groups[bestUID]
}

// assembleVolume builds the immutable DicomVolume from sorted records.
func assembleVolume(series []*SliceRecord) *DicomVolume {
	first := series[0]

	vol := &DicomVolume{
		SliceFiles: make([]string, len(series)),
		// PixelSpacing is (row, column) in DICOM, so column spacing is
		// the x step and row spacing the y step.
		Spacing: [3]float64{
			first.PixelSpacing[1],
			first.PixelSpacing[0],
			ComputeSpacingZ(series),
		},
		Meta: Metadata{
			SeriesUID:      first.SeriesUID,
			PixelSpacing:   first.PixelSpacing,
			SliceThickness: first.SliceThickness,
			Rows:           first.Rows,
			Columns:        first.Columns,
		},
	}
	for i, r := range series {
		vol.SliceFiles[i] = r.Path
	}
	if first.HasPosition {
		vol.Origin = first.Position
	}

	// Descriptive tags are cosmetic; read them from the first sorted file
	// and tolerate their absence.
	if ds, err := dicom.ParseFile(first.Path, nil, dicom.SkipPixelData()); err == nil {
		vol.Meta.PatientName, _ = firstString(&ds, tag.PatientName)
		vol.Meta.StudyDate, _ = firstString(&ds, tag.StudyDate)
		vol.Meta.Modality, _ = firstString(&ds, tag.Modality)
		vol.Meta.SeriesDescription, _ = firstString(&ds, tag.SeriesDescription)
	}
	return vol
}

// Tag value helpers. suyashkumar/dicom keeps IS/DS values as strings and
// US/UL values as ints, so each helper accepts both shapes.

func firstString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	if vals, ok := e.Value.GetValue().([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0]), true
	}
	return "", false
}

func firstInt(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	switch vals := e.Value.GetValue().(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0], true
		}
	case []string:
		if len(vals) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(vals[0])); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func firstFloat(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	vals, ok := floatsAtLeast(ds, t, 1)
	if !ok {
		return 0, false
	}
	return vals[0], true
}

// floatsExact returns the tag's values when exactly n are present; fewer
// components than required means the tag is unusable.
func floatsExact(ds *dicom.Dataset, t tag.Tag, n int) ([]float64, bool) {
	vals, ok := floatsAtLeast(ds, t, n)
	if !ok {
		return nil, false
	}
	return vals[:n], true
}

func floatsAtLeast(ds *dicom.Dataset, t tag.Tag, n int) ([]float64, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, false
	}
	var out []float64
	switch vals := e.Value.GetValue().(type) {
	case []float64:
		out = vals
	case []string:
		for _, s := range vals {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, false
			}
			out = append(out, f)
		}
	case []int:
		for _, v := range vals {
			out = append(out, float64(v))
		}
	default:
		return nil, false
	}
	if len(out) < n {
		return nil, false
	}
	return out, true
}
