package dicomvol

import "sort"

// ComputeSpacingZ resolves the inter-slice spacing for a series. Rules are
// tried in order and the first that applies wins:
//
//  1. With at least two geometry keys, the median of the positive gaps
//     between adjacent sorted keys. Non-positive gaps (duplicate or
//     mis-ordered slices) are discarded before taking the median.
//  2. The first strictly positive SpacingBetweenSlices value in the series.
//  3. The first strictly positive SliceThickness value.
//  4. 1.0 mm.
func ComputeSpacingZ(records []*SliceRecord) float64 {
	var keys []float64
	for _, r := range records {
		if r.HasGeometryKey() {
			keys = append(keys, r.GeometryKey)
		}
	}
	if len(keys) >= 2 {
		sort.Float64s(keys)
		var gaps []float64
		for i := 1; i < len(keys); i++ {
			if gap := keys[i] - keys[i-1]; gap > 0 {
				gaps = append(gaps, gap)
			}
		}
		if len(gaps) > 0 {
			return median(gaps)
		}
	}
	for _, r := range records {
		if r.SpacingBetweenSlices > 0 {
			return r.SpacingBetweenSlices
		}
	}
	for _, r := range records {
		if r.SliceThickness > 0 {
			return r.SliceThickness
		}
	}
	return 1.0
}

// median returns the middle value of values, averaging the two central values
// for even counts. The input is sorted in place.
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
