package dicomvol

import "math"

// RescaleHU converts a raw stored sample to Hounsfield units using the series
// rescale transform:
//
//	hu = clamp(round(raw*slope + intercept), -32768, 32767)
//
// A slope of zero is legal and collapses the result to the intercept.
func RescaleHU(raw int, slope, intercept float64) int16 {
	hu := math.Round(float64(raw)*slope + intercept)
	if hu < math.MinInt16 {
		return math.MinInt16
	}
	if hu > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(hu)
}
