package segmentation

// Preset names a tissue class and the extraction parameters used for it.
// The set of presets in play is fixed when the Segmenter is created; there
// is no runtime discovery of tissue classes.
type Preset struct {
	// Name labels the tissue class ("Bone", "Soft tissue").
	Name string

	// ThresholdHU is the isovalue handed to the extractor.
	ThresholdHU float64

	// PreviewStride is the voxel stride for the fast preview path.
	PreviewStride int

	// SmoothIterations is the Taubin iteration count for the final path.
	SmoothIterations int

	// TriangleBudget caps the final mesh size after decimation.
	TriangleBudget int
}

// DefaultPresets returns the standard bone and soft-tissue extraction
// configurations for CT/CBCT studies.
func DefaultPresets() []Preset {
	return []Preset{
		{
			Name:             "Bone",
			ThresholdHU:      400,
			PreviewStride:    4,
			SmoothIterations: 20,
			TriangleBudget:   300000,
		},
		{
			Name:             "Soft tissue",
			ThresholdHU:      -300,
			PreviewStride:    4,
			SmoothIterations: 20,
			TriangleBudget:   300000,
		},
	}
}
