// Package visualization exports 2D slice images from a loaded HU volume so a
// study can be eyeballed without the full rendering layer.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"dicomto3d/pkg/dicomvol"
)

// Viewer extracts windowed 2D slices from a Hounsfield-unit volume.
type Viewer struct {
	vol *dicomvol.VolumeData

	// windowCenter and windowWidth map HU to display gray levels.
	windowCenter float64
	windowWidth  float64
}

// NewViewer creates a viewer over vol with the given display window. A bone
// window is roughly center 300 / width 1500; soft tissue center 40 / width 400.
func NewViewer(vol *dicomvol.VolumeData, windowCenter, windowWidth float64) *Viewer {
	if windowWidth <= 0 {
		windowWidth = 1
	}
	return &Viewer{vol: vol, windowCenter: windowCenter, windowWidth: windowWidth}
}

// window maps an HU value into an 8-bit gray level through the viewer's
// window/level transform.
func (v *Viewer) window(hu int16) uint8 {
	lo := v.windowCenter - v.windowWidth/2
	t := (float64(hu) - lo) / v.windowWidth
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return uint8(t * 255)
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		// Sagittal: YZ plane.
		if position >= v.vol.Columns {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.vol.Columns)
		}
		img = image.NewGray(image.Rect(0, 0, v.vol.Slices, v.vol.Rows))
		for y := 0; y < v.vol.Rows; y++ {
			for z := 0; z < v.vol.Slices; z++ {
				img.SetGray(z, y, color.Gray{Y: v.window(v.vol.At(position, y, z))})
			}
		}

	case "y", "Y":
		// Coronal: XZ plane.
		if position >= v.vol.Rows {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.vol.Rows)
		}
		img = image.NewGray(image.Rect(0, 0, v.vol.Columns, v.vol.Slices))
		for z := 0; z < v.vol.Slices; z++ {
			for x := 0; x < v.vol.Columns; x++ {
				img.SetGray(x, z, color.Gray{Y: v.window(v.vol.At(x, position, z))})
			}
		}

	case "z", "Z":
		// Axial: XY plane.
		if position >= v.vol.Slices {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.vol.Slices)
		}
		img = image.NewGray(image.Rect(0, 0, v.vol.Columns, v.vol.Rows))
		for y := 0; y < v.vol.Rows; y++ {
			for x := 0; x < v.vol.Columns; x++ {
				img.SetGray(x, y, color.Gray{Y: v.window(v.vol.At(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Columns
	case "y", "Y":
		maxPos = v.vol.Rows
	case "z", "Z":
		maxPos = v.vol.Slices
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
