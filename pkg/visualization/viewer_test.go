package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicomto3d/pkg/dicomvol"
)

// rampVolume is a 4x3x2 volume whose HU value equals its linear index times
// 100 minus 500, spanning the test window.
func rampVolume() *dicomvol.VolumeData {
	v := &dicomvol.VolumeData{
		Data:    make([]int16, 4*3*2),
		Columns: 4,
		Rows:    3,
		Slices:  2,
		Spacing: [3]float64{1, 1, 1},
	}
	for i := range v.Data {
		v.Data[i] = int16(i*100 - 500)
	}
	return v
}

func TestExtractSliceDimensions(t *testing.T) {
	viewer := NewViewer(rampVolume(), 0, 1000)

	axial, err := viewer.ExtractSlice("z", 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), axial.Bounds())

	coronal, err := viewer.ExtractSlice("y", 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), coronal.Bounds())

	sagittal, err := viewer.ExtractSlice("x", 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 3), sagittal.Bounds())
}

func TestExtractSliceWindowing(t *testing.T) {
	viewer := NewViewer(rampVolume(), 0, 1000)

	img, err := viewer.ExtractSlice("z", 0)
	require.NoError(t, err)
	gray := img.(*image.Gray)

	// Voxel (0,0,0) holds -500 HU, the window floor.
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	// Voxel (3,2,0) holds 600 HU, above the window ceiling.
	assert.Equal(t, uint8(255), gray.GrayAt(3, 2).Y)
	// Voxel (1,1,0) holds 0 HU, the window center.
	assert.Equal(t, uint8(127), gray.GrayAt(1, 1).Y)
}

func TestExtractSliceOutOfRange(t *testing.T) {
	viewer := NewViewer(rampVolume(), 0, 1000)

	_, err := viewer.ExtractSlice("z", 2)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("x", -1)
	assert.Error(t, err)
	_, err = viewer.ExtractSlice("w", 0)
	assert.Error(t, err)
}

func TestSaveSliceSequence(t *testing.T) {
	viewer := NewViewer(rampVolume(), 0, 1000)
	dir := t.TempDir()

	require.NoError(t, viewer.SaveSliceSequence("z", dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "slice_z_000.jpg", entries[0].Name())
	assert.Equal(t, "slice_z_001.jpg", entries[1].Name())

	info, err := os.Stat(filepath.Join(dir, "slice_z_000.jpg"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSaveSliceSequenceInvalidAxis(t *testing.T) {
	viewer := NewViewer(rampVolume(), 0, 1000)
	assert.Error(t, viewer.SaveSliceSequence("q", t.TempDir()))
}
