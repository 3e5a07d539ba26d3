package dicomvol

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Uncompressed transfer syntaxes whose pixel data can be decoded straight
// from the raw element bytes.
const (
	tsImplicitLittle = "1.2.840.10008.1.2"
	tsExplicitLittle = "1.2.840.10008.1.2.1"
	tsDeflatedLittle = "1.2.840.10008.1.2.1.99"
	tsExplicitBig    = "1.2.840.10008.1.2.2"
)

func isNativeSyntax(uid string) bool {
	switch uid {
	case tsImplicitLittle, tsExplicitLittle, tsDeflatedLittle, tsExplicitBig:
		return true
	}
	return false
}

func nativeByteOrder(uid string) binary.ByteOrder {
	if uid == tsExplicitBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// BuildVolumeData decodes the pixel data of every slice in vol, in sorted
// order, into a dense Hounsfield-unit buffer.
//
// A slice whose frame cannot be decoded or transcoded is filled with the air
// sentinel rather than failing the whole volume; a single bad slice must not
// invalidate an otherwise usable series. Truncated frames degrade the same
// way at sample granularity. Inconsistent slice dimensions and bit depths
// other than 8 or 16 are fatal.
//
// progress, when non-nil, is called once per completed slice with
// (done, total). Cancellation is checked once per slice and aborts with no
// partial result.
func BuildVolumeData(ctx context.Context, vol *DicomVolume, progress func(done, total int)) (*VolumeData, error) {
	rows, cols := vol.Meta.Rows, vol.Meta.Columns
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: series reports %dx%d pixel grid", ErrInconsistentDims, rows, cols)
	}

	total := len(vol.SliceFiles)
	data := make([]int16, rows*cols*total)

	for z, path := range vol.SliceFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := data[z*rows*cols : (z+1)*rows*cols]
		if err := fillSlice(dst, path, rows, cols); err != nil {
			return nil, fmt.Errorf("slice %s: %w", path, err)
		}
		if progress != nil {
			progress(z+1, total)
		}
	}

	return &VolumeData{
		Data:    data,
		Columns: cols,
		Rows:    rows,
		Slices:  total,
		Spacing: vol.Spacing,
		Origin:  vol.Origin,
	}, nil
}

// fillSlice decodes one slice file into dst. Recoverable per-slice problems
// leave dst filled with the air sentinel and return nil; only taxonomy-level
// format errors (dimensions, bit depth) are returned.
func fillSlice(dst []int16, path string, rows, cols int) error {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipProcessingPixelDataValue())
	if err != nil {
		fillAir(dst)
		return nil
	}

	r, _ := firstInt(&ds, tag.Rows)
	c, _ := firstInt(&ds, tag.Columns)
	if r != rows || c != cols {
		return fmt.Errorf("%w: got %dx%d, series is %dx%d", ErrInconsistentDims, r, c, rows, cols)
	}

	bits, ok := firstInt(&ds, tag.BitsAllocated)
	if !ok {
		bits = 16
	}
	if bits != 8 && bits != 16 {
		return fmt.Errorf("%w: %d bits allocated", ErrUnsupportedDepth, bits)
	}

	rep, _ := firstInt(&ds, tag.PixelRepresentation)
	signed := rep == 1

	slope := 1.0
	if s, ok := firstFloat(&ds, tag.RescaleSlope); ok {
		slope = s
	}
	intercept := 0.0
	if i, ok := firstFloat(&ds, tag.RescaleIntercept); ok {
		intercept = i
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		fillAir(dst)
		return nil
	}
	info := dicom.MustGetPixelDataInfo(elem.Value)

	tsUID, _ := firstString(&ds, tag.TransferSyntaxUID)
	if isNativeSyntax(tsUID) && len(info.UnprocessedValueData) > 0 {
		decodeNative(dst, info.UnprocessedValueData, bits, signed, nativeByteOrder(tsUID), slope, intercept)
		return nil
	}

	// Compressed or encapsulated syntax: transcode through the library's
	// frame decoder. A failed transcode degrades this slice to air.
	if err := transcodeSlice(dst, path, cols, slope, intercept); err != nil {
		fillAir(dst)
	}
	return nil
}

// decodeNative converts raw uncompressed pixel bytes to HU. A sample whose
// byte offset falls past the end of the frame (truncated or malformed file)
// becomes air; a handful of bad samples must not fail the slice.
func decodeNative(dst []int16, raw []byte, bits int, signed bool, order binary.ByteOrder, slope, intercept float64) {
	bytesPer := bits / 8
	for i := range dst {
		off := i * bytesPer
		if off+bytesPer > len(raw) {
			dst[i] = AirHU
			continue
		}
		var sample int
		if bits == 8 {
			if signed {
				sample = int(int8(raw[off]))
			} else {
				sample = int(raw[off])
			}
		} else {
			u := order.Uint16(raw[off:])
			if signed {
				sample = int(int16(u))
			} else {
				sample = int(u)
			}
		}
		dst[i] = RescaleHU(sample, slope, intercept)
	}
}

// transcodeSlice re-parses the file letting the library decode the
// encapsulated frame to an uncompressed reference form, then rescales the
// recovered samples.
func transcodeSlice(dst []int16, path string, cols int, slope, intercept float64) error {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return err
	}
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return err
	}
	info := dicom.MustGetPixelDataInfo(elem.Value)
	if len(info.Frames) == 0 {
		return fmt.Errorf("pixel data holds no frames")
	}
	f := info.Frames[0]

	if !f.IsEncapsulated() {
		native, err := f.GetNativeFrame()
		if err != nil {
			return err
		}
		copyNativeFrame(dst, native, slope, intercept)
		return nil
	}

	img, err := f.GetImage()
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	for i := range dst {
		x := bounds.Min.X + i%cols
		y := bounds.Min.Y + i/cols
		if x >= bounds.Max.X || y >= bounds.Max.Y {
			dst[i] = AirHU
			continue
		}
		// Decoded frames are 8-bit; RGBA scales to 16 bits.
		luma, _, _, _ := img.At(x, y).RGBA()
		dst[i] = RescaleHU(int(luma>>8), slope, intercept)
	}
	return nil
}

func copyNativeFrame(dst []int16, native *frame.NativeFrame, slope, intercept float64) {
	for i := range dst {
		if i >= len(native.Data) || len(native.Data[i]) == 0 {
			dst[i] = AirHU
			continue
		}
		dst[i] = RescaleHU(native.Data[i][0], slope, intercept)
	}
}

func fillAir(dst []int16) {
	for i := range dst {
		dst[i] = AirHU
	}
}
