package leafscan

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"github.com/agrisense/farm-advisor/internal/errors"
)

// Input geometry of the leaf classifier.
const (
	InputWidth    = 200
	InputHeight   = 200
	InputChannels = 3
)

// Tensor is a single NHWC image batch with values in [0, 1].
type Tensor []float32

// Shape returns the batch, height, width and channel dimensions.
func (t Tensor) Shape() [4]int {
	return [4]int{1, InputHeight, InputWidth, InputChannels}
}

// InputShape is the tensor shape the classifier must accept.
func InputShape() []int {
	s := Tensor(nil).Shape()
	return s[:]
}

// Decode reads a JPEG, PNG, GIF, BMP or TIFF image and applies its EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(err).
			Component("leafscan").
			Category(errors.CategoryImageDecode).
			Context("size_bytes", len(data)).
			Build()
	}
	return img, nil
}

// Preprocess converts img to RGB, resizes it bicubically to 200x200 and scales
// every channel from [0, 255] to [0, 1]. Alpha is discarded before resizing,
// so transparent pixels keep their stored colour instead of turning black.
func Preprocess(img image.Image) Tensor {
	resized := imaging.Resize(opaque(img), InputWidth, InputHeight, imaging.CatmullRom)

	t := make(Tensor, InputHeight*InputWidth*InputChannels)
	i := 0
	for y := range InputHeight {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+InputWidth*4]
		for x := range InputWidth {
			px := row[x*4 : x*4+3]
			t[i] = float32(px[0]) / 255
			t[i+1] = float32(px[1]) / 255
			t[i+2] = float32(px[2]) / 255
			i += InputChannels
		}
	}
	return t
}

// opaque returns a non-premultiplied copy of img with every alpha set to 255.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
