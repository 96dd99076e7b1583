package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PrepareInput stretches img to size×size and writes it into dst as planar
// RGB (CHW) scaled to [0, 1], matching the DNN blob the Darknet backend
// feeds to OpenCV.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The square network input edge.
//   - dst: The destination buffer, at least 3*size*size floats.
//
// Returns:
//   - error: If dst is too small.
func PrepareInput(img image.Image, size int, dst []float32) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
		b = img.Bounds()
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
