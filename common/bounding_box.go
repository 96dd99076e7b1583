// Package common - Pixel-space bounding boxes decoded from normalized network output.
package common

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-person-detector/images"
)

// Point is a pair of normalized floats, used for box centers and sizes.
type Point struct {
	X, Y float32
}

// BoundingBox is a pixel-space rectangle derived from a normalized center and
// size. All fields are truncated toward zero, and the value is immutable once
// built by NewBoundingBox.
type BoundingBox struct {
	Width   int `json:"width" yaml:"width"`
	Height  int `json:"height" yaml:"height"`
	CenterX int `json:"center_x" yaml:"center_x"`
	CenterY int `json:"center_y" yaml:"center_y"`
	XStart  int `json:"x_start" yaml:"x_start"`
	XEnd    int `json:"x_end" yaml:"x_end"`
	YStart  int `json:"y_start" yaml:"y_start"`
	YEnd    int `json:"y_end" yaml:"y_end"`
}

// NewBoundingBox converts a normalized center/size pair into pixel coordinates.
//
// Scaling happens in float64 and each field is truncated toward zero. The
// corners are computed from the truncated center and size with a fractional
// half, so an odd width puts the extra half pixel on both sides before
// truncation.
//
// Arguments:
//   - center: The normalized box center, fractions of the image width/height.
//   - size: The normalized box width and height.
//   - imageWidth: The image width in pixels.
//   - imageHeight: The image height in pixels.
//
// Returns:
//   - The pixel-space bounding box.
//
// @example
// box := NewBoundingBox(Point{0.5, 0.5}, Point{0.2, 0.2}, 100, 100)
// // box.Width=20, box.XStart=40, box.XEnd=60
func NewBoundingBox(center, size Point, imageWidth, imageHeight int) BoundingBox {
	b := BoundingBox{
		Width:   scale(size.X, imageWidth),
		Height:  scale(size.Y, imageHeight),
		CenterX: scale(center.X, imageWidth),
		CenterY: scale(center.Y, imageHeight),
	}

	halfW := float64(b.Width) / 2
	halfH := float64(b.Height) / 2
	b.XStart = int(float64(b.CenterX) - halfW)
	b.XEnd = int(float64(b.CenterX) + halfW)
	b.YStart = int(float64(b.CenterY) - halfH)
	b.YEnd = int(float64(b.CenterY) + halfH)

	return b
}

// scale maps a normalized coordinate onto pixels. The float32 input is widened
// before multiplying so values like 0.29 truncate to 28 on a 100 pixel axis.
func scale(v float32, pixels int) int {
	return int(float64(v) * float64(pixels))
}

// Rect returns the corner rectangle used for overlap calculations.
func (b BoundingBox) Rect() images.Rect {
	return images.Rect{X1: b.XStart, Y1: b.YStart, X2: b.XEnd, Y2: b.YEnd}
}

// ToRectangle converts the box into an image.Rectangle for drawing.
func (b BoundingBox) ToRectangle() image.Rectangle {
	return image.Rect(b.XStart, b.YStart, b.XEnd, b.YEnd)
}

// Area returns the area of the corner rectangle in pixels.
func (b BoundingBox) Area() int {
	return b.Rect().Area()
}

// IoU calculates the Intersection over Union between two bounding boxes.
//
// Arguments:
//   - other: The other bounding box to calculate IoU with.
//
// Returns:
//   - The IoU value between 0 and 1.
func (b BoundingBox) IoU(other BoundingBox) float32 {
	return images.CalculateIoU(b.Rect(), other.Rect())
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d, %d)-(%d, %d) %dx%d", b.XStart, b.YStart, b.XEnd, b.YEnd, b.Width, b.Height)
}
