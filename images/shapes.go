// Package images - Image and rectangle primitives shared by the detector.
package images

// Rect is a lightweight pixel rectangle.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Dx returns the width of the rectangle.
func (r Rect) Dx() int {
	return r.X2 - r.X1
}

// Dy returns the height of the rectangle.
func (r Rect) Dy() int {
	return r.Y2 - r.Y1
}

// Area returns the area of the rectangle, or 0 when it is empty or inverted.
func (r Rect) Area() int {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return 0
	}
	return r.Dx() * r.Dy()
}

// CalculateIoU returns the Intersection over Union of two rectangles.
//
//	IoU = Area of Intersection / Area of Union
//
// The union uses inclusion-exclusion: Area(A) + Area(B) - Area(A ∩ B).
// Rectangles that only touch, or that have zero area, score 0 unless they
// are the same rectangle, in which case the score is 1.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	if r == o {
		return 1.0
	}

	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	// Cast before dividing, integer division would truncate to 0.
	return float32(interArea) / float32(unionArea)
}
