// Package annotate - Draws detections onto frames and writes them to disk.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// Thickness of the box outline in pixels.
	Thickness = 2
	// TextOffset is the gap between the label baseline and the box top.
	TextOffset = 5
	// FontScale of the label text.
	FontScale = 0.5
	// Extension of saved frames.
	Extension = ".jpeg"
)

// BoxColor is the outline and text colour; (B,G,R) = (0,0,200) in OpenCV
// terms, a dark red.
var BoxColor = color.RGBA{R: 200, G: 0, B: 0, A: 0}

// Label formats the caption drawn above a detection.
func Label(d postprocess.Detection) string {
	return fmt.Sprintf("%s: %.4f", d.Label, d.Confidence)
}

// Draw outlines every detection and writes its caption above the box.
//
// Arguments:
//   - img: The frame to draw on, modified in place.
//   - detections: The detections in frame pixel coordinates.
func Draw(img *gocv.Mat, detections []postprocess.Detection) {
	for _, d := range detections {
		r := d.Box.ToRectangle()
		gocv.Rectangle(img, r, BoxColor, Thickness)
		gocv.PutText(img, Label(d), image.Pt(r.Min.X, r.Min.Y-TextOffset), gocv.FontHersheySimplex, FontScale, BoxColor, Thickness)
	}
}

// Path returns the file an annotated frame named name is saved to.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Extension)
}

// Save writes img as <dir>/<name>.jpeg, creating dir when missing.
//
// Arguments:
//   - dir: The output directory.
//   - name: The file name without extension.
//   - img: The frame to encode.
//
// Returns:
//   - string: The written path.
//   - error: If the directory cannot be created or the frame not written.
func Save(dir, name string, img gocv.Mat) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating %s", dir)
	}
	path := Path(dir, name)
	if !gocv.IMWrite(path, img) {
		return "", errors.Errorf("writing %s", path)
	}
	return path, nil
}

// Encode returns img as JPEG bytes.
func Encode(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(err, "encoding jpeg")
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
