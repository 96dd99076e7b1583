// Package images - Image definition for processing utilities.
package images

import (
	"path/filepath"
	"strings"
)

// ImageFormat names the encoding of an image file.
type ImageFormat string

const (
	// FormatJPEG covers both the .jpg and .jpeg extensions.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is only recognized by extension; decoding depends on the OpenCV build.
	FormatWebP ImageFormat = "webp"
	FormatPNG  ImageFormat = "png"
	FormatBMP  ImageFormat = "bmp"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The name of the image, usually the file name it was read from.
	Name string `json:"name" yaml:"name"`
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image, 0 until decoded.
	Width int `json:"width" yaml:"width"`
	// The height of the image, 0 until decoded.
	Height int `json:"height" yaml:"height"`
}

// FormatFromPath infers the image format from a file extension.
//
// Arguments:
//   - path: The file path or name.
//
// Returns:
//   - The format and true when the extension is a supported image type.
func FormatFromPath(path string) (ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".bmp":
		return FormatBMP, true
	case ".webp":
		return FormatWebP, true
	default:
		return "", false
	}
}
