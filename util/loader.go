// Package util - Filesystem helpers for the detector binaries.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvr-ai/go-person-detector/images"
	"github.com/pkg/errors"
)

// LoadImageFile reads one image file.
//
// Arguments:
//   - path: The image path. The extension selects the format.
//
// Returns:
//   - images.Image: The encoded image, named after the file without extension.
//   - error: If the extension is unsupported or the file cannot be read.
func LoadImageFile(path string) (images.Image, error) {
	format, ok := images.FormatFromPath(path)
	if !ok {
		return images.Image{}, errors.Errorf("unsupported image type %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return images.Image{}, errors.Wrapf(err, "reading %s", path)
	}

	base := filepath.Base(path)
	return images.Image{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Format: format,
		Data:   data,
	}, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []images.Image: The images sorted by file name. Subdirectories and
// non-image files are skipped.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]images.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", dir)
	}

	var out []images.Image
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := images.FormatFromPath(entry.Name()); !ok {
			continue
		}
		img, err := LoadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}
