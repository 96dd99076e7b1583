// Package models - Label sets that map network class indices to names.
package models

// ModelFamily is the family of models, which fixes the label layout.
type ModelFamily string

const (
	// ModelFamilyCOCO is the 80 COCO classes with "__background__" at index 0.
	ModelFamilyCOCO ModelFamily = "coco"
	// ModelFamilyYOLO is the 80 COCO classes, zero-based with no background.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyVOC is the 20 Pascal VOC classes with background.
	ModelFamilyVOC ModelFamily = "voc"
	// ModelFamilyCustom is a label set loaded from a names file.
	ModelFamilyCustom ModelFamily = "custom"
)
