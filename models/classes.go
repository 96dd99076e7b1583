package models

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrEmptyLabels is returned when a names file contains no labels.
var ErrEmptyLabels = errors.New("label set is empty")

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a model family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily
	// Classes ordered by index.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a class set whose indices follow the order of names.
//
// Arguments:
//   - style: The model family the names belong to.
//   - names: Class names ordered by network index.
//
// Returns:
//   - The class set with its name index built.
func NewOutputClassSet(style ModelFamily, names []string) *OutputClassSet {
	set := &OutputClassSet{
		Style:   style,
		Classes: make([]OutputClass, len(names)),
	}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
	}
	set.BuildNameIndexMap()
	return set
}

// BuildNameIndexMap builds or rebuilds the name->index map. When a name is
// repeated the lowest index wins.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		if _, ok := s.nameToIdx[c.Name]; !ok {
			s.nameToIdx[c.Name] = c.Index
		}
	}
}

// Len returns the number of classes, which must match the width of the
// network's class score segment.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Names returns a copy of the class names ordered by index.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// Name returns the class name for an index, or an empty string when the
// index is out of range.
func (s *OutputClassSet) Name(idx int) string {
	if idx < 0 || idx >= len(s.Classes) {
		return ""
	}
	return s.Classes[idx].Name
}

// Index returns the index for a class name.
func (s *OutputClassSet) Index(name string) (int, bool) {
	if s.nameToIdx == nil {
		for _, c := range s.Classes {
			if c.Name == name {
				return c.Index, true
			}
		}
		return -1, false
	}
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, false
	}
	return idx, true
}

// LoadLabels reads newline-delimited class names, one per network index.
// Windows line endings are accepted and trailing blank lines are dropped.
//
// Arguments:
//   - r: The reader holding the names file contents.
//
// Returns:
//   - The class set, styled ModelFamilyCustom.
//   - An error if reading fails or no names are present.
func LoadLabels(r io.Reader) (*OutputClassSet, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		names = append(names, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read labels")
	}

	for len(names) > 0 && strings.TrimSpace(names[len(names)-1]) == "" {
		names = names[:len(names)-1]
	}
	if len(names) == 0 {
		return nil, ErrEmptyLabels
	}

	return NewOutputClassSet(ModelFamilyCustom, names), nil
}

// LoadLabelsFile reads a names file such as coco.names from disk.
func LoadLabelsFile(path string) (*OutputClassSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open labels %s", path)
	}
	defer f.Close()

	set, err := LoadLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load labels %s", path)
	}
	return set, nil
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[ModelFamily]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[ModelFamily]*OutputClassSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		mgr.sets[set.Style] = set
	}
	return mgr
}

// Get returns the class set registered for a style.
func (m *ClassManager) Get(style ModelFamily) (*OutputClassSet, error) {
	set, ok := m.sets[style]
	if !ok {
		return nil, errors.Errorf("style %q not registered", style)
	}
	return set, nil
}

// GetName returns the class name for a given style and index.
func (m *ClassManager) GetName(style ModelFamily, idx int) (string, error) {
	set, err := m.Get(style)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= set.Len() {
		return "", errors.Errorf("index %d out of range for style %q", idx, style)
	}
	return set.Classes[idx].Name, nil
}

// GetIndex returns the class index for a given style and name.
func (m *ClassManager) GetIndex(style ModelFamily, name string) (int, error) {
	set, err := m.Get(style)
	if err != nil {
		return -1, err
	}
	idx, ok := set.Index(name)
	if !ok {
		return -1, errors.Errorf("name %q not found in style %q", name, style)
	}
	return idx, nil
}

// cocoNames are the 80 COCO class names in YOLO output order.
var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// YOLOClasses is the 80 COCO classes (no background).
// Darknet YOLOv3 models index directly into this zero-based list.
var YOLOClasses = NewOutputClassSet(ModelFamilyYOLO, cocoNames)

// COCOClasses is the full 80 COCO classes plus "__background__" at index 0.
var COCOClasses = NewOutputClassSet(ModelFamilyCOCO, append([]string{"__background__"}, cocoNames...))

// PascalVOCClasses is the 20 Pascal VOC classes + "__background__" at index 0.
var PascalVOCClasses = NewOutputClassSet(ModelFamilyVOC, []string{
	"__background__", "aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair",
	"cow", "diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa", "train",
	"tvmonitor",
})

// DefaultClassManager returns a manager with every built-in class set registered.
func DefaultClassManager() *ClassManager {
	return NewClassManager(YOLOClasses, COCOClasses, PascalVOCClasses)
}
