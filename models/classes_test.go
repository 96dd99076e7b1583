package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinClassSets(t *testing.T) {
	assert.Equal(t, 80, YOLOClasses.Len())
	assert.Equal(t, "person", YOLOClasses.Name(0))
	assert.Equal(t, "toothbrush", YOLOClasses.Name(79))

	assert.Equal(t, 81, COCOClasses.Len())
	assert.Equal(t, "__background__", COCOClasses.Name(0))
	assert.Equal(t, "person", COCOClasses.Name(1))

	idx, ok := PascalVOCClasses.Index("person")
	require.True(t, ok)
	assert.Equal(t, 15, idx)
}

func TestOutputClassSet_Lookup(t *testing.T) {
	set := NewOutputClassSet(ModelFamilyCustom, []string{"person", "car", "person"})

	assert.Equal(t, "", set.Name(-1))
	assert.Equal(t, "", set.Name(3))
	assert.Equal(t, []string{"person", "car", "person"}, set.Names())

	idx, ok := set.Index("person")
	require.True(t, ok)
	assert.Equal(t, 0, idx, "repeated names resolve to the first index")

	_, ok = set.Index("dog")
	assert.False(t, ok)
}

func TestOutputClassSet_IndexWithoutMap(t *testing.T) {
	set := &OutputClassSet{Classes: []OutputClass{{0, "cat"}, {1, "person"}}}

	idx, ok := set.Index("person")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = set.Index("dog")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestLoadLabels(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
		err      error
	}{
		{
			name:     "unix newlines",
			input:    "person\nbicycle\ncar\n",
			expected: []string{"person", "bicycle", "car"},
		},
		{
			name:     "windows newlines",
			input:    "person\r\nbicycle\r\n",
			expected: []string{"person", "bicycle"},
		},
		{
			name:     "trailing blank lines",
			input:    "person\ncar\n\n\n",
			expected: []string{"person", "car"},
		},
		{
			name:     "no trailing newline",
			input:    "person\ncar",
			expected: []string{"person", "car"},
		},
		{
			name:  "empty",
			input: "\n\n",
			err:   ErrEmptyLabels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := LoadLabels(strings.NewReader(tt.input))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ModelFamilyCustom, set.Style)
			assert.Equal(t, tt.expected, set.Names())
		})
	}
}

func TestLoadLabelsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coco.names")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(YOLOClasses.Names(), "\n")+"\n"), 0o644))

	set, err := LoadLabelsFile(path)
	require.NoError(t, err)
	assert.Equal(t, YOLOClasses.Names(), set.Names())

	_, err = LoadLabelsFile(filepath.Join(dir, "missing.names"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestClassManager(t *testing.T) {
	mgr := DefaultClassManager()

	name, err := mgr.GetName(ModelFamilyYOLO, 0)
	require.NoError(t, err)
	assert.Equal(t, "person", name)

	idx, err := mgr.GetIndex(ModelFamilyCOCO, "person")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = mgr.GetName(ModelFamilyYOLO, 80)
	assert.Error(t, err)

	_, err = mgr.GetIndex(ModelFamilyVOC, "giraffe")
	assert.Error(t, err)

	_, err = mgr.Get(ModelFamilyCustom)
	assert.Error(t, err)
}
