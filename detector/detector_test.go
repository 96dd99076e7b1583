package detector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-person-detector/common"
	"github.com/nvr-ai/go-person-detector/models"
	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var labels = models.NewOutputClassSet(models.ModelFamilyCustom, []string{"person", "bicycle", "car"})

// prediction builds a RawPrediction for a box and class scores.
func prediction(cx, cy, w, h float32, scores ...float32) postprocess.RawPrediction {
	raw := postprocess.RawPrediction{cx, cy, w, h, 1}
	return append(raw, scores...)
}

func TestPipeline_SinglePerson(t *testing.T) {
	p, err := New(DefaultConfig(), labels, zaptest.NewLogger(t))
	require.NoError(t, err)

	outputs := [][]postprocess.RawPrediction{
		{prediction(0.5, 0.5, 0.2, 0.2, 0.8, 0.1, 0.1)},
	}

	detections, err := p.Run(outputs, 100, 100)
	require.NoError(t, err)
	require.Len(t, detections, 1)

	assert.Equal(t, postprocess.Detection{
		Box: common.BoundingBox{
			Width: 20, Height: 20,
			CenterX: 50, CenterY: 50,
			XStart: 40, XEnd: 60,
			YStart: 40, YEnd: 60,
		},
		Confidence: 0.8,
		Class:      0,
		Label:      "person",
	}, detections[0])
}

func TestPipeline_FiltersAndSuppresses(t *testing.T) {
	p, err := New(DefaultConfig(), labels, nil)
	require.NoError(t, err)

	outputs := [][]postprocess.RawPrediction{
		{
			prediction(0.5, 0.5, 0.2, 0.2, 0.7, 0.1, 0.1),   // person
			prediction(0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.95),  // car
			prediction(0.25, 0.25, 0.1, 0.1, 0.4, 0.1, 0.1), // person below threshold
		},
		{
			prediction(0.5, 0.5, 0.2, 0.2, 0.9, 0.1, 0.1),  // duplicate person, higher score
			prediction(0.8, 0.8, 0.1, 0.1, 0.6, 0.1, 0.1),  // separate person
			prediction(0.8, 0.8, 0.1, 0.1, 0.5, 0.1, 0.1),  // exactly at threshold
		},
	}

	detections, err := p.Run(outputs, 100, 100)
	require.NoError(t, err)
	require.Len(t, detections, 2)

	assert.Equal(t, float32(0.9), detections[0].Confidence)
	assert.Equal(t, 50, detections[0].Box.CenterX)
	assert.Equal(t, float32(0.6), detections[1].Confidence)
	assert.Equal(t, 80, detections[1].Box.CenterX)
	for _, d := range detections {
		assert.Equal(t, "person", d.Label)
	}
}

func TestPipeline_ConcurrentDecodeMatchesSequential(t *testing.T) {
	outputs := make([][]postprocess.RawPrediction, 6)
	for i := range outputs {
		for j := 0; j < 20; j++ {
			cx := float32(j%10)/10 + 0.05
			cy := float32(i)/6 + 0.05
			outputs[i] = append(outputs[i], prediction(cx, cy, 0.08, 0.08, float32(j%7)/7+0.1, 0.2, 0.1))
		}
	}

	sequential, err := New(DefaultConfig(), labels, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Workers = 4
	concurrent, err := New(cfg, labels, nil)
	require.NoError(t, err)

	expected, err := sequential.Run(outputs, 640, 480)
	require.NoError(t, err)
	actual, err := concurrent.Run(outputs, 640, 480)
	require.NoError(t, err)

	assert.NotEmpty(t, expected)
	assert.Equal(t, expected, actual)
}

func TestPipeline_Idempotent(t *testing.T) {
	p, err := New(DefaultConfig(), labels, nil)
	require.NoError(t, err)

	outputs := [][]postprocess.RawPrediction{{
		prediction(0.5, 0.5, 0.2, 0.2, 0.8, 0.1, 0.1),
		prediction(0.52, 0.5, 0.2, 0.2, 0.7, 0.1, 0.1),
	}}

	first, err := p.Run(outputs, 320, 240)
	require.NoError(t, err)
	second, err := p.Run(outputs, 320, 240)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPipeline_Empty(t *testing.T) {
	p, err := New(DefaultConfig(), labels, nil)
	require.NoError(t, err)

	for _, outputs := range [][][]postprocess.RawPrediction{nil, {}, {{}}, {{}, {}}} {
		detections, err := p.Run(outputs, 100, 100)
		require.NoError(t, err)
		assert.Empty(t, detections)
	}
}

func TestPipeline_LayoutMismatch(t *testing.T) {
	p, err := New(DefaultConfig(), labels, nil)
	require.NoError(t, err)

	outputs := [][]postprocess.RawPrediction{{prediction(0.5, 0.5, 0.2, 0.2, 0.8, 0.1)}}

	_, err = p.Run(outputs, 100, 100)
	assert.ErrorIs(t, err, postprocess.ErrPredictionLength)
}

func TestNew_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetClass = "giraffe"
	_, err := New(cfg, labels, nil)
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, err = New(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, models.ErrEmptyLabels)

	cfg = DefaultConfig()
	cfg.NMSThreshold = 1.5
	_, err = New(cfg, labels, nil)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero thresholds", func(c *Config) { c.ConfidenceThreshold, c.NMSThreshold = 0, 0 }, true},
		{"negative confidence", func(c *Config) { c.ConfidenceThreshold = -0.1 }, false},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.1 }, false},
		{"nms above one", func(c *Config) { c.NMSThreshold = 2 }, false},
		{"nan confidence", func(c *Config) { c.ConfidenceThreshold = math32.NaN() }, false},
		{"nan nms", func(c *Config) { c.NMSThreshold = math32.NaN() }, false},
		{"empty target", func(c *Config) { c.TargetClass = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestRun(t *testing.T) {
	outputs := [][]postprocess.RawPrediction{
		{prediction(0.5, 0.5, 0.2, 0.2, 0.8, 0.1, 0.1)},
		{prediction(0.5, 0.5, 0.2, 0.2, 0.1, 0.1, 0.9)},
	}

	detections := Run(outputs, 100, 100, 0.5, 0.3, postprocess.TargetClass(labels.Names(), "person"))
	require.Len(t, detections, 1)
	assert.Equal(t, float32(0.8), detections[0].Confidence)
	assert.Equal(t, 40, detections[0].Box.XStart)
	assert.Empty(t, detections[0].Label)

	assert.Empty(t, Run(nil, 100, 100, 0.5, 0.3, postprocess.AnyClass))
}

// BenchmarkPipeline_YOLOv3 runs the three YOLOv3-416 output scales
// (507, 2028 and 8112 anchors) with a sprinkling of people.
func BenchmarkPipeline_YOLOv3(b *testing.B) {
	coco := models.YOLOClasses
	rng := rand.New(rand.NewSource(1))

	var outputs [][]postprocess.RawPrediction
	for _, n := range []int{507, 2028, 8112} {
		out := make([]postprocess.RawPrediction, n)
		for i := range out {
			raw := make(postprocess.RawPrediction, postprocess.ClassOffset+coco.Len())
			raw[0], raw[1] = rng.Float32(), rng.Float32()
			raw[2], raw[3] = rng.Float32()*0.3, rng.Float32()*0.3
			raw[4] = rng.Float32()
			for c := postprocess.ClassOffset; c < len(raw); c++ {
				raw[c] = rng.Float32() * 0.1
			}
			if rng.Intn(50) == 0 {
				raw[postprocess.ClassOffset] = 0.6 + rng.Float32()*0.4
			}
			out[i] = raw
		}
		outputs = append(outputs, out)
	}

	for _, workers := range []int{1, 3} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		p, err := New(cfg, coco, nil)
		require.NoError(b, err)

		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.Run(outputs, 1920, 1080); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
