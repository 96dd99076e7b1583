package detector

import (
	"sync"

	"github.com/nvr-ai/go-person-detector/models"
	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pipeline decodes, filters and suppresses raw detector output for one
// target class. It holds configuration only, so a single Pipeline can be
// shared by concurrent callers.
type Pipeline struct {
	config   Config
	labels   *models.OutputClassSet
	isTarget postprocess.ClassPredicate
	log      *zap.Logger
}

// New creates a pipeline for the configured target class.
//
// Arguments:
//   - config: The pipeline configuration.
//   - labels: The label set matching the network's class scores.
//   - log: The logger, nil for no logging.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: If the configuration is invalid or the target class is unknown.
func New(config Config, labels *models.OutputClassSet, log *zap.Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if labels == nil || labels.Len() == 0 {
		return nil, models.ErrEmptyLabels
	}
	if _, ok := labels.Index(config.TargetClass); !ok {
		return nil, errors.Wrapf(ErrUnknownTarget, "%q", config.TargetClass)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		config:   config,
		labels:   labels,
		isTarget: postprocess.TargetClass(labels.Names(), config.TargetClass),
		log:      log,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// Labels returns the label set used to resolve class names.
func (p *Pipeline) Labels() *models.OutputClassSet {
	return p.labels
}

// Run turns raw output tensors into the final detections.
//
// Every prediction of every output tensor is decoded, filtered by target
// class and confidence, then suppressed. No state survives the call.
//
// Arguments:
//   - outputs: The network output layers, each a list of predictions.
//   - imageWidth: The source image width in pixels.
//   - imageHeight: The source image height in pixels.
//
// Returns:
//   - The detections, highest confidence first, empty when nothing was found.
//   - An error if a prediction does not match the label set.
func (p *Pipeline) Run(outputs [][]postprocess.RawPrediction, imageWidth, imageHeight int) ([]postprocess.Detection, error) {
	records, err := p.decode(outputs, imageWidth, imageHeight)
	if err != nil {
		return nil, err
	}

	candidates := postprocess.Filter(records, p.isTarget, p.config.ConfidenceThreshold)
	kept := postprocess.Suppress(candidates, p.config.ConfidenceThreshold, p.config.NMSThreshold)
	detections := toDetections(kept, p.labels.Name)

	p.log.Debug("detection pipeline finished",
		zap.Int("outputs", len(outputs)),
		zap.Int("predictions", len(records)),
		zap.Int("candidates", len(candidates)),
		zap.Int("detections", len(detections)),
		zap.String("target", p.config.TargetClass),
	)

	return detections, nil
}

// decode decodes every output tensor, concurrently when configured. Records
// keep tensor order, then anchor order, either way.
func (p *Pipeline) decode(outputs [][]postprocess.RawPrediction, imageWidth, imageHeight int) ([]postprocess.DetectionRecord, error) {
	numClasses := p.labels.Len()
	decoded := make([][]postprocess.DetectionRecord, len(outputs))
	errs := make([]error, len(outputs))

	decodeOutput := func(i int) {
		records := make([]postprocess.DetectionRecord, 0, len(outputs[i]))
		for j, raw := range outputs[i] {
			record, err := postprocess.DecodeChecked(raw, numClasses, imageWidth, imageHeight)
			if err != nil {
				errs[i] = errors.Wrapf(err, "output %d prediction %d", i, j)
				return
			}
			records = append(records, record)
		}
		decoded[i] = records
	}

	if p.config.Workers > 1 && len(outputs) > 1 {
		sem := make(chan struct{}, p.config.Workers)
		var wg sync.WaitGroup
		for i := range outputs {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				decodeOutput(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range outputs {
			decodeOutput(i)
		}
	}

	total := 0
	for i := range outputs {
		if errs[i] != nil {
			return nil, errs[i]
		}
		total += len(decoded[i])
	}

	records := make([]postprocess.DetectionRecord, 0, total)
	for _, r := range decoded {
		records = append(records, r...)
	}
	return records, nil
}

// Run is the stateless form of Pipeline.Run for callers that supply their
// own class predicate. Predictions are trusted to share one layout; a
// prediction without class scores panics.
//
// Arguments:
//   - outputs: The network output layers.
//   - imageWidth, imageHeight: The source image size in pixels.
//   - confidenceThreshold: The exclusive confidence floor.
//   - iouThreshold: The NMS overlap threshold.
//   - isTarget: The class predicate.
//
// Returns:
//   - The detections, highest confidence first, without labels.
func Run(
	outputs [][]postprocess.RawPrediction,
	imageWidth, imageHeight int,
	confidenceThreshold, iouThreshold float32,
	isTarget postprocess.ClassPredicate,
) []postprocess.Detection {
	var records []postprocess.DetectionRecord
	for _, output := range outputs {
		for _, raw := range output {
			records = append(records, postprocess.Decode(raw, imageWidth, imageHeight))
		}
	}

	candidates := postprocess.Filter(records, isTarget, confidenceThreshold)
	kept := postprocess.Suppress(candidates, confidenceThreshold, iouThreshold)
	return toDetections(kept, nil)
}

func toDetections(kept []postprocess.Candidate, name func(int) string) []postprocess.Detection {
	detections := make([]postprocess.Detection, len(kept))
	for i, c := range kept {
		detections[i] = postprocess.Detection{
			Box:        c.Box,
			Confidence: c.Confidence,
			Class:      c.Class,
		}
		if name != nil {
			detections[i].Label = name(c.Class)
		}
	}
	return detections
}
