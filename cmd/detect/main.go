// Command detect reports whether a person appears in still images and saves
// an annotated copy of every image that contains one.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nvr-ai/go-person-detector/annotate"
	"github.com/nvr-ai/go-person-detector/config"
	"github.com/nvr-ai/go-person-detector/detector"
	"github.com/nvr-ai/go-person-detector/images"
	"github.com/nvr-ai/go-person-detector/inference"
	"github.com/nvr-ai/go-person-detector/logger"
	"github.com/nvr-ai/go-person-detector/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	detectedMessage    = "Person detected."
	notDetectedMessage = "Person not detected."
)

// options are the inputs that only exist on the command line.
type options struct {
	imagePath string
	dir       string
	saveName  string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseFlags loads the configuration named by -config and applies any
// explicitly set flags over it.
func parseFlags(args []string) (options, config.Config, error) {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	var (
		opts       options
		configPath string
		cfgPath    string
		weights    string
		onnxModel  string
		labels     string
		confidence float64
		nms        float64
		outputDir  string
	)
	fs.StringVar(&opts.imagePath, "image", "", "Path to an image file (.jpg, .jpeg, .png, .bmp, .webp)")
	fs.StringVar(&opts.dir, "dir", "", "Directory of images to process")
	fs.StringVar(&opts.saveName, "save-name", "", "File name, without extension, for the annotated image (default: input name)")
	fs.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&cfgPath, "cfg", "", "Path to the Darknet network definition")
	fs.StringVar(&weights, "weights", "", "Path to the Darknet weights")
	fs.StringVar(&onnxModel, "onnx", "", "Path to an ONNX model; selects the onnx backend")
	fs.StringVar(&labels, "labels", "", "Path to a newline-delimited class names file")
	fs.Float64Var(&confidence, "confidence", 0.5, "Minimum confidence to keep a detection")
	fs.Float64Var(&nms, "nms", 0.3, "IoU above which overlapping detections are suppressed")
	fs.StringVar(&outputDir, "output-dir", "", "Directory for annotated images (default from config)")
	if err := fs.Parse(args); err != nil {
		return opts, config.Config{}, err
	}

	if (opts.imagePath == "") == (opts.dir == "") {
		return opts, config.Config{}, errors.New("exactly one of -image or -dir is required")
	}
	if opts.dir != "" && opts.saveName != "" {
		return opts, config.Config{}, errors.New("-save-name only applies to -image")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return opts, cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cfg":
			cfg.Network.ConfigPath = cfgPath
		case "weights":
			cfg.Network.WeightsPath = weights
		case "onnx":
			cfg.Network.Backend = config.BackendONNX
			cfg.Network.ModelPath = onnxModel
		case "labels":
			cfg.Network.LabelsPath = labels
		case "confidence":
			cfg.Detector.ConfidenceThreshold = float32(confidence)
		case "nms":
			cfg.Detector.NMSThreshold = float32(nms)
		case "output-dir":
			cfg.Server.OutputDir = outputDir
		}
	})

	return opts, cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := config.LoadEnv(".env"); err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Development, cfg.Log.Level); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log()

	labels, err := cfg.Labels()
	if err != nil {
		return err
	}
	pipeline, err := detector.New(cfg.Detector, labels, log)
	if err != nil {
		return err
	}
	network, err := inference.Open(cfg.Network, log)
	if err != nil {
		return err
	}
	d := inference.NewFrameDetector(network, pipeline)
	defer d.Close()

	var inputs []images.Image
	if opts.dir != "" {
		inputs, err = util.LoadDirectoryImageFiles(opts.dir)
	} else {
		var img images.Image
		img, err = util.LoadImageFile(opts.imagePath)
		if opts.saveName != "" {
			img.Name = opts.saveName
		}
		inputs = []images.Image{img}
	}
	if err != nil {
		return err
	}

	for _, input := range inputs {
		detected, err := detectOne(ctx, d, input, cfg.Server.OutputDir, log)
		if err != nil {
			return errors.Wrapf(err, "processing %s", input.Name)
		}
		if detected {
			fmt.Fprintln(stdout, detectedMessage)
		} else {
			fmt.Fprintln(stdout, notDetectedMessage)
		}
	}
	return nil
}

func detectOne(ctx context.Context, d *inference.FrameDetector, input images.Image, outputDir string, log *zap.Logger) (bool, error) {
	img, err := gocv.IMDecode(input.Data, gocv.IMReadColor)
	if err != nil {
		return false, err
	}
	defer img.Close()
	if img.Empty() {
		return false, errors.New("cannot decode image")
	}

	detections, err := d.Detect(ctx, img)
	if err != nil {
		return false, err
	}
	if len(detections) == 0 {
		return false, nil
	}

	annotate.Draw(&img, detections)
	path, err := annotate.Save(outputDir, input.Name, img)
	if err != nil {
		return true, err
	}
	log.Info("saved annotated image", zap.String("path", path), zap.Int("detections", len(detections)))
	return true, nil
}
