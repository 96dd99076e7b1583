// Command server serves person detection over HTTP and websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-person-detector/config"
	"github.com/nvr-ai/go-person-detector/detector"
	"github.com/nvr-ai/go-person-detector/events"
	"github.com/nvr-ai/go-person-detector/inference"
	"github.com/nvr-ai/go-person-detector/logger"
	"github.com/nvr-ai/go-person-detector/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	envFile := flag.String("env-file", ".env", "Optional .env file loaded before the configuration")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Development, cfg.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	labels, err := cfg.Labels()
	if err != nil {
		log.Fatal("loading labels", zap.Error(err))
	}
	pipeline, err := detector.New(cfg.Detector, labels, log)
	if err != nil {
		log.Fatal("creating pipeline", zap.Error(err))
	}
	network, err := inference.Open(cfg.Network, log)
	if err != nil {
		log.Fatal("loading network", zap.Error(err))
	}
	d := inference.NewFrameDetector(network, pipeline)
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []server.Option
	if cfg.Events.Enabled() {
		var publishers events.Multi
		if cfg.Events.BootstrapServers != "" {
			kp, err := events.NewKafkaPublisher(events.KafkaConfig{
				BootstrapServers: cfg.Events.BootstrapServers,
				Topic:            cfg.Events.Topic,
			}, log)
			if err != nil {
				log.Fatal("creating kafka publisher", zap.Error(err))
			}
			publishers = append(publishers, kp)
		}
		if cfg.Events.WebhookURL != "" {
			publishers = append(publishers, events.NewWebhookPublisher(cfg.Events.WebhookURL, 0))
		}
		if cfg.Events.HistoryPath != "" {
			store, err := events.OpenSQLite(cfg.Events.HistoryPath)
			if err != nil {
				log.Fatal("opening event history", zap.Error(err))
			}
			publishers = append(publishers, store)
			opts = append(opts, server.WithHistory(store))
		}
		defer publishers.Close()
		opts = append(opts, server.WithPublisher(publishers, cfg.Detector.TargetClass))
	}

	if err := server.New(d, cfg.Server, log, opts...).Run(ctx, cfg.Server.Addr); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
