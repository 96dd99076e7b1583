package events

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KafkaConfig locates the cluster and topic.
type KafkaConfig struct {
	BootstrapServers string `json:"bootstrap_servers" yaml:"bootstrap_servers"`
	Topic            string `json:"topic" yaml:"topic"`
	// FlushTimeout bounds Close; zero means 10s.
	FlushTimeout time.Duration `json:"flush_timeout" yaml:"flush_timeout"`
}

// KafkaPublisher produces events as JSON messages keyed by event id.
type KafkaPublisher struct {
	producer *kafka.Producer
	config   KafkaConfig
	log      *zap.Logger

	deliveries chan kafka.Event
	done       chan struct{}
	wg         sync.WaitGroup

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64
}

// NewKafkaPublisher creates a producer and starts its delivery report loop.
//
// Arguments:
//   - cfg: The cluster and topic.
//   - log: The logger, nil for no logging.
//
// Returns:
//   - *KafkaPublisher: The publisher.
//   - error: If the configuration is incomplete or the producer cannot start.
func NewKafkaPublisher(cfg KafkaConfig, log *zap.Logger) (*KafkaPublisher, error) {
	if cfg.BootstrapServers == "" || cfg.Topic == "" {
		return nil, errors.New("kafka publisher needs bootstrap servers and a topic")
	}
	if cfg.FlushTimeout == 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.BootstrapServers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating kafka producer")
	}

	kp := &KafkaPublisher{
		producer:   p,
		config:     cfg,
		log:        log,
		deliveries: make(chan kafka.Event, 1024),
		done:       make(chan struct{}),
	}
	kp.wg.Add(1)
	go kp.handleDeliveries()

	log.Info("kafka publisher ready", zap.String("topic", cfg.Topic), zap.String("servers", cfg.BootstrapServers))
	return kp, nil
}

func (kp *KafkaPublisher) handleDeliveries() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.done:
			return
		case e := <-kp.deliveries:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.failed.Add(1)
				kp.log.Warn("event delivery failed", zap.String("key", string(m.Key)), zap.Error(m.TopicPartition.Error))
				continue
			}
			kp.acked.Add(1)
		}
	}
}

// message builds the kafka message for e.
func message(topic string, e Event) (*kafka.Message, error) {
	payload, err := e.Encode()
	if err != nil {
		return nil, errors.Wrap(err, "encoding event")
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.ID),
		Value:          payload,
		Timestamp:      e.Time,
		Headers: []kafka.Header{
			{Key: "target", Value: []byte(e.Target)},
			{Key: "count", Value: []byte(strconv.Itoa(len(e.Detections)))},
		},
	}, nil
}

// Publish implements Publisher. Delivery is asynchronous; failures are
// logged and counted by the delivery loop.
func (kp *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := message(kp.config.Topic, e)
	if err != nil {
		return err
	}
	if err := kp.producer.Produce(m, kp.deliveries); err != nil {
		kp.failed.Add(1)
		return errors.Wrapf(err, "producing event %s", e.ID)
	}
	kp.sent.Add(1)
	return nil
}

// Stats returns sent, acknowledged and failed message counts.
func (kp *KafkaPublisher) Stats() (sent, acked, failed int64) {
	return kp.sent.Load(), kp.acked.Load(), kp.failed.Load()
}

// Close flushes pending messages and closes the producer.
func (kp *KafkaPublisher) Close() error {
	remaining := kp.producer.Flush(int(kp.config.FlushTimeout.Milliseconds()))
	close(kp.done)
	kp.wg.Wait()
	kp.producer.Close()

	sent, acked, failed := kp.Stats()
	kp.log.Info("kafka publisher closed",
		zap.Int64("sent", sent), zap.Int64("acked", acked), zap.Int64("failed", failed))
	if remaining > 0 {
		return errors.Errorf("%d events still queued after flush", remaining)
	}
	return nil
}
