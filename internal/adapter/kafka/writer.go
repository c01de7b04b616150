package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-radar-mosaic/internal/config"
	"github.com/couchcryptid/storm-radar-mosaic/internal/domain"
)

// EventMosaicReady is the event_type header of published results.
const EventMosaicReady = "mosaic_ready"

// Notifier publishes a message to a Kafka topic each time a map is written.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify serializes and publishes one mosaic result.
func (n *Notifier) Notify(ctx context.Context, result domain.MosaicResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish mosaic result: %w", err)
	}
	n.logger.Info("mosaic result published", "topic", n.writer.Topic, "key", string(msg.Key))
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a MosaicResult into a Kafka message keyed by
// site pair and data time, so reruns for the same data compact together.
func serializeToMessage(result domain.MosaicResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize mosaic result: %w", err)
	}

	sites := make([]string, len(result.Sites))
	for i, s := range result.Sites {
		sites[i] = s.Site
	}
	key := strings.Join(sites, ",") + "@" + result.DataTime.UTC().Format(time.RFC3339)

	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventMosaicReady)},
			{Key: "data_time", Value: []byte(result.DataTime.UTC().Format(time.RFC3339))},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
