package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydro-chart-service/internal/config"
	"github.com/couchcryptid/hydro-chart-service/internal/domain"
)

// Publisher produces run manifests to a Kafka topic so downstream consumers
// can track which artifacts each render pass produced.
// It implements pipeline.ManifestPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured summary topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSummaryTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishManifest publishes one summary message per unit followed by the
// full run manifest, all in a single produce call.
func (p *Publisher) PublishManifest(ctx context.Context, m domain.RunManifest) error {
	manifestMsg, err := serializeToMessage(m)
	if err != nil {
		return err
	}
	msgs := append(unitMessages(m), manifestMsg)
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish run manifest: %w", err)
	}
	succeeded, failed := m.Counts()
	p.logger.Info("run manifest published",
		"run_id", m.RunID,
		"succeeded", succeeded,
		"failed", failed,
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// unitSummary is the wire shape of a per-unit summary message.
type unitSummary struct {
	RunID     string   `json:"run_id"`
	Unit      string   `json:"unit"`
	OK        bool     `json:"ok"`
	Artifacts []string `json:"artifacts,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// unitMessages builds one message per manifest entry, keyed by run ID and
// unit so consumers can track individual units without decoding the full
// manifest.
func unitMessages(m domain.RunManifest) []kafkago.Message {
	msgs := make([]kafkago.Message, 0, len(m.Entries))
	for _, e := range m.Entries {
		data, err := json.Marshal(unitSummary{
			RunID:     m.RunID,
			Unit:      e.Unit,
			OK:        e.OK(),
			Artifacts: e.Artifacts,
			Error:     e.Error,
			ErrorKind: e.ErrorKind,
		})
		if err != nil {
			continue
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(m.RunID + "/" + e.Unit),
			Value: data,
		})
	}
	return msgs
}

// serializeToMessage marshals a RunManifest into a Kafka message keyed by
// run ID, with outcome counts as headers for filtering without decoding.
func serializeToMessage(m domain.RunManifest) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run manifest: %w", err)
	}
	succeeded, failed := m.Counts()
	return kafkago.Message{
		Key:   []byte(m.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "completed_at", Value: []byte(m.CompletedAt.Format(time.RFC3339))},
			{Key: "units_succeeded", Value: []byte(strconv.Itoa(succeeded))},
			{Key: "units_failed", Value: []byte(strconv.Itoa(failed))},
		},
	}, nil
}
