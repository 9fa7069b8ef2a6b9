package repository

import (
	"context"
	"strconv"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
	pkgkafka "FlipDesk/pkg/kafka"
)

// signalEvent is the wire shape of one accepted signal.
type signalEvent struct {
	RunID       string                  `json:"run_id"`
	PublishedAt time.Time               `json:"published_at"`
	Signal      models.InvestmentSignal `json:"signal"`
}

// KafkaSignalPublisher streams accepted signals keyed by item id.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, runID string, signals []models.InvestmentSignal) error {
	if len(signals) == 0 {
		return nil
	}
	at := p.now().UTC()
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(strconv.FormatInt(s.ItemID, 10)),
			Value: signalEvent{RunID: runID, PublishedAt: at, Signal: s},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaSnapshotPublisher hands collected snapshots to the ingest topic, one
// batch per message.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaSnapshotPublisher) PublishSnapshots(ctx context.Context, snaps []models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := models.SnapshotBatch{CollectedAt: p.now().UTC(), Snapshots: snaps}
	return p.producer.Publish(ctx, p.topic, nil, batch)
}

// KafkaLogPublisher sends aggregated log digests to a topic.
type KafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaLogPublisher(producer *pkgkafka.Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, []byte("logs"), payload)
}

var (
	_ domrepo.SignalPublisher   = (*KafkaSignalPublisher)(nil)
	_ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
)
