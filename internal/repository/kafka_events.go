package repository

import (
	"context"

	"CandleVault/internal/usecase"
	pkgkafka "CandleVault/pkg/kafka"
)

// KafkaBackfillPublisher implements BackfillEventSink for Kafka. Downstream
// analytics (pair screening) subscribe to learn which cache windows changed.
type KafkaBackfillPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBackfillPublisher creates a Kafka backfill event publisher.
func NewKafkaBackfillPublisher(producer *pkgkafka.Producer, topic string) usecase.BackfillEventSink {
	return &KafkaBackfillPublisher{producer: producer, topic: topic}
}

func (p *KafkaBackfillPublisher) PublishBackfill(ctx context.Context, ev usecase.BackfillEvent) error {
	key := []byte(ev.Ticker + ":" + ev.Timeframe + ":" + ev.Exchange)
	return p.producer.Publish(ctx, p.topic, key, ev)
}
