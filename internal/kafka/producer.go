package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	orders   *kafka.Writer
	releases *kafka.Writer
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
}

// NewProducer writes orders to ordersTopic and release events to
// releasesTopic. Both are keyed by order code so one order stays on one
// partition.
func NewProducer(brokersSTR, ordersTopic, releasesTopic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")
	return &Producer{
		orders:   newWriter(brokers, ordersTopic),
		releases: newWriter(brokers, releasesTopic),
	}
}

func (p *Producer) Close() error {
	err := p.orders.Close()
	if rerr := p.releases.Close(); err == nil {
		err = rerr
	}
	return err
}

func (p *Producer) PublishOrder(ctx context.Context, o domain.Order) error {
	msg, err := orderMessage(o)
	if err != nil {
		return err
	}
	return p.orders.WriteMessages(ctx, msg)
}

func (p *Producer) PublishRelease(ctx context.Context, rec domain.ReleaseRecord) error {
	msg, err := releaseMessage(rec)
	if err != nil {
		return err
	}
	return p.releases.WriteMessages(ctx, msg)
}

func orderMessage(o domain.Order) (kafka.Message, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(domain.NormalizeCode(o.OrderCode)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}

func releaseMessage(rec domain.ReleaseRecord) (kafka.Message, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.OrderCode),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event", Value: []byte("order.released")},
		},
	}, nil
}
