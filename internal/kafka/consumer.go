package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

type OrderSink interface {
	AddOrder(ctx context.Context, o *domain.Order) error
}

// IngestObserver counts ingestion outcomes; may be nil.
type IngestObserver interface {
	Ingested()
	Failed()
}

type ingestResult int

const (
	ingestStored ingestResult = iota
	ingestSkipped
	ingestRetry
)

// ingest decides what happens to one message. Anything that can never be
// stored is skipped (and committed); store errors are retried.
func ingest(ctx context.Context, sink OrderSink, value []byte) (ingestResult, *domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(value, &o); err != nil {
		return ingestSkipped, nil, err
	}
	err := sink.AddOrder(ctx, &o)
	switch {
	case err == nil:
		return ingestStored, &o, nil
	case errors.Is(err, repository.ErrOrderAlreadyExists), errors.Is(err, domain.ErrInvalidOrder):
		return ingestSkipped, &o, err
	default:
		return ingestRetry, &o, err
	}
}

func StartConsumer(ctx context.Context, sink OrderSink, obs IngestObserver, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			res, o, err := ingest(ctx, sink, m.Value)
			for res == ingestRetry {
				if obs != nil {
					obs.Failed()
				}
				logger.Warn("kafka add order fail, will retry", "offset", m.Offset, "err", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				res, o, err = ingest(ctx, sink, m.Value)
			}

			switch res {
			case ingestSkipped:
				logger.Warn("kafka order skipped", "offset", m.Offset, "err", err)
			case ingestStored:
				if obs != nil {
					obs.Ingested()
				}
				logger.Info("order ingested", "code", o.OrderCode)
			}

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("kafka commit failed", "err", err)
			}
		}
	}()
	return r, nil
}
