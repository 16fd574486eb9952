package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"cylinder-ledger/internal/cache"
	"cylinder-ledger/internal/config"
	"cylinder-ledger/internal/core"
)

// OrderStatusEvent is the wire shape published by the order workflow on each
// status change. Delivery is at least once; the coordinator's commit log
// makes replays harmless.
type OrderStatusEvent struct {
	OrderID     string           `json:"order_id"`
	WarehouseID int              `json:"warehouse_id"`
	FromStatus  core.OrderStatus `json:"from_status"`
	ToStatus    core.OrderStatus `json:"to_status"`
	Lines       []core.OrderLine `json:"lines"`
	Actor       string           `json:"actor"`
}

// Consumer abstracts the kafka reader so the loop is testable without a broker.
type Consumer interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewReader builds a consumer-group reader for the order status topic.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
}

// ConsumerService drives order status events from Kafka into the
// reservation coordinator.
type ConsumerService struct {
	consumer    Consumer
	coordinator core.ReservationCoordinator
	cache       *cache.Cache
	logger      *zap.Logger
}

func NewConsumerService(consumer Consumer, coordinator core.ReservationCoordinator, c *cache.Cache, logger *zap.Logger) *ConsumerService {
	return &ConsumerService{
		consumer:    consumer,
		coordinator: coordinator,
		cache:       c,
		logger:      logger,
	}
}

// Start consumes until ctx is cancelled. Malformed or rejected events are
// logged and skipped so one poison message never wedges the partition.
func (s *ConsumerService) Start(ctx context.Context) error {
	s.logger.Info("order event consumer started")

	for {
		msg, err := s.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("context done, exiting consume loop")
				return nil
			}
			s.logger.Error("error reading from kafka", zap.Error(err))
			continue
		}

		if err := s.handle(ctx, msg); err != nil {
			s.logger.Error("order event rejected",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
				zap.String("key", string(msg.Key)),
			)
		}
	}
}

func (s *ConsumerService) handle(ctx context.Context, msg kafka.Message) error {
	var event OrderStatusEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	result, err := s.coordinator.ApplyTransition(ctx, core.TransitionRequest{
		OrderID:     event.OrderID,
		WarehouseID: event.WarehouseID,
		From:        event.FromStatus,
		To:          event.ToStatus,
		Lines:       event.Lines,
		Actor:       event.Actor,
	})
	if err != nil {
		return err
	}

	if result.Applied {
		for _, rec := range result.Records {
			s.cache.InvalidateStock(ctx, rec.ProductID)
		}
	}
	s.logger.Info("order transition applied",
		zap.String("order_id", event.OrderID),
		zap.String("from", string(event.FromStatus)),
		zap.String("to", string(event.ToStatus)),
		zap.String("effect", result.Effect),
		zap.Bool("applied", result.Applied),
	)
	return nil
}
