package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/xpkg/config"
	"restaurant-orders/internal/xpkg/logger"
)

const groupPrefix = "order-notifications-"

type Kafka struct {
	writer *kafka.Writer
	reader *kafka.Reader
	sink   notify.Sink
	mylog  logger.Logger
}

// NewKafka builds a relay keyed by tenant. Each instance reads with its own
// consumer group so every instance sees every message.
func NewKafka(cfg *config.Kafka, sink notify.Sink, mylog logger.Logger) *Kafka {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     groupPrefix + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MaxWait:     500 * time.Millisecond,
	})
	return &Kafka{
		writer: writer,
		reader: reader,
		sink:   sink,
		mylog:  mylog,
	}
}

func (k *Kafka) Publish(ctx context.Context, msg notify.Message) error {
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.TenantID),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: headerTenant, Value: []byte(msg.TenantID)},
			{Key: headerOrder, Value: []byte(strconv.FormatInt(msg.OrderID, 10))},
		},
	})
}

func (k *Kafka) Run(ctx context.Context) error {
	log := k.mylog.Action("kafka_relay")
	for {
		m, err := k.reader.ReadMessage(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Error("Failed to read relay message", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		tenantID, orderID, err := decodeHeaders(func(key string) any {
			for _, h := range m.Headers {
				if h.Key == key {
					if key == headerTenant {
						return string(h.Value)
					}
					return h.Value
				}
			}
			return nil
		})
		if err != nil {
			log.Warn("Dropping malformed relay message", "error", err.Error(), "offset", m.Offset)
			continue
		}
		k.sink.Deliver(tenantID, orderID, m.Value)
	}
}

func (k *Kafka) Close() error {
	var errs []error
	if err := k.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
	}
	if err := k.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka reader: %w", err))
	}
	return errors.Join(errs...)
}
