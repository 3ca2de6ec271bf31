// Package events publishes committed order changes to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/order"
)

// Config configures the Kafka publisher.
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `default:"orders.events" yaml:"topic"`
	BatchTimeout time.Duration `default:"10ms" yaml:"batch_timeout"`
}

const headerEventType = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes order events keyed by order id, so that events of
// one order land on the same partition in commit order.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg Config) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish encodes e and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, e order.Event) error {
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: Encode(e),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event", e.Type)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

var _ order.Publisher = (*LogPublisher)(nil)

// LogPublisher only logs events. It is used when no brokers are configured.
type LogPublisher struct {
	lg *zap.Logger
}

// NewLogPublisher returns a LogPublisher writing to lg.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg}
}

func (p *LogPublisher) Publish(_ context.Context, e order.Event) error {
	p.lg.Info("Order event",
		zap.String("type", string(e.Type)),
		zap.String("order_id", e.OrderID),
		zap.String("invoice", e.Invoice),
		zap.String("status", string(e.Status)),
		zap.String("prev_status", string(e.PrevStatus)),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Encode renders e as a JSON object. previous_status is omitted for
// order.created events.
func Encode(e order.Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("type")
	w.Str(string(e.Type))
	w.FieldStart("order_id")
	w.Str(e.OrderID)
	w.FieldStart("invoice_number")
	w.Str(e.Invoice)
	w.FieldStart("status")
	w.Str(string(e.Status))
	if e.PrevStatus != "" {
		w.FieldStart("previous_status")
		w.Str(string(e.PrevStatus))
	}
	w.FieldStart("total")
	w.Num(jx.Num(e.Total.String()))
	w.FieldStart("occurred_at")
	w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.ObjEnd()
	return w.Bytes()
}
