package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"order-display/models"
)

// Record is the message value written for every display event.
type Record struct {
	V     int       `json:"v"`
	Event string    `json:"event"`
	Data  any       `json:"data"`
	At    time.Time `json:"at"`
}

// KafkaSink is a hub subscriber that forwards every event to a topic,
// keyed by order id so one order's events stay on one partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
	now      func() time.Time

	failed    atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Net.DialTimeout = 5 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func NewKafkaSink(producer sarama.SyncProducer, topic string, log *zap.Logger) *KafkaSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		log:      log.Named("kafka"),
		now:      time.Now,
	}
}

func (k *KafkaSink) ID() string { return "kafka:" + k.topic }

// ------------------------------------------------
// DELIVERY
// ------------------------------------------------

// Receive publishes ev. Broker errors are logged and counted but not returned.
// SendMessage does not observe ctx; while it blocks the hub skips events for
// this sink instead of waiting on it.
func (k *KafkaSink) Receive(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(Record{V: 1, Event: ev.Name, Data: ev.Payload, At: k.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(value),
	}
	if id := ev.OrderID(); id != "" {
		msg.Key = sarama.StringEncoder(id)
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		k.failed.Add(1)
		k.log.Warn("publish failed", zap.String("event", ev.Name), zap.Error(err))
		return nil
	}
	k.log.Debug("event forwarded",
		zap.String("event", ev.Name),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *KafkaSink) Failed() uint64 { return k.failed.Load() }

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

// Close closes the producer once. The hub calls it after the last delivery.
func (k *KafkaSink) Close() error {
	k.closeOnce.Do(func() {
		k.closeErr = k.producer.Close()
	})
	return k.closeErr
}
