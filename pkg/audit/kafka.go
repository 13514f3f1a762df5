package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hasad-erp/hasad/pkg/tasks"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Submitter queues background work
type Submitter interface {
	Submit(t tasks.Task) error
}

// KafkaSink publishes events as JSON Messages keyed by msgid. Writes happen
// on the task queue so Log never waits on the broker.
type KafkaSink struct {
	writer  MessageWriter
	queue   Submitter
	timeout time.Duration
}

// NewKafkaWriter returns a writer for topic on the given brokers
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaSink creates a sink writing through writer on queue
func NewKafkaSink(writer MessageWriter, queue Submitter) *KafkaSink {
	return &KafkaSink{writer: writer, queue: queue, timeout: 10 * time.Second}
}

// Publish queues the event for delivery
func (k *KafkaSink) Publish(event Event) error {
	msg := NewMessage(event)
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	km := kafka.Message{
		Key:   []byte(msg.Msgid),
		Value: value,
		Time:  msg.Timestamp,
	}
	return k.queue.Submit(tasks.Task{
		Name:     "audit-kafka:" + msg.Msgid,
		Priority: tasks.PriorityLow,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, k.timeout)
			defer cancel()
			return k.writer.WriteMessages(ctx, km)
		},
	})
}

// Close flushes and closes the writer
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
