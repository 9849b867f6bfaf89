// Package events publishes template lifecycle notifications to Kafka.
//
// Messages are JSON-encoded services.Event values keyed by
// "<language>:<code>", so every event of one template group lands on the
// same partition and stays ordered.
//
// Publish never touches the network. It drops the message into a bounded
// queue that a single background goroutine drains into the Kafka writer, so
// a slow or unreachable broker cannot hold up the request that triggered the
// event. A full queue rejects the event with ErrQueueFull; delivery failures
// are logged by the drain loop.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tbourn/template-service/internal/services"
)

const (
	headerEventType = "event-type"

	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

var (
	// ErrQueueFull is returned when the delivery queue has no room.
	ErrQueueFull = errors.New("events: delivery queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("events: publisher closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements services.Publisher.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration

	queue chan kafka.Message
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewKafkaPublisher returns a publisher writing to topic on brokers and
// starts its drain loop. Call Close to flush and stop it.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
	}, defaultQueueSize, defaultWriteTimeout)
}

func newPublisher(w messageWriter, size int, timeout time.Duration) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:  w,
		timeout: timeout,
		queue:   make(chan kafka.Message, size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish encodes ev and queues it for delivery without blocking.
func (p *KafkaPublisher) Publish(_ context.Context, ev services.Event) error {
	select {
	case <-p.stop:
		return ErrClosed
	default:
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Language + ":" + ev.Code),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(ev.Type)},
		},
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrQueueFull, ev.Type)
	}
}

// run writes queued messages in order until Close, then drains what is left.
func (p *KafkaPublisher) run() {
	defer close(p.done)
	for {
		select {
		case msg := <-p.queue:
			p.write(msg)
		case <-p.stop:
			for {
				select {
				case msg := <-p.queue:
					p.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (p *KafkaPublisher) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).
			Str("event.key", string(msg.Key)).
			Str("event.type", eventType(msg)).
			Msg("event delivery failed")
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	return ""
}

// Close stops accepting events, flushes the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	return p.writer.Close()
}
