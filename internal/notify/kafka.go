package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"safespawn.ai/internal/spawn"
)

const (
	kafkaQueue        = 256
	kafkaWriteTimeout = 10 * time.Second
)

// ErrQueueFull is returned by Kafka.Notify when the publish queue has no
// room. The notice is dropped.
var ErrQueueFull = errors.New("kafka publish queue full")

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEvent is the payload published for each notice.
type KafkaEvent struct {
	EventType string       `json:"event_type"`
	Notice    spawn.Notice `json:"notice"`
	Message   string       `json:"message,omitempty"`
	Sound     string       `json:"sound,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Kafka publishes notices keyed by player id so one player's notices stay
// ordered within a partition. Notify only enqueues; a single goroutine owned
// by Kafka does the writes, so a slow broker never stalls the caller.
type Kafka struct {
	w     MessageWriter
	topic string
	now   func() time.Time
	log   *log.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
}

func NewKafka(brokers []string, topic string, logger *log.Logger) *Kafka {
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: kafkaWriteTimeout,
	}, topic, logger)
}

func NewKafkaWithWriter(w MessageWriter, topic string, logger *log.Logger) *Kafka {
	if logger == nil {
		logger = log.Default()
	}
	k := &Kafka{
		w:     w,
		topic: topic,
		now:   time.Now,
		log:   logger,
		queue: make(chan kafka.Message, kafkaQueue),
		done:  make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *Kafka) Notify(_ context.Context, n spawn.Notice) error {
	ev := KafkaEvent{
		EventType: "spawn." + n.Tier.String(),
		Notice:    n,
		Message:   Render(n),
		Sound:     Sound(n.Tier),
		Timestamp: k.now().UTC(),
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return fmt.Errorf("publish to %s: publisher closed", k.topic)
	}
	select {
	case k.queue <- kafka.Message{Key: []byte(n.Player.String()), Value: b}:
		return nil
	default:
		return fmt.Errorf("publish to %s: %w", k.topic, ErrQueueFull)
	}
}

func (k *Kafka) run() {
	defer close(k.done)
	for m := range k.queue {
		ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
		err := k.w.WriteMessages(ctx, m)
		cancel()
		if err != nil {
			k.log.Printf("warn: publish to %s (key %s): %v", k.topic, m.Key, err)
		}
	}
}

// Close stops accepting notices, flushes the queue and closes the writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()

	<-k.done
	return k.w.Close()
}
