package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	eventdomain "appliance-fieldops/authcore/internal/event/domain"
)

// wireEvent is the JSON shape written to the topic.
type wireEvent struct {
	ID          string            `json:"id"`
	ActorUserID string            `json:"actor_user_id"`
	EventType   string            `json:"event_type"`
	Severity    string            `json:"severity"`
	IPAddress   string            `json:"ip_address,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// KafkaProducer implements Producer using segmentio/kafka-go. Messages
// are keyed by actor so one user's events stay ordered per partition.
type KafkaProducer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaProducer creates a producer for the given topic. Returns nil
// when brokers or topic are unset, which disables the firehose.
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, log: logger}
}

func (p *KafkaProducer) Emit(ctx context.Context, e *eventdomain.Event) error {
	if p == nil || p.writer == nil || e == nil {
		return nil
	}
	payload, err := json.Marshal(wireEvent{
		ID:          e.ID,
		ActorUserID: e.ActorUserID,
		EventType:   e.EventType,
		Severity:    string(e.Severity),
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.ActorUserID),
		Value: payload,
	})
	if err != nil {
		p.log.Warn("kafka emit failed", zap.String("event_type", e.EventType), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
