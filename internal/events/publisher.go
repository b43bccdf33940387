package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageSent is emitted after a message has been durably appended. Consumers
// (notifications, analytics) are outside this service.
type MessageSent struct {
	ChatID        string    `json:"chat_id"`
	AppointmentID string    `json:"appointment_id"`
	SenderID      string    `json:"sender_id"`
	SenderRole    string    `json:"sender_role"`
	Body          string    `json:"body"`
	Timestamp     time.Time `json:"timestamp"`
}

type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w}
}

// PublishMessageSent keys the event by appointment so one conversation's
// events stay in partition order.
func (p *Publisher) PublishMessageSent(ctx context.Context, ev MessageSent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.AppointmentID),
		Value: b,
		Time:  ev.Timestamp,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
