// Package publish forwards generated reports to downstream consumers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/joelkehle/patrol-report/internal/report"
)

// Event is the record published for each generated report.
type Event struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	GuardName   string    `json:"guard_name"`
	Patrol      string    `json:"patrol"`
	Alerts      []string  `json:"alerts"`
	Text        string    `json:"text"`
}

// NewEvent builds the event for a report generated from data.
func NewEvent(data report.Data, g report.Generated) Event {
	return Event{
		ID:          g.ID,
		GeneratedAt: g.GeneratedAt,
		GuardName:   data.GuardName,
		Patrol:      data.PatrolStartTime + "-" + data.PatrolEndTime,
		Alerts:      append([]string{}, g.Alerts...),
		Text:        g.Text,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by report id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", ev.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventMessage(ev Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_count", Value: []byte(strconv.Itoa(len(ev.Alerts)))},
			{Key: "generated_at", Value: []byte(ev.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
