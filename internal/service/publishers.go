package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/mandate-console/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaStagePublisher struct {
	writer MessageWriter
}

func NewKafkaStagePublisher(writer MessageWriter) *KafkaStagePublisher {
	return &KafkaStagePublisher{writer: writer}
}

func (p *KafkaStagePublisher) PublishStageChange(ctx context.Context, event models.StageChangeEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: eventJSON,
	})
}

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NatsListNotifier pushes refreshed list snapshots so dashboards can
// subscribe instead of polling.
type NatsListNotifier struct {
	conn Publisher
}

func NewNatsListNotifier(conn Publisher) *NatsListNotifier {
	return &NatsListNotifier{conn: conn}
}

type listRefreshedMessage struct {
	AccountID string `json:"account_identifier"`
	List      string `json:"list"`
	Items     any    `json:"items"`
}

func (n *NatsListNotifier) NotifyRefreshed(_ context.Context, accountID, kind string, items any) error {
	data, err := json.Marshal(listRefreshedMessage{AccountID: accountID, List: kind, Items: items})
	if err != nil {
		return err
	}
	return n.conn.Publish(ListSubject(accountID, kind), data)
}

var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// ListSubject is the NATS subject a list refresh is published on.
func ListSubject(accountID, kind string) string {
	return fmt.Sprintf("lists.%s.%s.refreshed", subjectTokenReplacer.Replace(accountID), kind)
}
