package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dujiao-next/stockledger/internal/config"
	"github.com/dujiao-next/stockledger/internal/constants"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewPublisherDisabledReturnsNop(t *testing.T) {
	if _, ok := NewPublisher(nil).(NopPublisher); !ok {
		t.Fatalf("nil config should produce NopPublisher")
	}
	if _, ok := NewPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{" "}}).(NopPublisher); !ok {
		t.Fatalf("blank brokers should produce NopPublisher")
	}
	if _, ok := NewPublisher(&config.KafkaConfig{Enabled: true, Brokers: []string{"127.0.0.1:9092"}}).(*KafkaPublisher); !ok {
		t.Fatalf("enabled config should produce KafkaPublisher")
	}
}

func TestKafkaPublisherKeysByVariant(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	orderID := uint(42)
	entry := New(constants.StockEventEntryRecorded)
	entry.VariantID = 7
	entry.Quantity = -3
	compensation := New(constants.StockEventCompensationFailed)
	compensation.OrderID = &orderID

	if err := publisher.Publish(context.Background(), entry, compensation); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(writer.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(writer.msgs))
	}
	if string(writer.msgs[0].Key) != "variant:7" {
		t.Fatalf("unexpected key: %s", writer.msgs[0].Key)
	}
	if string(writer.msgs[1].Key) != "order:42" {
		t.Fatalf("unexpected key: %s", writer.msgs[1].Key)
	}

	var decoded Event
	if err := json.Unmarshal(writer.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Type != constants.StockEventEntryRecorded || decoded.Quantity != -3 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	if string(writer.msgs[0].Headers[0].Value) != constants.StockEventEntryRecorded {
		t.Fatalf("event_type header missing")
	}

	if err := publisher.Close(); err != nil || !writer.closed {
		t.Fatalf("close not forwarded")
	}
}
