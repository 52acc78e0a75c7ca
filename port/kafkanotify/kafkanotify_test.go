package kafkanotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/debnit/MsmeBazaar-sub000/port/kafkanotify"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestSend_KeysByEscrow(t *testing.T) {
	w := &fakeWriter{}
	n, err := kafkanotify.New(w, "escrow-notifications")
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"escrow_id": "esc_1", "amount": 5000}
	if err := n.Send(context.Background(), "seller-1", "notify-seller-funded", payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "escrow-notifications" || string(msg.Key) != "esc_1" {
		t.Errorf("topic/key = %s/%s", msg.Topic, msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "notify-seller-funded" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var ev kafkanotify.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.UserID != "seller-1" || ev.Type != "notify-seller-funded" || ev.Payload["escrow_id"] != "esc_1" {
		t.Errorf("event = %+v", ev)
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Errorf("Close: %v closed=%v", err, w.closed)
	}
}

func TestKey_FallsBackToUser(t *testing.T) {
	if got := kafkanotify.Key("buyer-1", map[string]any{"reason": "x"}); got != "buyer-1" {
		t.Errorf("Key = %q", got)
	}
	if got := kafkanotify.Key("buyer-1", map[string]any{"escrow_id": ""}); got != "buyer-1" {
		t.Errorf("Key with empty escrow = %q", got)
	}
}

func TestSend_WrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	n, _ := kafkanotify.New(&fakeWriter{err: boom}, "t")
	if err := n.Send(context.Background(), "u", "notify-escrow-refunded", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestConstructorsValidate(t *testing.T) {
	if _, err := kafkanotify.New(&fakeWriter{}, ""); err == nil {
		t.Error("New accepted an empty topic")
	}
	if _, err := kafkanotify.NewWriter(nil); err == nil {
		t.Error("NewWriter accepted no brokers")
	}
	w, err := kafkanotify.NewWriter([]string{"localhost:9092"})
	if err != nil || w.Addr == nil {
		t.Errorf("NewWriter = %v, %v", w, err)
	}
}
