package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNames(t *testing.T) {
	work := WorkQueueNames()
	if len(work) != 2 {
		t.Fatalf("WorkQueueNames len = %d, want 2", len(work))
	}

	expected := map[string]struct{}{
		"notice.broadcast": {},
		"notice.check":     {},
	}
	for _, name := range work {
		if _, ok := expected[name]; !ok {
			t.Fatalf("unexpected queue name: %s", name)
		}
	}

	dlq := DLQNames()
	expectedDLQ := map[string]struct{}{
		"dlq.notice.broadcast": {},
		"dlq.notice.check":     {},
	}
	if len(dlq) != len(expectedDLQ) {
		t.Fatalf("DLQNames len = %d, want %d", len(dlq), len(expectedDLQ))
	}
	for _, name := range dlq {
		if _, ok := expectedDLQ[name]; !ok {
			t.Fatalf("unexpected dlq name: %s", name)
		}
	}
}

func TestPriorityValue(t *testing.T) {
	tests := []struct {
		name        string
		triggeredBy domain.TriggeredBy
		want        uint8
	}{
		{name: "manual", triggeredBy: domain.TriggeredByManual, want: 2},
		{name: "auto", triggeredBy: domain.TriggeredByAuto, want: 1},
		{name: "invalid", triggeredBy: domain.TriggeredBy("cron"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityValue(tt.triggeredBy)
			if got != tt.want {
				t.Fatalf("PriorityValue(%q) = %d, want %d", tt.triggeredBy, got, tt.want)
			}
		})
	}
}

func validBroadcast() Message {
	return Message{
		ID:          "m1",
		Kind:        KindBroadcast,
		Title:       "📢 Notice",
		Body:        "College closed tomorrow",
		URL:         "/#notices",
		TriggeredBy: domain.TriggeredByManual,
	}
}

func TestMessageValidate(t *testing.T) {
	msg := validBroadcast()
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.ID = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty id")
	}

	msg = validBroadcast()
	msg.Kind = Kind("sms")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid kind")
	}

	msg = validBroadcast()
	msg.Body = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for broadcast without body")
	}

	msg = validBroadcast()
	msg.Category = domain.Category("gossip")
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for invalid category")
	}

	check := Message{ID: "c1", Kind: KindCheck, TriggeredBy: domain.TriggeredByAuto}
	if err := check.Validate(); err != nil {
		t.Fatalf("Validate(check) unexpected error: %v", err)
	}
}

type ackCall struct {
	op      string
	requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.calls = append(a.calls, ackCall{op: "ack"})
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.calls = append(a.calls, ackCall{op: "nack", requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.calls = append(a.calls, ackCall{op: "reject", requeue: requeue})
	return nil
}

func TestConsumerHandleDelivery(t *testing.T) {
	t.Parallel()

	valid, err := json.Marshal(validBroadcast())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	invalid, err := json.Marshal(Message{ID: "m2", Kind: KindBroadcast, TriggeredBy: domain.TriggeredByAuto})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	testCases := []struct {
		name        string
		body        []byte
		redelivered bool
		handlerErr  error
		want        ackCall
		wantHandled bool
	}{
		{name: "success acks", body: valid, want: ackCall{op: "ack"}, wantHandled: true},
		{name: "malformed json is rejected", body: []byte("{"), want: ackCall{op: "reject"}},
		{name: "invalid payload is rejected", body: invalid, want: ackCall{op: "reject"}},
		{name: "handler failure requeues", body: valid, handlerErr: errors.New("db down"), want: ackCall{op: "nack", requeue: true}, wantHandled: true},
		{name: "second failure dead-letters", body: valid, redelivered: true, handlerErr: errors.New("db down"), want: ackCall{op: "reject"}, wantHandled: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ack := &fakeAcknowledger{}
			handled := false
			consumer := NewRabbitMQConsumer(&RabbitMQ{}, 1, nil)
			d := amqp.Delivery{Acknowledger: ack, Body: tc.body, Redelivered: tc.redelivered}

			err := consumer.handleDelivery(context.Background(), d, func(_ context.Context, msg Message) error {
				handled = true
				if msg.ID != "m1" {
					t.Errorf("handler msg.ID = %q, want m1", msg.ID)
				}
				return tc.handlerErr
			})
			if err != nil {
				t.Fatalf("handleDelivery() error = %v", err)
			}
			if handled != tc.wantHandled {
				t.Fatalf("handler called = %v, want %v", handled, tc.wantHandled)
			}
			if len(ack.calls) != 1 || ack.calls[0] != tc.want {
				t.Fatalf("ack calls = %+v, want [%+v]", ack.calls, tc.want)
			}
		})
	}
}

func TestPublisherRequiresConfiguredBroker(t *testing.T) {
	t.Parallel()

	p := NewRabbitMQPublisher(&RabbitMQ{})
	if err := p.Publish(context.Background(), "", validBroadcast()); err == nil {
		t.Fatal("expected error for unconfigured broker")
	}
	if err := p.Publish(context.Background(), QueueName(KindBroadcast), Message{}); err == nil {
		t.Fatal("expected error for invalid message")
	}
}

func TestNewPublishing(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.March, 6, 10, 0, 0, 0, time.FixedZone("IST", 19800))
	msg := validBroadcast()
	msg.CorrelationID = "req-1"

	got, err := newPublishing(msg, at)
	if err != nil {
		t.Fatalf("newPublishing() error = %v", err)
	}
	if got.DeliveryMode != amqp.Persistent || got.ContentType != "application/json" {
		t.Fatalf("publishing = %+v, want persistent json", got)
	}
	if got.Priority != 2 || got.Type != "broadcast" || got.MessageId != "m1" || got.CorrelationId != "req-1" {
		t.Fatalf("publishing headers = %+v", got)
	}
	if !got.Timestamp.Equal(at) || got.Timestamp.Location() != time.UTC {
		t.Fatalf("Timestamp = %v, want %v in UTC", got.Timestamp, at)
	}

	var decoded Message
	if err := json.Unmarshal(got.Body, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded != msg {
		t.Fatalf("body = %+v, want %+v", decoded, msg)
	}

	if _, err := newPublishing(Message{ID: "x", Kind: KindCheck}, at); err == nil {
		t.Fatal("expected error for message without triggeredBy")
	}
}

func TestTopology(t *testing.T) {
	t.Parallel()

	specs := topology()
	if len(specs) != 2 {
		t.Fatalf("topology len = %d, want 2", len(specs))
	}

	for _, spec := range specs {
		if spec.Args["x-dead-letter-exchange"] != dlxExchangeName {
			t.Fatalf("%s dead-letter exchange = %v", spec.Name, spec.Args["x-dead-letter-exchange"])
		}
		if spec.Args["x-dead-letter-routing-key"] != spec.Name {
			t.Fatalf("%s dead-letter routing key = %v, want own name", spec.Name, spec.Args["x-dead-letter-routing-key"])
		}
		if spec.DLQ != "dlq."+spec.Name {
			t.Fatalf("%s DLQ = %s", spec.Name, spec.DLQ)
		}

		ttl, hasTTL := spec.Args["x-message-ttl"]
		switch spec.Kind {
		case KindCheck:
			if !hasTTL || ttl != checkJobTTL.Milliseconds() {
				t.Fatalf("check queue ttl = %v, want %d", ttl, checkJobTTL.Milliseconds())
			}
		case KindBroadcast:
			if hasTTL {
				t.Fatal("broadcast jobs must not expire")
			}
		}
	}
}

func TestDispositionFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        disposition
	}{
		{name: "success", want: dispositionAck},
		{name: "success on redelivery", redelivered: true, want: dispositionAck},
		{name: "first failure", err: errors.New("db down"), want: dispositionRequeue},
		{name: "repeat failure", err: errors.New("db down"), redelivered: true, want: dispositionDeadLetter},
		{name: "malformed", err: errMalformed, want: dispositionDeadLetter},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := dispositionFor(tt.err, tt.redelivered); got != tt.want {
				t.Fatalf("dispositionFor() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	t.Parallel()

	if got := nextBackoff(reconnectBackoff); got != 2*reconnectBackoff {
		t.Fatalf("nextBackoff(%s) = %s", reconnectBackoff, got)
	}
	if got := nextBackoff(20 * time.Second); got != maxBackoff {
		t.Fatalf("nextBackoff(20s) = %s, want %s", got, maxBackoff)
	}
}
