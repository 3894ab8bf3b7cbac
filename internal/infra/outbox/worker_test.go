package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeQueue struct {
	docs   []*EventDocument
	sent   []string
	failed []string
}

func (q *fakeQueue) Claim(context.Context, string) (*EventDocument, error) {
	if len(q.docs) == 0 {
		return nil, nil
	}
	doc := q.docs[0]
	q.docs = q.docs[1:]
	return doc, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, _ time.Time, _ string) error {
	q.failed = append(q.failed, id)
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakePublisher struct {
	out  []published
	fail map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail[key] {
		return errors.New("broker unavailable")
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func doc(id, name, aggregate string) *EventDocument {
	return &EventDocument{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"` + aggregate + `"}`),
		OccurredAt: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		Aggregate:  aggregate,
		Headers:    map[string]string{"traceparent": "00-abc-01"},
	}
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{
		doc("e1", "booking.created", "B_1"),
		doc("e2", "booking.cancelled", "B_1"),
	}}
	pub := &fakePublisher{}
	w := &Worker{Queue: q, Publisher: pub, TopicPrefix: "stg.", Source: "app://test", ID: "w1"}

	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(q.sent) != 2 || len(pub.out) != 2 {
		t.Fatalf("expected 2 sent, got sent=%v published=%d", q.sent, len(pub.out))
	}
	first := pub.out[0]
	if first.topic != "stg.booking.events.v1" || first.key != "B_1" {
		t.Fatalf("unexpected routing %s/%s", first.topic, first.key)
	}
	if first.headers["content-type"] != "application/cloudevents+json" {
		t.Fatalf("missing content type header: %v", first.headers)
	}
	var evt map[string]any
	if err := json.Unmarshal(first.payload, &evt); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if evt["type"] != "booking.created.v1" || evt["source"] != "app://test" || evt["id"] != "e1" {
		t.Fatalf("unexpected envelope %v", evt)
	}
	if evt["traceparent"] != "00-abc-01" {
		t.Fatalf("trace header not propagated: %v", evt)
	}
}

func TestPublishFailureSchedulesRetry(t *testing.T) {
	q := &fakeQueue{docs: []*EventDocument{doc("e1", "booking.created", "B_bad"), doc("e2", "booking.created", "B_ok")}}
	pub := &fakePublisher{fail: map[string]bool{"B_bad": true}}
	w := &Worker{Queue: q, Publisher: pub, Backoff: []time.Duration{time.Second}}

	if err := w.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(q.failed) != 1 || q.failed[0] != "e1" {
		t.Fatalf("expected e1 failed, got %v", q.failed)
	}
	if len(q.sent) != 1 || q.sent[0] != "e2" {
		t.Fatalf("expected e2 sent, got %v", q.sent)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
}
