// Package nats backs the message queue port with NATS JetStream. The
// review workflow publishes lifecycle and delivery-result events here;
// the dashboard hub and any external consumers subscribe.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/humancheck/humancheck/internal/port/messagequeue"
)

// The stream captures both event families the service emits.
const (
	streamName = "HUMANCHECK"

	reviewSubjects       = "reviews.>"
	notificationSubjects = "notifications.>"
)

// Queue implements messagequeue.Queue over one JetStream connection.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and ensures the humancheck stream exists. Events
// are at-least-once: publishes happen after the durable state change
// they describe.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url, nats.Name("humancheck"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{reviewSubjects, notificationSubjects},
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish writes one event to the stream.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe attaches a durable consumer for the subject and feeds each
// message to handler. A handler error naks the message for redelivery.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("consumer for %s: %w", subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(context.Background(), msg.Subject(), msg.Data()); err != nil {
			slog.Error("event handler failed", "subject", msg.Subject(), "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", subject, err)
	}
	return cc.Stop, nil
}

// Close drops the connection; consumers stop with it.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// durableName derives a consumer name from the subject; JetStream
// forbids dots in durable names.
func durableName(subject string) string {
	s := strings.NewReplacer(".", "-", ">", "all", "*", "any").Replace(subject)
	return "humancheck-" + s
}
