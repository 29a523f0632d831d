package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"StokVault/internal/event"
	"StokVault/internal/observability"
)

// OutboundPublisher publishes lifecycle records to NATS for downstream
// consumers. Subjects follow the pattern stok.vault.events.{event_type}.
// Publishing is best-effort: a failed publish is logged and counted, never
// retried — consumers needing completeness read the Postgres event log.
type OutboundPublisher struct {
	js      jetstream.JetStream
	input   <-chan event.Record
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, input <-chan event.Record, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:      js,
		input:   input,
		metrics: metrics,
		log:     observability.NewLogger("publisher"),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-op.input:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, rec); err != nil {
				op.log.Warn().Err(err).Int64("sequence", rec.Sequence).Str("event", rec.Type.String()).Msg("outbound publish failed")
				if op.metrics != nil {
					op.metrics.PublishErrors.Inc()
				}
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, rec event.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = op.js.Publish(ctx, rec.Type.Subject(), data)
	return err
}

// ConnectNATS dials the broker and returns a JetStream handle.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream context: %w", err)
	}
	return nc, js, nil
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "STOK_VAULT_EVENTS",
		Subjects:  []string{"stok.vault.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

// SubjectToEventType maps an inbound subject back to its event type, for
// consumers that mirror the publisher's subject scheme.
func SubjectToEventType(subject string) event.EventType {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 {
		return event.EventTypeUnknown
	}
	switch subject[idx+1:] {
	case "member_joined":
		return event.EventTypeMemberJoined
	case "member_exited":
		return event.EventTypeMemberExited
	case "round_started":
		return event.EventTypeRoundStarted
	case "payout_claimed":
		return event.EventTypePayoutClaimed
	case "round_completed":
		return event.EventTypeRoundCompleted
	case "violation_recorded":
		return event.EventTypeViolationRecorded
	case "insurance_distributed":
		return event.EventTypeInsuranceDistributed
	default:
		return event.EventTypeUnknown
	}
}
