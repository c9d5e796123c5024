package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"FundLedger/internal/engine"
	"FundLedger/internal/observability"
)

// StreamName holds every outbound fund ledger event.
const StreamName = "FUND_LEDGER_EVENTS"

// Publisher pushes committed events to NATS JetStream for downstream
// consumers. Publishing is best-effort: the event log in Postgres is
// the durable record, so a failed publish is logged and skipped.
// Subjects follow fund.ledger.events.{event_type}.{fund_id}.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Output
	logger    zerolog.Logger
}

// Message is the wire form of one published event.
type Message struct {
	Sequence  int64       `json:"sequence"`
	EventType string      `json:"event_type"`
	FundID    *int64      `json:"fund_id,omitempty"`
	Height    int64       `json:"height"`
	Caller    string      `json:"caller"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan engine.Output) *Publisher {
	return &Publisher{
		js:        js,
		inputChan: inputChan,
		logger:    observability.NewLogger("publisher"),
	}
}

// Run drains the publish channel until ctx is cancelled or the
// channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.logger.Warn().
					Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out engine.Output) error {
	env := out.Envelope
	msg := Message{
		Sequence:  env.Sequence,
		EventType: env.Kind.String(),
		FundID:    env.FundID,
		Height:    env.Height,
		Caller:    env.Caller.String(),
		Payload:   env.Payload,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := Subject(env.Kind.String(), env.FundID)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// Subject builds the outbound subject for an event type and optional
// fund scope.
func Subject(eventType string, fundID *int64) string {
	subject := fmt.Sprintf("fund.ledger.events.%s", eventType)
	if fundID != nil {
		subject = subject + "." + strconv.FormatInt(*fundID, 10)
	}
	return subject
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"fund.ledger.events.>"},
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

// Connect establishes a NATS connection and returns a JetStream
// context. Reconnects forever with a fixed wait.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("nats")

	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
