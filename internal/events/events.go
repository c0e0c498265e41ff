package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects published by the honeypot pipeline.
const (
	SubjectClassified  = "grift.session.classified"
	SubjectExtracted   = "grift.artifact.extracted"
	SubjectReported    = "grift.session.reported"
	SubjectReportError = "grift.report.failed"
	SubjectRegistered  = "grift.agent.registered"
)

// Bus publishes pipeline observability events. It is an optional
// collaborator: a nil *Bus is safe to publish on, so the service runs fine
// without NATS configured.
type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func Connect(url, token string, logger *slog.Logger) (*Bus, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Bus{conn: nc, logger: logger}, nil
}

// Publish emits an event. Best-effort: marshal or publish failures are the
// caller's to log, never to act on.
func (b *Bus) Publish(subject string, data any) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.conn.Close()
}
