// Package events publishes fleet-level session events over NATS. Optional:
// the honeypot runs fine without a broker, it just reports to nobody but
// the callback endpoint.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSessionTerminated = "honeypot.session.terminated"
	SubjectCallbackFailed    = "honeypot.callback.failed"
)

// SessionTerminated announces a finished engagement.
type SessionTerminated struct {
	SessionID         string  `json:"session_id"`
	FinalScore        float64 `json:"final_score"`
	TurnCount         int     `json:"turn_count"`
	TerminationReason string  `json:"termination_reason"`
	IntelCount        int     `json:"intel_count"`
}

// CallbackFailed announces that a final report could not be delivered.
type CallbackFailed struct {
	SessionID string `json:"session_id"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewPublisher(url, token string, logger *slog.Logger) (*Publisher, error) {
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
	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func (p *Publisher) Close() {
	p.conn.Close()
}
