// Package callback delivers the mandatory final report for a terminated
// session. Delivery is retried with backoff and the outcome is always
// recorded — a failed callback is surfaced through its Record for external
// reconciliation, never dropped.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lure/internal/intel"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

// Payload is the final report POSTed to the configured endpoint.
type Payload struct {
	SessionID              string            `json:"sessionId"`
	ScamDetected           bool              `json:"scamDetected"`
	FinalScore             float64           `json:"finalScore"`
	TotalMessagesExchanged int               `json:"totalMessagesExchanged"`
	Transcript             []session.Message `json:"transcript"`
	ExtractedIntelligence  intel.Intel       `json:"extractedIntelligence"`
	TerminationReason      string            `json:"terminationReason"`
	AgentNotes             string            `json:"agentNotes"`
}

// Record is the durable accounting for one delivery attempt sequence. One
// per session, created at termination.
type Record struct {
	ID            uuid.UUID
	SessionID     string
	Attempts      int
	LastAttemptAt time.Time
	Delivered     bool
	LastError     string
}

type Dispatcher struct {
	url         string
	maxAttempts int
	backoffBase time.Duration
	client      *http.Client
	logger      *slog.Logger
}

func NewDispatcher(url string, timeout time.Duration, maxAttempts int, logger *slog.Logger) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		url:         url,
		maxAttempts: maxAttempts,
		backoffBase: 500 * time.Millisecond,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// SetBackoffBase overrides the retry backoff base, for tests.
func (d *Dispatcher) SetBackoffBase(base time.Duration) {
	d.backoffBase = base
}

// Dispatch delivers the payload, retrying on timeout, connection error, or
// non-2xx response until the attempt budget is exhausted. The returned
// Record reflects exactly what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Record {
	rec := Record{ID: uuid.New(), SessionID: p.SessionID}

	body, err := json.Marshal(p)
	if err != nil {
		rec.LastError = fmt.Sprintf("marshal payload: %v", err)
		rec.LastAttemptAt = time.Now().UTC()
		return rec
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		rec.Attempts = attempt
		rec.LastAttemptAt = time.Now().UTC()

		err := d.post(ctx, body)
		if err == nil {
			rec.Delivered = true
			rec.LastError = ""
			d.logger.Info("final callback delivered",
				"session_id", p.SessionID,
				"attempts", attempt,
			)
			return rec
		}
		rec.LastError = err.Error()
		d.logger.Warn("final callback attempt failed",
			"session_id", p.SessionID,
			"attempt", attempt,
			"error", err,
		)

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-time.After(d.backoffBase << (attempt - 1)):
		case <-ctx.Done():
			rec.LastError = ctx.Err().Error()
			return rec
		}
	}

	d.logger.Error("final callback exhausted retries",
		"session_id", p.SessionID,
		"attempts", rec.Attempts,
		"last_error", rec.LastError,
	)
	return rec
}

func (d *Dispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback status %d", resp.StatusCode)
	}
	return nil
}

// BuildNotes summarises what the engagement yielded, for the report body.
func BuildNotes(gathered intel.Intel) string {
	var details []string
	if len(gathered.PhishingLinks) > 0 {
		details = append(details, "Phishing link provided")
	}
	if len(gathered.UPIIDs) > 0 || len(gathered.BankAccounts) > 0 {
		details = append(details, "Payment details requested")
	}
	if len(gathered.PhoneNumbers) > 0 {
		details = append(details, "Phone number shared")
	}
	if len(gathered.SuspiciousKeywords) > 0 {
		details = append(details, "Suspicious language used")
	}
	if len(details) == 0 {
		details = append(details, "Scammer engaged with pressure tactics")
	}
	return strings.Join(details, "; ")
}
