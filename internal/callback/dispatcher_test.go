package callback

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/lure/internal/intel"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload() Payload {
	return Payload{
		SessionID:    "s1",
		ScamDetected: true,
		FinalScore:   0.85,
		Transcript: []session.Message{
			{Sender: session.SenderCounterpart, Text: "your account is blocked", Timestamp: "2026-08-01T10:00:00Z"},
			{Sender: session.SenderAgent, Text: "which account?", Timestamp: "2026-08-01T10:00:05Z"},
		},
		ExtractedIntelligence:  intel.Intel{PhoneNumbers: []string{"9876543210"}},
		TotalMessagesExchanged: 2,
		TerminationReason:      "turn_budget_exhausted",
		AgentNotes:             "Phone number shared",
	}
}

func newTestDispatcher(url string, maxAttempts int) *Dispatcher {
	d := NewDispatcher(url, time.Second, maxAttempts, discardLogger())
	d.SetBackoffBase(time.Millisecond)
	return d
}

func TestDispatch_Success(t *testing.T) {
	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := newTestDispatcher(server.URL, 3).Dispatch(context.Background(), testPayload())

	if !rec.Delivered {
		t.Fatalf("not delivered: %s", rec.LastError)
	}
	if rec.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", rec.Attempts)
	}
	if rec.LastError != "" {
		t.Errorf("last error = %q, want empty", rec.LastError)
	}
	if received.SessionID != "s1" || len(received.Transcript) != 2 {
		t.Errorf("payload round-trip broken: %+v", received)
	}
	if !received.ScamDetected {
		t.Error("scamDetected lost in transit")
	}
}

func TestDispatch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := newTestDispatcher(server.URL, 5).Dispatch(context.Background(), testPayload())

	if !rec.Delivered {
		t.Fatalf("not delivered after recovery: %s", rec.LastError)
	}
	if rec.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.Attempts)
	}
}

func TestDispatch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	const maxAttempts = 3
	rec := newTestDispatcher(server.URL, maxAttempts).Dispatch(context.Background(), testPayload())

	if rec.Delivered {
		t.Fatal("delivered despite permanent 500s")
	}
	if rec.Attempts != maxAttempts {
		t.Errorf("attempts = %d, want %d", rec.Attempts, maxAttempts)
	}
	if int(calls.Load()) != maxAttempts {
		t.Errorf("server saw %d calls, want %d", calls.Load(), maxAttempts)
	}
	if rec.LastError == "" {
		t.Error("failure record missing last error")
	}
}

func TestDispatch_ConnectionError(t *testing.T) {
	// Point at a closed server.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	rec := newTestDispatcher(server.URL, 2).Dispatch(context.Background(), testPayload())
	if rec.Delivered {
		t.Fatal("delivered to a closed server")
	}
	if rec.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", rec.Attempts)
	}
}

func TestDispatch_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDispatcher(server.URL, time.Second, 10, discardLogger())
	d.SetBackoffBase(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	rec := d.Dispatch(ctx, testPayload())
	if rec.Delivered {
		t.Fatal("delivered after cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt backoff")
	}
}

func TestBuildNotes(t *testing.T) {
	tests := []struct {
		name     string
		gathered intel.Intel
		want     string
	}{
		{"nothing", intel.Intel{}, "Scammer engaged with pressure tactics"},
		{"phone only", intel.Intel{PhoneNumbers: []string{"1"}}, "Phone number shared"},
		{
			"link and payment",
			intel.Intel{PhishingLinks: []string{"http://x"}, UPIIDs: []string{"a@b"}},
			"Phishing link provided; Payment details requested",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildNotes(tt.gathered); got != tt.want {
				t.Errorf("BuildNotes = %q, want %q", got, tt.want)
			}
		})
	}
}
