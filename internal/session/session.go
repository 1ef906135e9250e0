package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/lure/internal/intel"
)

// Sender identifies which side of the conversation produced a message.
// Wire values match the inbound API: the counterpart is the suspected
// scammer, the agent is the honeypot persona.
type Sender string

const (
	SenderCounterpart Sender = "scammer"
	SenderAgent       Sender = "user"
)

// Message is a single conversation entry. Immutable once recorded.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Metadata is caller-supplied channel context, immutable after creation.
type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// Status is the engagement state machine.
type Status string

const (
	StatusActive          Status = "ACTIVE"
	StatusEngaging        Status = "ENGAGING"
	StatusTerminated      Status = "TERMINATED"
	StatusCallbackPending Status = "CALLBACK_PENDING"
	StatusCallbackSent    Status = "CALLBACK_SENT"
	StatusCallbackFailed  Status = "CALLBACK_FAILED"
)

// Closed reports whether the engagement is over. Closed sessions accept no
// further messages; the only remaining side effect is callback delivery.
func (s Status) Closed() bool {
	switch s {
	case StatusTerminated, StatusCallbackPending, StatusCallbackSent, StatusCallbackFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is legal.
func (s Status) Terminal() bool {
	return s == StatusCallbackSent || s == StatusCallbackFailed
}

var legalTransitions = map[Status][]Status{
	StatusActive:          {StatusEngaging, StatusTerminated},
	StatusEngaging:        {StatusTerminated},
	StatusTerminated:      {StatusCallbackPending},
	StatusCallbackPending: {StatusCallbackSent, StatusCallbackFailed},
}

var (
	ErrTerminalState   = errors.New("session is in a terminal state")
	ErrHistoryConflict = errors.New("supplied history conflicts with stored history")
)

// Session is the aggregate root for one honeypot conversation. All mutation
// happens through the Store under the session's own lock; other components
// see read-only snapshots.
type Session struct {
	ID                string
	Metadata          Metadata
	History           []Message
	TurnCount         int
	Score             float64
	Signals           []string
	Intel             intel.Intel
	Status            Status
	CreatedAt         time.Time
	LastActivityAt    time.Time
	TerminationReason string
	LastReply         string

	// QuietStreak counts consecutive counterpart turns with a near-zero
	// score and no signals, used for stagnation-based disengagement.
	QuietStreak int
}

func newSession(id string, md Metadata, now time.Time) *Session {
	return &Session{
		ID:             id,
		Metadata:       md,
		Status:         StatusActive,
		Intel:          intel.Intel{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Transition moves the session to the given status, validating legality.
// A self-transition is a no-op. Any transition out of a terminal state, or
// one not in the state machine, is a precondition violation.
func (s *Session) Transition(to Status) error {
	if s.Status == to {
		return nil
	}
	if s.Status.Terminal() {
		return fmt.Errorf("transition %s -> %s: %w", s.Status, to, ErrTerminalState)
	}
	for _, next := range legalTransitions[s.Status] {
		if next == to {
			s.Status = to
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", s.Status, to)
}

// Reconcile checks a caller-supplied history against the stored one. The
// stored history is authoritative; the supplied view is only used to detect
// replays and irreconcilable conflicts. Messages are compared by sender and
// text — caller timestamps drift too much to be part of identity.
func (s *Session) Reconcile(supplied []Message) error {
	n := len(supplied)
	if len(s.History) < n {
		n = len(s.History)
	}
	for i := 0; i < n; i++ {
		if supplied[i].Sender != s.History[i].Sender || supplied[i].Text != s.History[i].Text {
			return fmt.Errorf("position %d: %w", i, ErrHistoryConflict)
		}
	}
	return nil
}

// RecordCounterpart appends a counterpart message and increments the turn
// count exactly once. Resubmitting the message most recently recorded is a
// replay: it is accepted silently without growing history or turn count.
func (s *Session) RecordCounterpart(msg Message, now time.Time) (accepted bool, err error) {
	if s.Status.Closed() {
		return false, ErrTerminalState
	}
	if last, ok := s.lastCounterpart(); ok && last.Sender == msg.Sender && last.Text == msg.Text && last.Timestamp == msg.Timestamp {
		return false, nil
	}
	s.History = append(s.History, msg)
	s.TurnCount++
	s.LastActivityAt = now
	return true, nil
}

// RecordAgent appends the agent's reply.
func (s *Session) RecordAgent(text string, now time.Time) error {
	if s.Status.Closed() {
		return ErrTerminalState
	}
	s.History = append(s.History, Message{
		Sender:    SenderAgent,
		Text:      text,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	s.LastReply = text
	s.LastActivityAt = now
	return nil
}

func (s *Session) lastCounterpart() (Message, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Sender == SenderCounterpart {
			return s.History[i], true
		}
	}
	return Message{}, false
}

// Snapshot returns a deep copy safe to use outside the session lock.
func (s *Session) Snapshot() Session {
	cp := *s
	cp.History = append([]Message(nil), s.History...)
	cp.Signals = append([]string(nil), s.Signals...)
	cp.Intel = s.Intel.Clone()
	return cp
}
