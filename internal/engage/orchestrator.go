// Package engage composes the honeypot pipeline for one inbound message:
// extract, assess, decide, respond or terminate, and — once a session
// terminates — hand the final report to the callback dispatcher.
package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/lure/internal/assess"
	"github.com/MikeSquared-Agency/lure/internal/callback"
	"github.com/MikeSquared-Agency/lure/internal/events"
	"github.com/MikeSquared-Agency/lure/internal/intel"
	"github.com/MikeSquared-Agency/lure/internal/persona"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

// Termination reasons recorded on the session and reported in the callback.
const (
	ReasonTurnBudget = "turn_budget_exhausted"
	ReasonDisengaged = "counterpart_disengaged"
	ReasonStagnant   = "conversation_stagnant"
)

// terminationAck is returned once a session is closed; no further persona
// replies are generated.
const terminationAck = "Sorry, I have to go now."

var ErrValidation = errors.New("invalid request")

// Request is one inbound counterpart message plus the caller's view of the
// conversation so far.
type Request struct {
	SessionID string
	Message   session.Message
	History   []session.Message
	Metadata  session.Metadata
}

// Response is what the caller gets back: either the agent's next reply or a
// termination acknowledgment.
type Response struct {
	SessionID  string
	Reply      string
	Status     session.Status
	Terminated bool
	Degraded   bool
}

// DisengagePredicate decides whether the counterpart's latest message ends
// the engagement. Pluggable so heuristics stay out of the state machine.
type DisengagePredicate func(msg session.Message, a assess.Assessment) bool

// Archive persists terminated sessions and callback accounting. Optional.
type Archive interface {
	WriteReport(ctx context.Context, sess session.Session) (uuid.UUID, error)
	WriteCallbackRecord(ctx context.Context, rec callback.Record) error
}

// EventPublisher fans session events out to the fleet. Optional.
type EventPublisher interface {
	Publish(subject string, data any) error
}

type Orchestrator struct {
	sessions   *session.Store
	engine     *assess.Engine
	generator  *persona.Generator
	dispatcher *callback.Dispatcher
	archive    Archive
	publisher  EventPublisher
	disengage  DisengagePredicate
	maxTurns   int
	quietTurns int
	logger     *slog.Logger

	mu      sync.Mutex
	records map[string]callback.Record

	dispatches sync.WaitGroup
}

type Options struct {
	MaxTurns   int
	QuietTurns int
	Disengage  DisengagePredicate // nil uses DefaultDisengage
	Archive    Archive            // nil disables archiving
	Publisher  EventPublisher     // nil disables events
}

func New(sessions *session.Store, engine *assess.Engine, gen *persona.Generator, dispatcher *callback.Dispatcher, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Disengage == nil {
		opts.Disengage = DefaultDisengage
	}
	return &Orchestrator{
		sessions:   sessions,
		engine:     engine,
		generator:  gen,
		dispatcher: dispatcher,
		archive:    opts.Archive,
		publisher:  opts.Publisher,
		disengage:  opts.Disengage,
		maxTurns:   opts.MaxTurns,
		quietTurns: opts.QuietTurns,
		logger:     logger,
		records:    make(map[string]callback.Record),
	}
}

// ProcessMessage runs one turn. The turn gate holds off other requests for
// the same session until this one fully commits, replies included; the state
// lock is still released around generation and callback I/O so status reads
// and delivery stay unblocked.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) (Response, error) {
	if req.SessionID == "" {
		return Response{}, fmt.Errorf("%w: missing session id", ErrValidation)
	}

	endTurn := o.sessions.BeginTurn(req.SessionID, req.Metadata)
	defer endTurn()

	s, release := o.sessions.Acquire(req.SessionID, req.Metadata)

	if s.Status.Closed() {
		resp := Response{SessionID: s.ID, Reply: terminationAck, Status: s.Status, Terminated: true}
		release()
		return resp, nil
	}

	if err := s.Reconcile(req.History); err != nil {
		release()
		return Response{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// An echo of our own reply carries no new evidence; acknowledge the
	// current state without consuming a turn.
	if req.Message.Sender == session.SenderAgent {
		resp := Response{SessionID: s.ID, Reply: s.LastReply, Status: s.Status}
		release()
		return resp, nil
	}

	accepted, err := s.RecordCounterpart(req.Message, time.Now())
	if err != nil {
		release()
		return Response{}, err
	}

	delta := intel.Extract(req.Message.Text)
	s.Intel = s.Intel.Merge(delta)

	a := o.engine.Assess(s.History, s.Intel)
	s.Score = a.Score
	s.Signals = a.Signals

	if accepted {
		// Stagnation is judged on what this turn contributed, not the
		// cumulative score — that stays high forever once evidence exists.
		turnEvidence := o.engine.Assess([]session.Message{req.Message}, delta)
		if turnEvidence.Quiet() {
			s.QuietStreak++
		} else {
			s.QuietStreak = 0
		}
	}

	o.logger.Info("turn assessed",
		"session_id", s.ID,
		"turn", s.TurnCount,
		"score", a.Score,
		"signals", a.Signals,
		"accepted", accepted,
	)

	if reason := o.terminationReason(s, req.Message, a); reason != "" {
		return o.terminate(s, release, a, reason)
	}

	if a.Engaged() && s.Status == session.StatusActive {
		if err := s.Transition(session.StatusEngaging); err != nil {
			release()
			return Response{}, err
		}
	}

	// Snapshot and release before generation so a slow provider never
	// blocks other sessions or holds this one's lock.
	view := s.Snapshot()
	release()

	reply, degraded := o.generator.Reply(ctx, view, a)
	if degraded {
		o.logger.Info("template fallback used", "session_id", view.ID, "turn", view.TurnCount)
	}

	s, release = o.sessions.Acquire(req.SessionID, req.Metadata)
	defer release()
	if s.Status.Closed() {
		// Terminated while we were generating; drop the reply.
		return Response{SessionID: s.ID, Reply: terminationAck, Status: s.Status, Terminated: true}, nil
	}
	if err := s.RecordAgent(reply, time.Now()); err != nil {
		return Response{}, err
	}

	return Response{
		SessionID: s.ID,
		Reply:     reply,
		Status:    s.Status,
		Degraded:  degraded,
	}, nil
}

func (o *Orchestrator) terminationReason(s *session.Session, msg session.Message, a assess.Assessment) string {
	if o.maxTurns > 0 && s.TurnCount > o.maxTurns {
		return ReasonTurnBudget
	}
	if o.disengage(msg, a) {
		return ReasonDisengaged
	}
	if o.quietTurns > 0 && s.Status == session.StatusEngaging && s.QuietStreak >= o.quietTurns {
		return ReasonStagnant
	}
	return ""
}

// terminate moves the session through TERMINATED into CALLBACK_PENDING and
// kicks off delivery. Both transitions happen under the session lock, so the
// dispatcher is started at most once per session.
func (o *Orchestrator) terminate(s *session.Session, release func(), a assess.Assessment, reason string) (Response, error) {
	scamDetected := s.Status == session.StatusEngaging || a.Engaged()
	s.TerminationReason = reason

	if err := s.Transition(session.StatusTerminated); err != nil {
		release()
		return Response{}, err
	}
	if err := s.Transition(session.StatusCallbackPending); err != nil {
		release()
		return Response{}, err
	}
	snap := s.Snapshot()
	release()

	o.logger.Info("session terminated",
		"session_id", snap.ID,
		"reason", reason,
		"turns", snap.TurnCount,
		"score", snap.Score,
	)

	o.dispatches.Add(1)
	go o.deliver(snap, scamDetected)

	return Response{
		SessionID:  snap.ID,
		Reply:      terminationAck,
		Status:     session.StatusCallbackPending,
		Terminated: true,
	}, nil
}

// deliver runs off the request path: the triggering request has already
// returned by the time delivery is known.
func (o *Orchestrator) deliver(snap session.Session, scamDetected bool) {
	defer o.dispatches.Done()
	ctx := context.Background()

	if o.archive != nil {
		if _, err := o.archive.WriteReport(ctx, snap); err != nil {
			o.logger.Error("failed to archive session report", "session_id", snap.ID, "error", err)
		}
	}

	rec := o.dispatcher.Dispatch(ctx, callback.Payload{
		SessionID:              snap.ID,
		ScamDetected:           scamDetected,
		FinalScore:             snap.Score,
		TotalMessagesExchanged: len(snap.History),
		Transcript:             snap.History,
		ExtractedIntelligence:  snap.Intel,
		TerminationReason:      snap.TerminationReason,
		AgentNotes:             callback.BuildNotes(snap.Intel),
	})

	o.mu.Lock()
	o.records[snap.ID] = rec
	o.mu.Unlock()

	final := session.StatusCallbackSent
	if !rec.Delivered {
		final = session.StatusCallbackFailed
	}
	s, release := o.sessions.Acquire(snap.ID, snap.Metadata)
	if err := s.Transition(final); err != nil {
		o.logger.Error("callback status transition failed", "session_id", snap.ID, "error", err)
	}
	release()

	if o.archive != nil {
		if err := o.archive.WriteCallbackRecord(ctx, rec); err != nil {
			o.logger.Error("failed to archive callback record", "session_id", snap.ID, "error", err)
		}
	}

	if o.publisher != nil {
		intelCount := len(snap.Intel.BankAccounts) + len(snap.Intel.UPIIDs) +
			len(snap.Intel.PhishingLinks) + len(snap.Intel.PhoneNumbers) + len(snap.Intel.Names)
		if err := o.publisher.Publish(events.SubjectSessionTerminated, events.SessionTerminated{
			SessionID:         snap.ID,
			FinalScore:        snap.Score,
			TurnCount:         snap.TurnCount,
			TerminationReason: snap.TerminationReason,
			IntelCount:        intelCount,
		}); err != nil {
			o.logger.Warn("failed to publish termination event", "error", err)
		}
		if !rec.Delivered {
			if err := o.publisher.Publish(events.SubjectCallbackFailed, events.CallbackFailed{
				SessionID: snap.ID,
				Attempts:  rec.Attempts,
				LastError: rec.LastError,
			}); err != nil {
				o.logger.Warn("failed to publish callback failure", "error", err)
			}
		}
	}
}

// CallbackRecord returns delivery accounting for a session, once known.
func (o *Orchestrator) CallbackRecord(sessionID string) (callback.Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[sessionID]
	return rec, ok
}

// SessionStatus returns a read-only snapshot for the status endpoint.
func (o *Orchestrator) SessionStatus(sessionID string) (session.Session, bool) {
	return o.sessions.Get(sessionID)
}

// Drain blocks until all in-flight callback deliveries finish. Used on
// shutdown and in tests.
func (o *Orchestrator) Drain() {
	o.dispatches.Wait()
}
