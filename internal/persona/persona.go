// Package persona produces the honeypot's next utterance. The primary path
// asks the generation capability under a bounded timeout; on any failure it
// degrades to a deterministic template set so a turn never aborts because
// the provider is down.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/lure/internal/assess"
	"github.com/MikeSquared-Agency/lure/internal/llm"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

const maxReplyTokens = 256

// Config describes the persona the agent plays.
type Config struct {
	Name       string
	GenTimeout time.Duration
}

type Generator struct {
	completer llm.Completer
	cfg       Config
	logger    *slog.Logger
}

// New builds a Generator. A nil completer yields a template-only generator,
// which is how tests and keyless deployments run.
func New(completer llm.Completer, cfg Config, logger *slog.Logger) *Generator {
	return &Generator{completer: completer, cfg: cfg, logger: logger}
}

// Reply produces the agent's next utterance for the session view. The
// degraded flag reports that generation was unavailable and a template was
// used instead; it is informational, never an error.
func (g *Generator) Reply(ctx context.Context, view session.Session, a assess.Assessment) (reply string, degraded bool) {
	if g.completer == nil {
		return templateReply(view), true
	}

	genCtx := ctx
	if g.cfg.GenTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, g.cfg.GenTimeout)
		defer cancel()
	}

	text, err := g.completer.Complete(genCtx, g.systemPrompt(view, a), historyMessages(view), maxReplyTokens)
	if err != nil {
		g.logger.Warn("generation failed, falling back to templates",
			"session_id", view.ID,
			"error", err,
		)
		return templateReply(view), true
	}

	text = strings.TrimSpace(text)
	if text == "" || text == view.LastReply {
		return templateReply(view), true
	}
	return text, false
}

func (g *Generator) systemPrompt(view session.Session, a assess.Assessment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an ordinary person replying to messages on %s.\n", g.cfg.Name, channelOr(view, "chat"))
	sb.WriteString("The other party is a suspected scammer. Stay in character: slightly confused, cooperative, never revealing you suspect anything.\n")
	sb.WriteString("Goals: keep them talking and get them to reveal a phone number, bank account or UPI handle, a link, and who they claim to be.\n")
	sb.WriteString("Never share real codes, passwords, or personal data. Keep replies under two sentences.\n")
	if missing := view.Intel.MissingSlots(); len(missing) > 0 {
		fmt.Fprintf(&sb, "Still missing: %s. Steer toward it naturally.\n", strings.Join(missing, ", "))
	}
	fmt.Fprintf(&sb, "Current scam score: %.2f.", a.Score)
	return sb.String()
}

func historyMessages(view session.Session) []llm.Message {
	msgs := make([]llm.Message, 0, len(view.History))
	for _, m := range view.History {
		role := "user"
		if m.Sender == session.SenderAgent {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	return msgs
}

func channelOr(view session.Session, fallback string) string {
	if view.Metadata.Channel != "" {
		return view.Metadata.Channel
	}
	return fallback
}
