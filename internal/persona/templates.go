package persona

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/lure/internal/session"
)

var confusedReplies = []string{
	"Sorry, I'm a bit lost. What's this about?",
	"I don't remember signing up. Can you explain?",
	"Wait, which account are you talking about?",
}

var clarifyReplies = []string{
	"I got your message but I'm not sure what you need.",
	"Why do I have to do this now?",
	"Is this about a bill or something else?",
}

var stallReplies = []string{
	"I'm driving. Can I check later?",
	"I need a minute to look at this.",
	"Let me see, I'm not at my computer.",
}

var probeReplies = []string{
	"I got a warning, but it didn't say why.",
	"It says my account is blocked. What should I do?",
	"I'm worried this is a mistake. Can you explain?",
	"Which department is calling me?",
	"What's your employee ID and branch name?",
	"Can you share the official verification link?",
}

var passiveReplies = []string{
	"Sorry, who is this?",
	"I think you have the wrong number.",
	"Who gave you this contact?",
}

// slotPrompts elicit the intel kinds we have not captured yet.
var slotPrompts = map[string]string{
	"upi":        "If you sent a collect request, what's the UPI handle so I can verify?",
	"phone":      "Can you share the caller number and an alternate number?",
	"phishing":   "Please share the official verification link from your site.",
	"bank":       "Which bank account should I see the collect request from?",
	"suspicious": "Do you have a reference or ticket number for this?",
}

// pickReply selects deterministically from options, seeded by session id and
// turn, never repeating the previous agent reply.
func pickReply(options []string, view session.Session) string {
	if len(options) == 0 {
		return "Okay."
	}
	seed := fmt.Sprintf("%s:%d", view.ID, view.TurnCount)
	sum := sha256.Sum256([]byte(seed))
	idx := int(binary.BigEndian.Uint64(sum[:8]) % uint64(len(options)))
	reply := options[idx]
	if reply == view.LastReply {
		reply = options[(idx+1)%len(options)]
	}
	return reply
}

// templateReply is the deterministic fallback used when generation is
// unavailable. It keys off the latest counterpart message and the intel
// slots still missing.
func templateReply(view session.Session) string {
	if view.Status == session.StatusActive {
		return avoidRepeat(pickReply(passiveReplies, view), view)
	}

	var latest string
	for i := len(view.History) - 1; i >= 0; i-- {
		if view.History[i].Sender == session.SenderCounterpart {
			latest = view.History[i].Text
			break
		}
	}
	lowered := strings.ToLower(latest)

	var reply string
	switch {
	case strings.Contains(lowered, "otp") || strings.Contains(lowered, "password"):
		reply = "I don't share codes. Which department is this, and what's your employee ID?"
	case strings.Contains(lowered, "upi") || strings.Contains(lowered, "bank") ||
		strings.Contains(lowered, "account") || strings.Contains(lowered, "payment"):
		reply = "I don't see anything on my side. What's your employee ID and branch name?"
	case strings.Contains(lowered, "link") || strings.Contains(lowered, "click") || strings.Contains(lowered, "http"):
		reply = "I can't open links right now. Can you share the official verification link?"
	case strings.Contains(lowered, "bot"):
		reply = "No, I'm just confused. Who is this?"
	default:
		if slot := nextSlot(view); slot != "" {
			reply = slotPrompts[slot]
		} else {
			buckets := [][]string{probeReplies, clarifyReplies, confusedReplies, stallReplies}
			reply = pickReply(buckets[view.TurnCount%len(buckets)], view)
		}
	}
	return avoidRepeat(reply, view)
}

func nextSlot(view session.Session) string {
	for _, slot := range view.Intel.MissingSlots() {
		if _, ok := slotPrompts[slot]; ok {
			return slot
		}
	}
	return ""
}

func avoidRepeat(reply string, view session.Session) string {
	if reply != view.LastReply {
		return reply
	}
	if alt := pickReply(probeReplies, view); alt != reply {
		return alt
	}
	return "I need a moment to check."
}
