// Package assess scores how likely a conversation is a scam. The score is
// recomputed from the full history every turn, so it can move in either
// direction as evidence accumulates; it is never carried forward
// incrementally.
package assess

import (
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/lure/internal/intel"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

// SignalThresholdCrossed is recorded when the score reaches the engagement
// threshold, for audit of why a session went active.
const SignalThresholdCrossed = "threshold_crossed"

// Assessment is the outcome of scoring one conversation state.
type Assessment struct {
	Score   float64  `json:"score"`
	Signals []string `json:"signals"`
}

// Engaged reports whether the threshold was crossed.
func (a Assessment) Engaged() bool {
	for _, s := range a.Signals {
		if s == SignalThresholdCrossed {
			return true
		}
	}
	return false
}

// Quiet reports whether this turn produced essentially no evidence.
func (a Assessment) Quiet() bool {
	return a.Score < 0.05 && len(a.Signals) == 0
}

var keywordWeights = map[string]float64{
	"urgent":       0.15,
	"immediately":  0.12,
	"verify":       0.12,
	"verification": 0.10,
	"account":      0.08,
	"suspended":    0.12,
	"blocked":      0.12,
	"kyc":          0.12,
	"otp":          0.10,
	"password":     0.10,
	"bank":         0.08,
	"police":       0.20,
	"court":        0.20,
	"fine":         0.15,
	"penalty":      0.12,
	"payment":      0.08,
	"transfer":     0.10,
	"upi":          0.12,
	"gift card":    0.18,
	"bitcoin":      0.20,
	"crypto":       0.15,
	"wire":         0.10,
}

// keywordOrder fixes the summation order. Iterating the map directly would
// sum the weights in a different order each call, and float addition is not
// associative, so identical input could score differently at the last bit.
var keywordOrder = sortedKeywords()

func sortedKeywords() []string {
	keys := make([]string, 0, len(keywordWeights))
	for kw := range keywordWeights {
		keys = append(keys, kw)
	}
	sort.Strings(keys)
	return keys
}

// Engine scores conversations against a fixed engagement threshold.
type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Assess computes the scam likelihood for the whole history plus the intel
// gathered so far. Deterministic for identical inputs; empty and
// single-message histories score like any other.
func (e *Engine) Assess(history []session.Message, gathered intel.Intel) Assessment {
	var sb strings.Builder
	for _, msg := range history {
		if msg.Sender != session.SenderCounterpart {
			continue
		}
		sb.WriteString(strings.ToLower(msg.Text))
		sb.WriteByte('\n')
	}
	combined := sb.String()

	score := 0.0
	signals := make([]string, 0, 4)
	for _, kw := range keywordOrder {
		if strings.Contains(combined, kw) {
			signals = append(signals, kw)
			score += keywordWeights[kw]
		}
	}

	if len(gathered.PhishingLinks) > 0 {
		signals = append(signals, "url")
		score += 0.20
	}
	if len(gathered.PhoneNumbers) > 0 {
		signals = append(signals, "phone")
		score += 0.10
	}
	if len(gathered.UPIIDs) > 0 || len(gathered.BankAccounts) > 0 {
		signals = append(signals, "payment_handle")
		score += 0.10
	}

	if score > 1.0 {
		score = 1.0
	}
	if score >= e.threshold {
		signals = append(signals, SignalThresholdCrossed)
	}

	sort.Strings(signals)
	if len(signals) == 0 {
		signals = nil
	}
	return Assessment{Score: score, Signals: signals}
}
