// Package intel extracts structured artifacts — phone numbers, bank
// accounts, payment handles, links, identity claims — from scammer message
// text. Extraction is a pure function of the text; the cumulative Intel on a
// session only ever grows by set union.
package intel

import "sort"

// Intel maps entity kinds to deduplicated, sorted value sets.
type Intel struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	Names              []string `json:"names"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// Merge returns the set union of i and delta. Neither input is modified.
func (i Intel) Merge(delta Intel) Intel {
	return Intel{
		BankAccounts:       union(i.BankAccounts, delta.BankAccounts),
		UPIIDs:             union(i.UPIIDs, delta.UPIIDs),
		PhishingLinks:      union(i.PhishingLinks, delta.PhishingLinks),
		PhoneNumbers:       union(i.PhoneNumbers, delta.PhoneNumbers),
		Names:              union(i.Names, delta.Names),
		SuspiciousKeywords: union(i.SuspiciousKeywords, delta.SuspiciousKeywords),
	}
}

// Clone returns a deep copy.
func (i Intel) Clone() Intel {
	return Intel{
		BankAccounts:       append([]string(nil), i.BankAccounts...),
		UPIIDs:             append([]string(nil), i.UPIIDs...),
		PhishingLinks:      append([]string(nil), i.PhishingLinks...),
		PhoneNumbers:       append([]string(nil), i.PhoneNumbers...),
		Names:              append([]string(nil), i.Names...),
		SuspiciousKeywords: append([]string(nil), i.SuspiciousKeywords...),
	}
}

// Empty reports whether nothing has been extracted at all.
func (i Intel) Empty() bool {
	return len(i.BankAccounts) == 0 && len(i.UPIIDs) == 0 && len(i.PhishingLinks) == 0 &&
		len(i.PhoneNumbers) == 0 && len(i.Names) == 0 && len(i.SuspiciousKeywords) == 0
}

// Actionable reports whether any directly reportable artifact was captured —
// the kinds worth keeping a scammer on the line for.
func (i Intel) Actionable() bool {
	return len(i.BankAccounts) > 0 || len(i.UPIIDs) > 0 ||
		len(i.PhishingLinks) > 0 || len(i.PhoneNumbers) > 0
}

// Slot names for intel the persona still wants to elicit, in probe order.
const (
	SlotUPI      = "upi"
	SlotPhone    = "phone"
	SlotPhishing = "phishing"
	SlotBank     = "bank"
	SlotKeywords = "suspicious"
)

// MissingSlots lists the entity kinds not yet captured, in probe order.
func (i Intel) MissingSlots() []string {
	var missing []string
	if len(i.UPIIDs) == 0 {
		missing = append(missing, SlotUPI)
	}
	if len(i.PhoneNumbers) == 0 {
		missing = append(missing, SlotPhone)
	}
	if len(i.PhishingLinks) == 0 {
		missing = append(missing, SlotPhishing)
	}
	if len(i.BankAccounts) == 0 {
		missing = append(missing, SlotBank)
	}
	if len(i.SuspiciousKeywords) == 0 {
		missing = append(missing, SlotKeywords)
	}
	return missing
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
