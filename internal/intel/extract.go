package intel

import (
	"regexp"
	"sort"
	"strings"
)

var (
	digitRunPattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
	upiPattern      = regexp.MustCompile(`(?i)\b[a-z0-9._-]{2,}@[a-z]{2,}\b`)
	urlPattern      = regexp.MustCompile(`(?i)https?://\S+`)
	nonDigits       = regexp.MustCompile(`\D`)

	// Self-identification claims: "my name is Rahul", "this is Priya from SBI".
	namePattern     = regexp.MustCompile(`(?i)\bmy name is\s+([a-z]+(?:\s[a-z]+)?)`)
	nameFromPattern = regexp.MustCompile(`(?i)\bthis is\s+([a-z]+)\s+from\b`)
)

var suspiciousKeywords = []string{
	"urgent",
	"verify",
	"verification",
	"account",
	"blocked",
	"suspended",
	"kyc",
	"otp",
	"payment",
	"transfer",
	"upi",
	"gift card",
	"bitcoin",
	"crypto",
	"wire",
	"bank",
	"police",
	"court",
}

// Extract scans text for reportable artifacts and returns the delta. It is
// deterministic, has no side effects, and returns the zero Intel when
// nothing matches.
func Extract(text string) Intel {
	var out Intel
	lowered := strings.ToLower(text)

	for _, m := range digitRunPattern.FindAllString(text, -1) {
		d := nonDigits.ReplaceAllString(m, "")
		switch {
		case looksLikePhone(m, d):
			out.PhoneNumbers = appendUnique(out.PhoneNumbers, d)
		case len(d) >= 9 && len(d) <= 18:
			out.BankAccounts = appendUnique(out.BankAccounts, d)
		}
	}

	for _, m := range upiPattern.FindAllString(text, -1) {
		out.UPIIDs = appendUnique(out.UPIIDs, strings.ToLower(m))
	}

	for _, m := range urlPattern.FindAllString(text, -1) {
		out.PhishingLinks = appendUnique(out.PhishingLinks, strings.TrimRight(strings.ToLower(m), ").,;!"))
	}

	for _, pat := range []*regexp.Regexp{namePattern, nameFromPattern} {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			out.Names = appendUnique(out.Names, strings.ToLower(strings.TrimSpace(m[1])))
		}
	}

	for _, kw := range suspiciousKeywords {
		if strings.Contains(lowered, kw) {
			out.SuspiciousKeywords = appendUnique(out.SuspiciousKeywords, kw)
		}
	}

	sort.Strings(out.BankAccounts)
	sort.Strings(out.UPIIDs)
	sort.Strings(out.PhishingLinks)
	sort.Strings(out.PhoneNumbers)
	sort.Strings(out.Names)
	sort.Strings(out.SuspiciousKeywords)
	return out
}

// looksLikePhone decides whether a digit run is a phone number rather than
// an account number: an explicit + prefix, a bare 10-digit mobile, a
// 0-prefixed 11-digit trunk form, or a 12-digit run with a 91 country code.
func looksLikePhone(raw, digits string) bool {
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		return true
	}
	switch len(digits) {
	case 10:
		return true
	case 11:
		return strings.HasPrefix(digits, "0")
	case 12:
		return strings.HasPrefix(digits, "91")
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
