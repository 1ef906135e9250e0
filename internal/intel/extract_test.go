package intel

import (
	"reflect"
	"testing"
)

func TestExtract_Phones(t *testing.T) {
	got := Extract("Call me at +91 98765 43210 right now")
	want := []string{"919876543210"}
	if !reflect.DeepEqual(got.PhoneNumbers, want) {
		t.Errorf("PhoneNumbers = %v, want %v", got.PhoneNumbers, want)
	}
}

func TestExtract_BankAccountExcludesPhones(t *testing.T) {
	// The 10-digit run is a phone number, not an account.
	got := Extract("Transfer to account 123456789012 or call 9876543210")
	if !reflect.DeepEqual(got.BankAccounts, []string{"123456789012"}) {
		t.Errorf("BankAccounts = %v, want [123456789012]", got.BankAccounts)
	}
	for _, acct := range got.BankAccounts {
		if acct == "9876543210" {
			t.Error("10-digit phone number misclassified as bank account")
		}
	}
}

func TestExtract_UPIAndLinks(t *testing.T) {
	got := Extract("Pay to refunds@okbank or visit HTTPS://verify-now.example.com/kyc.")
	if !reflect.DeepEqual(got.UPIIDs, []string{"refunds@okbank"}) {
		t.Errorf("UPIIDs = %v", got.UPIIDs)
	}
	if !reflect.DeepEqual(got.PhishingLinks, []string{"https://verify-now.example.com/kyc"}) {
		t.Errorf("PhishingLinks = %v", got.PhishingLinks)
	}
}

func TestExtract_Names(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"my name is", "Hello, my name is Rahul Sharma and I am calling about your account", []string{"rahul sharma"}},
		{"this is X from", "This is Priya from SBI security team", []string{"priya"}},
		{"no claim", "Your package is waiting", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got.Names, tt.want) {
				t.Errorf("Names = %v, want %v", got.Names, tt.want)
			}
		})
	}
}

func TestExtract_SuspiciousKeywords(t *testing.T) {
	got := Extract("URGENT: your account is blocked, verify your KYC")
	want := []string{"account", "blocked", "kyc", "urgent", "verify"}
	if !reflect.DeepEqual(got.SuspiciousKeywords, want) {
		t.Errorf("SuspiciousKeywords = %v, want %v", got.SuspiciousKeywords, want)
	}
}

func TestExtract_EmptyAndBenign(t *testing.T) {
	for _, text := range []string{"", "see you at lunch tomorrow"} {
		if got := Extract(text); !got.Empty() {
			t.Errorf("Extract(%q) = %+v, want empty", text, got)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	text := "Call +91 98765 43210, pay scam@upi, visit http://bad.example urgently"
	first := Extract(text)
	for i := 0; i < 5; i++ {
		if got := Extract(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("extraction not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestMerge_Union(t *testing.T) {
	a := Intel{PhoneNumbers: []string{"111"}, SuspiciousKeywords: []string{"otp"}}
	b := Intel{PhoneNumbers: []string{"222", "111"}, UPIIDs: []string{"x@y"}}

	got := a.Merge(b)
	if !reflect.DeepEqual(got.PhoneNumbers, []string{"111", "222"}) {
		t.Errorf("PhoneNumbers = %v", got.PhoneNumbers)
	}
	if !reflect.DeepEqual(got.UPIIDs, []string{"x@y"}) {
		t.Errorf("UPIIDs = %v", got.UPIIDs)
	}
	if !reflect.DeepEqual(got.SuspiciousKeywords, []string{"otp"}) {
		t.Errorf("SuspiciousKeywords = %v", got.SuspiciousKeywords)
	}
	// inputs untouched
	if len(a.PhoneNumbers) != 1 || len(b.PhoneNumbers) != 2 {
		t.Error("Merge modified its inputs")
	}
}

func TestMerge_NeverShrinks(t *testing.T) {
	acc := Intel{}
	deltas := []string{
		"call 9876543210",
		"pay to fraud@upi now",
		"nothing here",
		"visit http://phish.example",
	}
	prevCount := 0
	for _, text := range deltas {
		acc = acc.Merge(Extract(text))
		count := len(acc.PhoneNumbers) + len(acc.UPIIDs) + len(acc.PhishingLinks) + len(acc.SuspiciousKeywords)
		if count < prevCount {
			t.Fatalf("intel shrank after merging %q", text)
		}
		prevCount = count
	}
}

func TestMissingSlots(t *testing.T) {
	empty := Intel{}
	if got := empty.MissingSlots(); len(got) != 5 {
		t.Errorf("expected 5 missing slots, got %v", got)
	}

	partial := Intel{PhoneNumbers: []string{"111"}, UPIIDs: []string{"a@b"}}
	got := partial.MissingSlots()
	want := []string{"phishing", "bank", "suspicious"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingSlots = %v, want %v", got, want)
	}
}

func TestActionable(t *testing.T) {
	if (Intel{SuspiciousKeywords: []string{"otp"}}).Actionable() {
		t.Error("keywords alone should not be actionable")
	}
	if !(Intel{UPIIDs: []string{"a@b"}}).Actionable() {
		t.Error("UPI handle should be actionable")
	}
}
