package metadata

import (
	"strings"
	"testing"
)

func TestExtractEmails(t *testing.T) {
	text := "Contact alice@example.com or bob.smith+tag@corp.co.uk. Again: alice@example.com."
	m := Extract(text)

	want := []string{"alice@example.com", "bob.smith+tag@corp.co.uk"}
	if len(m.Emails) != len(want) {
		t.Fatalf("emails = %v, want %v", m.Emails, want)
	}
	for i, e := range want {
		if m.Emails[i] != e {
			t.Errorf("emails[%d] = %q, want %q", i, m.Emails[i], e)
		}
	}
}

func TestExtractPhoneNumbers(t *testing.T) {
	text := "Call 555-123-4567 or (555) 987-6543, intl +44 2079460958."
	m := Extract(text)

	for _, want := range []string{"555-123-4567", "(555) 987-6543"} {
		found := false
		for _, got := range m.PhoneNumbers {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("phone numbers %v missing %q", m.PhoneNumbers, want)
		}
	}
}

func TestExtractDates(t *testing.T) {
	text := "Signed 2024-03-15, effective 4/1/2024, expires March 15, 2025."
	m := Extract(text)

	if len(m.Dates) != 3 {
		t.Fatalf("dates = %v, want 3 entries", m.Dates)
	}
	if m.Dates[0] != "2024-03-15" {
		t.Errorf("dates[0] = %q, want 2024-03-15", m.Dates[0])
	}
}

func TestExtractNothing(t *testing.T) {
	m := Extract("plain prose without any extractable entities")
	if !m.IsEmpty() {
		t.Fatalf("expected empty metadata, got %+v", m)
	}
	if m.Summary() != "" {
		t.Errorf("Summary() = %q, want empty", m.Summary())
	}
}

func TestSummaryLinesAndDateCap(t *testing.T) {
	m := Metadata{
		Emails: []string{"a@b.com"},
		Dates:  []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06"},
	}

	s := m.Summary()
	lines := strings.Split(s, "\n")
	if len(lines) != 2 {
		t.Fatalf("Summary() = %q, want 2 lines", s)
	}
	if lines[0] != "📧 Emails: a@b.com" {
		t.Errorf("line[0] = %q", lines[0])
	}
	if strings.Contains(lines[1], "2024-01-06") {
		t.Errorf("dates line not capped at five: %q", lines[1])
	}
	if !strings.Contains(lines[1], "2024-01-05") {
		t.Errorf("dates line missing fifth entry: %q", lines[1])
	}
}
