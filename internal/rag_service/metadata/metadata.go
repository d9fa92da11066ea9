// Package metadata pulls structured facts out of document text at
// ingestion time. The result is stored on the document record as JSON and
// returned by the documents API; it never feeds back into retrieval
// scoring.
package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// Metadata holds the entities recognized in a document's text. Slices keep
// first-occurrence order and contain no duplicates.
type Metadata struct {
	Emails       []string `json:"emails,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	Dates        []string `json:"dates,omitempty"`
}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{10}\b`),                         // 10 digits
		regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),  // XXX-XXX-XXXX or XXX.XXX.XXXX
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),      // (XXX) XXX-XXXX
		regexp.MustCompile(`\+\d{1,3}[-.\s]?\d{4,14}`),           // international format
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),     // 2024-03-15
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), // 3/15/2024
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.? \d{1,2}(?:st|nd|rd|th)?,? \d{4}\b`),
	}
)

// Extract scans text for emails, phone numbers and dates.
func Extract(text string) Metadata {
	var m Metadata
	m.Emails = dedup(emailPattern.FindAllString(text, -1))

	var phones []string
	for _, p := range phonePatterns {
		phones = append(phones, p.FindAllString(text, -1)...)
	}
	m.PhoneNumbers = dedup(phones)

	var dates []string
	for _, p := range datePatterns {
		dates = append(dates, p.FindAllString(text, -1)...)
	}
	m.Dates = dedup(dates)

	return m
}

// IsEmpty reports whether nothing was recognized.
func (m Metadata) IsEmpty() bool {
	return len(m.Emails) == 0 && len(m.PhoneNumbers) == 0 && len(m.Dates) == 0
}

// Summary renders the recognized entities as human-readable lines, one
// category per line. Dates are capped at five; an empty result returns "".
func (m Metadata) Summary() string {
	var lines []string
	if len(m.Emails) > 0 {
		lines = append(lines, fmt.Sprintf("📧 Emails: %s", strings.Join(m.Emails, ", ")))
	}
	if len(m.PhoneNumbers) > 0 {
		lines = append(lines, fmt.Sprintf("📞 Phone Numbers: %s", strings.Join(m.PhoneNumbers, ", ")))
	}
	if len(m.Dates) > 0 {
		lines = append(lines, fmt.Sprintf("📅 Dates: %s", strings.Join(limit(m.Dates, 5), ", ")))
	}
	return strings.Join(lines, "\n")
}

// dedup removes duplicates while keeping first-occurrence order.
func dedup(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func limit(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}
