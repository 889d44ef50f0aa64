// Package anonymize strips personally identifying information from
// medical document text before it is stored or sent to any external
// service.
//
// Redaction runs in two passes: regular expressions for structured PII
// (dates, phone numbers, emails, addresses, identifiers), then named
// entity recognition for people, locations, organizations, and
// affiliations. The regex pass runs first so structured PII cannot be
// missed or misclassified by the entity model.
package anonymize

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Entity is a named entity span recognized in text.
type Entity struct {
	// Text is the entity's surface text as it appears in the document.
	Text string
	// Label is the entity category (PERSON, GPE, ORG, LOC, NORP).
	Label string
}

// EntityRecognizer extracts named entities from text.
type EntityRecognizer interface {
	Entities(text string) []Entity
}

// piiPattern pairs a category label with its detection pattern.
// Order matters: DOB must run before the generic DATE pattern so
// "DOB: 1957-03-02" is tagged as a date of birth, not a bare date.
type piiPattern struct {
	label string
	re    *regexp.Regexp
}

var piiPatterns = []piiPattern{
	{"DOB", regexp.MustCompile(`(?i)\b(?:DOB|Date of Birth)[:\s]*\d{2,4}[-/]\d{1,2}[-/]\d{1,2}`)},
	{"DATE", regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b|\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)},
	{"PHONE", regexp.MustCompile(`\+?\d{1,4}[-.\s]?(?:\d{3}[-.\s]?){2}\d{3,4}\b`)},
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ADDRESS", regexp.MustCompile(`(?i)\d{1,5}\s[\w\s]{1,30}\b(?:Street|St|Road|Rd|Ave|Avenue|Boulevard|Blvd|Lane|Ln|Way)\b`)},
	{"ID_NUMBER", regexp.MustCompile(`(?i)\b(?:Patient ID|ID|SSN|MRN)[:\s]*[A-Z0-9-]{5,}`)},
}

// entityTags maps recognizer labels to redaction markers. Labels not in
// this table pass through unredacted.
var entityTags = map[string]string{
	"PERSON": "REDACTED_NAME",
	"GPE":    "REDACTED_LOCATION",
	"LOC":    "REDACTED_LOCATION",
	"ORG":    "REDACTED_ORGANIZATION",
	"NORP":   "REDACTED_AFFILIATION",
}

// Anonymizer removes PHI from document text.
type Anonymizer struct {
	recognizer EntityRecognizer
	logger     *zap.Logger
}

// New creates an Anonymizer using the given entity recognizer.
func New(recognizer EntityRecognizer, logger *zap.Logger) *Anonymizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Anonymizer{recognizer: recognizer, logger: logger}
}

// Anonymize returns text with PHI replaced by category-tagged markers.
//
// Entity substitution is an exact replacement of the entity's surface
// text, so repeated identical entity strings are uniformly redacted.
// A surname that doubles as a common word can over-redact; that is an
// accepted tradeoff for uniform replacement.
func (a *Anonymizer) Anonymize(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, "[REDACTED_"+p.label+"]")
	}

	redacted := 0
	for _, ent := range a.recognizer.Entities(text) {
		tag, ok := entityTags[ent.Label]
		if !ok || ent.Text == "" {
			continue
		}
		if strings.Contains(text, ent.Text) {
			text = strings.ReplaceAll(text, ent.Text, "["+tag+"]")
			redacted++
		}
	}

	a.logger.Debug("anonymized document", zap.Int("entities_redacted", redacted))
	return text
}

// AnonymizeBatch applies Anonymize to each item independently,
// preserving order.
func (a *Anonymizer) AnonymizeBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = a.Anonymize(t)
	}
	return out
}
