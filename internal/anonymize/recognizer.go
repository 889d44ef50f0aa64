package anonymize

import (
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"
)

// ProseRecognizer runs named entity recognition with the prose NLP
// library. Its pretrained model reports PERSON and GPE labels, a subset
// of the categories the tag table accepts.
type ProseRecognizer struct {
	logger *zap.Logger
}

// NewProseRecognizer creates a prose-backed entity recognizer.
func NewProseRecognizer(logger *zap.Logger) *ProseRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProseRecognizer{logger: logger}
}

// Entities extracts named entity spans from text. Recognition failures
// yield no entities rather than an error: the regex pass has already run
// and a degraded NER pass must not abort anonymization.
func (r *ProseRecognizer) Entities(text string) []Entity {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		r.logger.Warn("entity recognition failed", zap.Error(err))
		return nil
	}

	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}
	return out
}
