package moderation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Default classifier score thresholds, tuned for strong recall on
// harmful content.
var defaultThresholds = map[string]float64{
	"toxicity":        0.60,
	"severe_toxicity": 0.40,
	"threat":          0.35,
	"identity_attack": 0.50,
	"insult":          0.65,
	"obscene":         0.65,
	"sexual_explicit": 0.40,
}

// Gate decides whether a user message is allowed to proceed. It runs
// before any retrieval or literature call; for blocked input nothing
// else in the pipeline executes.
type Gate struct {
	classifier Classifier
	thresholds map[string]float64
	logger     *zap.Logger
}

// NewGate creates a moderation gate. Thresholds override any subset of
// the defaults; nil keeps them all.
func NewGate(classifier Classifier, thresholds map[string]float64, logger *zap.Logger) (*Gate, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := make(map[string]float64, len(defaultThresholds))
	for k, v := range defaultThresholds {
		t[k] = v
	}
	for k, v := range thresholds {
		t[k] = v
	}

	return &Gate{classifier: classifier, thresholds: t, logger: logger}, nil
}

// Decide classifies text as allowed or blocked.
//
// The decision applies a strict severity order, first true wins:
// sexual_minors rule, self_harm rule, violence_illegal rule,
// medical_harm rule, then classifier thresholds (sexual_explicit,
// threat, severe_toxicity, then the general toxicity group). A rule hit
// always outranks a score.
//
// A classifier failure returns an error: the gate is never bypassed on
// infrastructure failure.
func (g *Gate) Decide(ctx context.Context, text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Verdict{
			Category: CategoryAllow,
			Details:  Details{Reason: "empty"},
		}, nil
	}

	scores, err := g.classifier.Predict(ctx, text)
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation classifier: %w", err)
	}

	rules := evalRules(text)
	details := Details{Scores: scores, Rules: rules}

	category := g.categorize(scores, rules)
	if category == CategoryAllow {
		return Verdict{Category: CategoryAllow, Details: details}, nil
	}

	g.logger.Info("blocked user input",
		zap.String("category", string(category)),
	)

	return Verdict{
		Blocked:     true,
		Category:    category,
		SafeMessage: SafeMessage(category),
		Details:     details,
	}, nil
}

func (g *Gate) categorize(scores Scores, rules RuleHits) Category {
	switch {
	case rules.SexualMinors:
		return CategorySexualMinors
	case rules.SelfHarm:
		return CategorySelfHarm
	case rules.ViolenceIllegal:
		return CategoryViolenceIllegal
	case rules.MedicalHarm:
		return CategoryMedicalHarm
	}

	switch {
	case scores["sexual_explicit"] >= g.thresholds["sexual_explicit"]:
		return CategoryNSFW
	case scores["threat"] >= g.thresholds["threat"]:
		return CategoryViolenceIllegal
	case scores["severe_toxicity"] >= g.thresholds["severe_toxicity"]:
		return CategoryToxicity
	case scores["toxicity"] >= g.thresholds["toxicity"],
		scores["obscene"] >= g.thresholds["obscene"],
		scores["insult"] >= g.thresholds["insult"],
		scores["identity_attack"] >= g.thresholds["identity_attack"]:
		return CategoryToxicity
	}

	return CategoryAllow
}
