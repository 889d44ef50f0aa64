// Package moderation screens user input before any retrieval or
// external call. It combines a remote toxicity classifier with
// high-precision rule detectors and applies a strict severity order.
package moderation

// Category identifies the moderation outcome class.
type Category string

const (
	CategoryAllow           Category = "allow"
	CategorySelfHarm        Category = "self_harm"
	CategorySexualMinors    Category = "sexual_minors"
	CategoryViolenceIllegal Category = "violence_illegal"
	CategoryMedicalHarm     Category = "medical_harm"
	CategoryToxicity        Category = "toxicity"
	CategoryNSFW            Category = "nsfw"
)

// safeMessages are the fixed user-facing refusals per category.
var safeMessages = map[Category]string{
	CategorySelfHarm: "I'm really sorry you're feeling this way, but I can't help with that. " +
		"If you're in immediate danger or considering self-harm, please contact your local emergency number " +
		"or speak to a qualified professional right now.",
	CategorySexualMinors:    "I can't assist with sexual content involving minors.",
	CategoryViolenceIllegal: "I can't assist with requests that could harm you or others or are illegal.",
	CategoryMedicalHarm:     "I can't assist with dangerous medical instructions or overdose guidance.",
	CategoryToxicity:        "I'm not able to continue with abusive or threatening language.",
	CategoryNSFW:            "I can't assist with sexually explicit content.",
}

// SafeMessage returns the fixed refusal text for a blocking category.
func SafeMessage(c Category) string {
	if msg, ok := safeMessages[c]; ok {
		return msg
	}
	return "Sorry, I can't help with this request."
}

// Scores maps classifier categories to probabilities in [0,1].
type Scores map[string]float64

// RuleHits records which high-precision rule detectors fired.
type RuleHits struct {
	SelfHarm        bool `json:"self_harm"`
	MedicalHarm     bool `json:"medical_harm"`
	ViolenceIllegal bool `json:"violence_illegal"`
	SexualMinors    bool `json:"sexual_minors"`
}

// Details carries the raw diagnostic signal behind a verdict.
type Details struct {
	Scores Scores   `json:"scores,omitempty"`
	Rules  RuleHits `json:"rules"`
	Reason string   `json:"reason,omitempty"`
}

// Verdict is the result of moderating one input. Computed fresh per
// input, never cached.
type Verdict struct {
	Blocked     bool     `json:"blocked"`
	Category    Category `json:"category"`
	SafeMessage string   `json:"safe_message,omitempty"`
	Details     Details  `json:"details"`
}
