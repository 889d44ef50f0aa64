package moderation

import "regexp"

// High-precision hard-block rules. These are intentionally narrow:
// a rule hit blocks regardless of classifier scores, so false positives
// are costlier than misses (which the classifier still catches).
var (
	reSelfHarm = regexp.MustCompile(
		`(?i)(kill myself|suicide|end my life|self[-\s]?harm|hurt myself|cutting|self[-\s]?mutilation)`)

	reMedicalHarm = regexp.MustCompile(
		`(?i)(overdose|lethal dose|how many (?:pills|tablets) (?:to|would) (?:kill|harm)|(?:is it safe to )?mix .* to overdose)`)

	reViolenceIllegal = regexp.MustCompile(
		`(?i)(kill (?:someone|people)|how to (?:make|build) (?:a )?(?:bomb|explosive|molotov|napalm)|buy (?:unregistered|illegal) (?:gun|weapon)|how to (?:hack|scam|forge|cook meth))`)

	// The minors rule is conjunctive: an age cue AND a sexual cue must
	// both be present. Neither alone blocks via this rule.
	reAgeMinor = regexp.MustCompile(
		`(?i)(\b(?:minor|underage|child|children|12|13|14|15|16|17)\b|\d{1,2}\s?(?:yo|yrs?|years? old))`)
	reSexual = regexp.MustCompile(`(?i)(sex|nude|naked|porn|explicit|xxx|erotic)`)
)

// evalRules runs all rule detectors against text.
func evalRules(text string) RuleHits {
	return RuleHits{
		SelfHarm:        reSelfHarm.MatchString(text),
		MedicalHarm:     reMedicalHarm.MatchString(text),
		ViolenceIllegal: reViolenceIllegal.MatchString(text),
		SexualMinors:    reAgeMinor.MatchString(text) && reSexual.MatchString(text),
	}
}
