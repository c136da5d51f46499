package validator

import (
	"math"

	"github.com/gzhole/shellgate/internal/category"
	"github.com/gzhole/shellgate/internal/normalize"
)

const (
	// ValidScore is the minimum score for a result to be valid.
	ValidScore = 70

	// criticalScoreCeiling caps the score whenever a critical rule fails.
	criticalScoreCeiling = 40

	unrecognizedMultiplier = 0.8
)

// Validator runs the built-in rule set. It holds no mutable state and is
// safe for concurrent use.
type Validator struct {
	rules []rule
}

// New returns a Validator with the built-in rules.
func New() *Validator {
	return &Validator{rules: defaultRules()}
}

// Validate evaluates every rule against command and args and scores the
// outcome using the category carried by analysis.
func (v *Validator) Validate(command string, args []string, analysis category.Analysis) Result {
	return v.ValidateNormalized(normalize.Normalize(command, args), analysis)
}

// ValidateNormalized is Validate for an already normalized command.
func (v *Validator) ValidateNormalized(nc normalize.Command, analysis category.Analysis) Result {
	result := Result{
		Checks:          make([]Check, 0, len(v.rules)),
		Recommendations: []string{},
	}

	passed := 0
	criticalFailed := false
	for _, r := range v.rules {
		check := Check{
			Name:        r.name,
			Description: r.description,
			Severity:    SeverityInfo,
			Passed:      true,
			Message:     r.passMessage,
		}
		if r.violated(nc) {
			check.Severity = r.severity
			check.Passed = false
			check.Message = r.failMessage
			result.Recommendations = append(result.Recommendations, r.recommendation)
			if r.severity == SeverityCritical {
				criticalFailed = true
			}
		} else {
			passed++
		}
		result.Checks = append(result.Checks, check)
	}

	result.Score = score(passed, len(v.rules), Multiplier(analysis))
	if criticalFailed && result.Score > criticalScoreCeiling {
		result.Score = criticalScoreCeiling
	}
	result.IsValid = result.Score >= ValidScore && !criticalFailed

	return result
}

// Multiplier returns the category weighting applied to the pass ratio.
func Multiplier(analysis category.Analysis) float64 {
	if !analysis.Recognized {
		return unrecognizedMultiplier
	}
	switch analysis.Category.RiskLevel {
	case category.RiskLow:
		return 1.0
	case category.RiskMedium:
		return 0.85
	case category.RiskHigh:
		return 0.7
	case category.RiskCritical:
		return 0.5
	default:
		return unrecognizedMultiplier
	}
}

func score(passed, total int, multiplier float64) int {
	if total == 0 {
		return 0
	}
	s := int(math.Round(float64(passed) / float64(total) * 100 * multiplier))
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
