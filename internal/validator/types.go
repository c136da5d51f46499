// Package validator scores commands against a fixed, ordered set of
// security rules.
//
// Every rule is a pure predicate over the normalized command. The validator
// runs all of them, then turns the pass ratio into a 0-100 score weighted by
// the command's category:
//
//	score = round(passed / total * 100 * multiplier)
//
// A failed critical rule caps the score and always invalidates the result.
package validator

// Severity is the impact of a failed check. Passing checks report SeverityInfo.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Check is the outcome of one rule.
type Check struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Passed      bool     `json:"passed"`
	Message     string   `json:"message"`
}

// Result is the aggregate security verdict for one command.
type Result struct {
	IsValid         bool     `json:"is_valid"`
	Score           int      `json:"score"`
	Checks          []Check  `json:"checks"`
	Recommendations []string `json:"recommendations"`
}

// Check returns the named check, if it ran.
func (r Result) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Failed returns the checks that did not pass, in rule order.
func (r Result) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Rule names, in evaluation order.
const (
	CheckBlacklist           = "blacklist-check"
	CheckSuspiciousPatterns  = "suspicious-patterns"
	CheckPrivilegeEscalation = "privilege-escalation"
	CheckFilesystemSafety    = "filesystem-safety"
	CheckNetworkSecurity     = "network-security"
	CheckCommandInjection    = "command-injection"
)
