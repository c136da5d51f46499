// Package redact masks credentials in text before it is written to the
// audit trail or the history store.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces every masked secret.
const Placeholder = "[REDACTED]"

type rule struct {
	name    string
	pattern *regexp.Regexp
}

var rules = []rule{
	{"aws-assignment", regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{16,}['"]?`)},
	{"aws-key-id", regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"github-assignment", regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{20,}['"]?`)},
	{"github-token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`)},
	{"github-fine-grained", regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,}\b`)},
	{"api-key-assignment", regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`)},
	{"openai-key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{"private-key", regexp.MustCompile(`-----BEGIN ([A-Z]+ )?PRIVATE KEY-----`)},
	{"bearer", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{20,}=*`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
	{"url-credentials", regexp.MustCompile(`([a-z][a-z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`)},
	{"stripe-key", regexp.MustCompile(`\b[rs]k_live_[0-9a-zA-Z]{24,}\b`)},
	{"password-assignment", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`)},
}

// sensitiveNames are substrings of environment variable names whose values
// are always masked.
var sensitiveNames = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"TOKEN",
	"SECRET",
	"PASSWORD",
	"PASSWD",
	"API_KEY",
	"APIKEY",
	"PRIVATE_KEY",
	"DATABASE_URL",
	"REDIS_URL",
	"MONGO_URL",
}

// Redact masks every secret found in s.
func Redact(s string) string {
	for _, r := range rules {
		if r.name == "url-credentials" {
			s = r.pattern.ReplaceAllString(s, "${1}"+Placeholder+"@")
			continue
		}
		s = r.pattern.ReplaceAllString(s, Placeholder)
	}
	return s
}

// Args redacts each argument.
func Args(args []string) []string {
	if args == nil {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Redact(a)
	}
	return out
}

// IsSensitiveName reports whether an environment variable name suggests
// its value is a credential.
func IsSensitiveName(name string) bool {
	upper := strings.ToUpper(name)
	for _, s := range sensitiveNames {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}

// Env returns a copy of env with sensitive values masked. Values under
// innocuous names are still scanned for embedded secrets.
func Env(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		if IsSensitiveName(k) {
			out[k] = Placeholder
			continue
		}
		out[k] = Redact(v)
	}
	return out
}
