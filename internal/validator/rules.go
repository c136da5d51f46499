package validator

import (
	"regexp"
	"strings"

	"github.com/gzhole/shellgate/internal/normalize"
)

// rule is a single security predicate. violated reports true when the
// command breaks the rule.
type rule struct {
	name           string
	description    string
	severity       Severity // reported when the rule is violated
	passMessage    string
	failMessage    string
	recommendation string
	violated       func(nc normalize.Command) bool
}

// blacklist holds catastrophic commands. Entries match at word boundaries
// so "rm -rf /" does not fire on "rm -rf /tmp/build".
var blacklist = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -fr /",
	"rm -fr /*",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	"dd if=/dev/urandom",
	"mkfs",
	"mkfs.ext4",
	"format c:",
	"fdisk /dev/sda",
	"shutdown -h now",
	"init 0",
	"halt",
	"reboot",
	"poweroff",
	":(){ :|:& };:",
}

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(curl|wget)\b.*\|\s*(sudo\s+)?(ba|z|da|k)?sh\b`),
	regexp.MustCompile(`\|\s*(sudo\s+)?(python[23]?|perl|ruby|node|php)\b`),
	regexp.MustCompile(`\beval\b.*\$`),
	regexp.MustCompile(`\beval\s`),
	regexp.MustCompile(`\bexec\b.*\$`),
	regexp.MustCompile(`\$\(.*\)`),
	regexp.MustCompile("`.*`"),
	regexp.MustCompile(`base64\s+(-d|--decode)\b.*\|`),
}

var escalationWords = []string{"sudo", "su", "doas", "pkexec"}

var destructiveWords = []string{"rm", "rmdir", "unlink", "truncate", "shred"}

var protectedPrefixes = []string{"/etc", "/sys", "/proc", "/dev", "/boot"}

var networkTools = []string{"curl", "wget", "nc", "ncat", "netcat", "telnet", "ssh", "scp", "sftp", "ftp", "rsync", "socat"}

var (
	suspiciousTLD     = regexp.MustCompile(`\.(tk|ml|ga|cf|gq)$`)
	ipv4Literal       = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	localhostWithPort = regexp.MustCompile(`\blocalhost:\d+`)
)

const destructiveVerbs = `(sudo\s+)?(rm|dd|mkfs|format|shutdown|reboot|halt|truncate|shred|chmod|chown)\b`

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(;|&&|\|\|)\s*` + destructiveVerbs),
	regexp.MustCompile("`[^`]*\\b" + destructiveVerbs + "[^`]*`"),
	regexp.MustCompile(`\$\([^)]*\b` + destructiveVerbs + `[^)]*\)`),
}

// defaultRules returns the built-in rules in evaluation order.
func defaultRules() []rule {
	return []rule{
		{
			name:           CheckBlacklist,
			description:    "Verify command is not explicitly blacklisted",
			severity:       SeverityCritical,
			passMessage:    "No blacklisted patterns detected",
			failMessage:    "Command contains blacklisted patterns",
			recommendation: "This command is explicitly blacklisted due to high risk",
			violated: func(nc normalize.Command) bool {
				_, hit := normalize.ContainsAnyPhrase(nc.Lower, blacklist)
				return hit
			},
		},
		{
			name:           CheckSuspiciousPatterns,
			description:    "Check for suspicious command patterns",
			severity:       SeverityWarning,
			passMessage:    "No suspicious patterns detected",
			failMessage:    "Suspicious patterns detected",
			recommendation: "Command contains suspicious patterns that may indicate security risks",
			violated: func(nc normalize.Command) bool {
				return matchesAny(nc.Lower, suspiciousPatterns)
			},
		},
		{
			name:           CheckPrivilegeEscalation,
			description:    "Check for privilege escalation attempts",
			severity:       SeverityWarning,
			passMessage:    "No privilege escalation detected",
			failMessage:    "Privilege escalation detected",
			recommendation: "Command attempts privilege escalation - verify necessity",
			violated: func(nc normalize.Command) bool {
				return nc.HasWord(escalationWords...)
			},
		},
		{
			name:           CheckFilesystemSafety,
			description:    "Check for dangerous file system operations",
			severity:       SeverityError,
			passMessage:    "File system operations appear safe",
			failMessage:    "Potentially dangerous file system operation detected",
			recommendation: "Command may modify critical system files",
			violated: func(nc normalize.Command) bool {
				return nc.HasWord(destructiveWords...) && touchesProtectedPath(nc.Paths)
			},
		},
		{
			name:           CheckNetworkSecurity,
			description:    "Check network command security",
			severity:       SeverityWarning,
			passMessage:    "Network command destinations appear safe",
			failMessage:    "Network command with suspicious destination",
			recommendation: "Network command detected - verify destination safety",
			violated: func(nc normalize.Command) bool {
				return nc.HasWord(networkTools...) && hasSuspiciousDestination(nc)
			},
		},
		{
			name:           CheckCommandInjection,
			description:    "Check for command injection attempts",
			severity:       SeverityError,
			passMessage:    "No command injection detected",
			failMessage:    "Potential command injection detected",
			recommendation: "Potential command injection detected",
			violated: func(nc normalize.Command) bool {
				return matchesAny(nc.Lower, injectionPatterns)
			},
		},
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// touchesProtectedPath reports whether any path is the filesystem root or
// lives under a protected system directory.
func touchesProtectedPath(paths []string) bool {
	for _, p := range paths {
		if p == "/" || p == "/*" {
			return true
		}
		for _, prefix := range protectedPrefixes {
			if p == prefix || p == prefix+"/*" || strings.HasPrefix(p, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// hasSuspiciousDestination applies the destination heuristics. They are
// evaluated the same way for every network tool.
func hasSuspiciousDestination(nc normalize.Command) bool {
	for _, d := range nc.Domains {
		host := d
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		if suspiciousTLD.MatchString(host) {
			return true
		}
	}
	if localhostWithPort.MatchString(nc.Lower) {
		return true
	}
	for _, m := range ipv4Literal.FindAllStringSubmatch(nc.Lower, -1) {
		if validOctets(m[1:]) {
			return true
		}
	}
	return false
}

func validOctets(octets []string) bool {
	for _, o := range octets {
		n := 0
		for _, ch := range o {
			n = n*10 + int(ch-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}
