package category

import (
	"github.com/gzhole/shellgate/internal/normalize"
)

// Analysis is the categorizer's verdict for one command.
type Analysis struct {
	ID              ID       `json:"-"`
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
	Recognized      bool     `json:"recognized"`
}

// rule maps a set of word-bounded patterns to a category.
type rule struct {
	id              ID
	confidence      float64
	patterns        []string
	reason          string
	recommendations []string
}

// rules is evaluated top to bottom and the first match wins, so the
// riskier buckets come first: "sudo ls" is system administration, not a read.
var rules = []rule{
	{
		id:              SystemAdmin,
		confidence:      0.95,
		patterns:        []string{"sudo", "su", "doas", "pkexec", "rm -rf", "rm -fr", "chmod 777", "chown", "systemctl", "service", "mount", "umount", "fdisk", "mkfs", "shutdown", "reboot", "halt"},
		reason:          "Command requires elevated privileges or modifies system",
		recommendations: []string{"Verify command necessity", "Check for potential system impact"},
	},
	{
		id:              Network,
		confidence:      0.85,
		patterns:        []string{"curl", "wget", "ssh", "scp", "sftp", "rsync", "ping", "netstat", "nc", "ncat", "telnet"},
		reason:          "Command performs network operations",
		recommendations: []string{"Verify destination URLs/IPs", "Check for sensitive data transmission"},
	},
	{
		id:              PackageManagement,
		confidence:      0.9,
		patterns:        []string{"npm", "pnpm", "yarn", "pip", "pip3", "apt", "apt-get", "yum", "dnf", "brew", "cargo", "composer", "gem"},
		reason:          "Command manages packages or dependencies",
		recommendations: []string{"Verify package sources", "Check for version conflicts"},
	},
	{
		id:              FileSystemWrite,
		confidence:      0.8,
		patterns:        []string{"mkdir", "touch", "cp", "mv", "ln", ">", ">>", "tee", "rm", "rmdir"},
		reason:          "Command modifies file system",
		recommendations: []string{"Review destination paths", "Ensure backup if needed"},
	},
	{
		id:              FileSystemRead,
		confidence:      0.9,
		patterns:        []string{"ls", "cat", "head", "tail", "grep", "find", "locate", "which", "pwd", "wc", "file", "stat", "echo"},
		reason:          "Command performs read-only file operations",
		recommendations: []string{"Safe to execute without confirmation"},
	},
	{
		id:              Development,
		confidence:      0.8,
		patterns:        []string{"git", "node", "python", "python3", "java", "go", "gcc", "make", "cmake", "mvn", "gradle"},
		reason:          "Command uses development tools",
		recommendations: []string{"Review code changes if applicable"},
	},
}

const fallbackConfidence = 0.3

// Categorizer classifies commands. The zero value is ready to use and it
// holds no mutable state, so one instance may be shared freely.
type Categorizer struct{}

// NewCategorizer returns a Categorizer.
func NewCategorizer() *Categorizer {
	return &Categorizer{}
}

// Analyze classifies command with its arguments. Identical input always
// yields an identical Analysis. Unknown commands fall back to the
// development category with low confidence instead of failing.
func (c *Categorizer) Analyze(command string, args []string) Analysis {
	return c.AnalyzeNormalized(normalize.Normalize(command, args))
}

// AnalyzeNormalized is Analyze for an already normalized command.
func (c *Categorizer) AnalyzeNormalized(nc normalize.Command) Analysis {
	for _, r := range rules {
		if _, ok := normalize.ContainsAnyPhrase(nc.Lower, r.patterns); ok {
			return newAnalysis(r.id, r.confidence, true,
				[]string{r.reason}, r.recommendations)
		}
	}

	return newAnalysis(Development, fallbackConfidence, false,
		[]string{"Command not recognized, defaulting to development category"},
		[]string{"Manual review recommended", "Verify command safety"})
}

// Categories lists the categories the categorizer can produce.
func (c *Categorizer) Categories() []Category {
	return All()
}

func newAnalysis(id ID, confidence float64, recognized bool, reasons, recommendations []string) Analysis {
	return Analysis{
		ID:              id,
		Category:        id.Category(),
		Confidence:      confidence,
		Reasons:         append([]string(nil), reasons...),
		Recommendations: append([]string(nil), recommendations...),
		Recognized:      recognized,
	}
}
