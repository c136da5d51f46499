package category

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCategorizer_Analyze(t *testing.T) {
	c := NewCategorizer()

	tests := []struct {
		name    string
		command string
		args    []string
		want    string
		risk    RiskLevel
		confirm bool
		sandbox bool
	}{
		{"ls", "ls", []string{"-la"}, "file-system-read", RiskLow, false, true},
		{"cat", "cat", []string{"file.txt"}, "file-system-read", RiskLow, false, true},
		{"grep", "grep", []string{"pattern", "file.txt"}, "file-system-read", RiskLow, false, true},
		{"find", "find", []string{".", "-name", "*.js"}, "file-system-read", RiskLow, false, true},
		{"echo", "echo", []string{"hi"}, "file-system-read", RiskLow, false, true},
		{"mkdir", "mkdir", []string{"test-dir"}, "file-system-write", RiskMedium, true, true},
		{"touch", "touch", []string{"newfile.txt"}, "file-system-write", RiskMedium, true, true},
		{"cp", "cp", []string{"src.txt", "dst.txt"}, "file-system-write", RiskMedium, true, true},
		{"mv", "mv", []string{"old.txt", "new.txt"}, "file-system-write", RiskMedium, true, true},
		{"echo redirect", "echo", []string{"data", ">", "out.txt"}, "file-system-write", RiskMedium, true, true},
		{"sudo ls", "sudo", []string{"ls"}, "system-admin", RiskCritical, true, false},
		{"systemctl", "systemctl", []string{"restart", "nginx"}, "system-admin", RiskCritical, true, false},
		{"chmod 777", "chmod", []string{"777", "file.txt"}, "system-admin", RiskCritical, true, false},
		{"chown", "chown", []string{"user:group", "file.txt"}, "system-admin", RiskCritical, true, false},
		{"curl", "curl", []string{"https://api.example.com"}, "network", RiskMedium, true, true},
		{"wget", "wget", []string{"http://example.com/file.zip"}, "network", RiskMedium, true, true},
		{"ssh", "ssh", []string{"user@server"}, "network", RiskMedium, true, true},
		{"ping", "ping", []string{"google.com"}, "network", RiskMedium, true, true},
		{"git", "git", []string{"status"}, "development", RiskLow, false, true},
		{"node", "node", []string{"script.js"}, "development", RiskLow, false, true},
		{"sh -c quoted reboot", "sh", []string{"-c", "'reboot'"}, "system-admin", RiskCritical, true, false},
		{"bash -c quoted rm", "bash", []string{"-c", `"rm -rf /"`}, "system-admin", RiskCritical, true, false},
		{"bash -c quoted curl", "bash", []string{"-c", `"curl https://example.com"`}, "network", RiskMedium, true, true},
		{"python", "python", []string{"app.py"}, "development", RiskLow, false, true},
		{"gcc", "gcc", []string{"-o", "app", "main.c"}, "development", RiskLow, false, true},
		{"npm", "npm", []string{"install"}, "package-management", RiskMedium, true, true},
		{"pip", "pip", []string{"install", "requests"}, "package-management", RiskMedium, true, true},
		{"apt", "apt", []string{"update"}, "package-management", RiskMedium, true, true},
		{"brew", "brew", []string{"install", "nodejs"}, "package-management", RiskMedium, true, true},
		{"uppercase", "LS", []string{"-LA"}, "file-system-read", RiskLow, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := c.Analyze(tt.command, tt.args)
			if a.Category.Name != tt.want {
				t.Fatalf("got category %s, want %s", a.Category.Name, tt.want)
			}
			if a.Category.RiskLevel != tt.risk {
				t.Errorf("got risk %s, want %s", a.Category.RiskLevel, tt.risk)
			}
			if a.Category.RequiresConfirmation != tt.confirm {
				t.Errorf("got requiresConfirmation %v, want %v", a.Category.RequiresConfirmation, tt.confirm)
			}
			if a.Category.AllowedInSandbox != tt.sandbox {
				t.Errorf("got allowedInSandbox %v, want %v", a.Category.AllowedInSandbox, tt.sandbox)
			}
			if !a.Recognized {
				t.Error("expected recognized command")
			}
			if a.Confidence < 0.5 {
				t.Errorf("expected confident match, got %.2f", a.Confidence)
			}
		})
	}
}

func TestCategorizer_Fallback(t *testing.T) {
	c := NewCategorizer()

	for _, cmd := range []string{"unknowncommand", "dd", "xyzzy"} {
		a := c.Analyze(cmd, []string{"--flag"})
		if a.Recognized {
			t.Errorf("%s: expected unrecognized", cmd)
		}
		if a.Category.Name != "development" {
			t.Errorf("%s: expected fallback to development, got %s", cmd, a.Category.Name)
		}
		if a.Confidence >= 0.5 {
			t.Errorf("%s: expected low confidence, got %.2f", cmd, a.Confidence)
		}
		if len(a.Reasons) == 0 || len(a.Recommendations) == 0 {
			t.Errorf("%s: expected reasons and recommendations", cmd)
		}
		if a.Recommendations[0] != "Manual review recommended" {
			t.Errorf("%s: unexpected recommendation %q", cmd, a.Recommendations[0])
		}
	}
}

func TestCategorizer_EmptyInput(t *testing.T) {
	a := NewCategorizer().Analyze("", nil)
	if a.Recognized {
		t.Error("empty command must not be recognized")
	}
}

func TestCategorizer_Deterministic(t *testing.T) {
	c := NewCategorizer()
	first := c.Analyze("sudo", []string{"rm", "-rf", "/tmp/test"})

	for i := 0; i < 50; i++ {
		got := c.Analyze("sudo", []string{"rm", "-rf", "/tmp/test"})
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("analysis changed on call %d (-first +got):\n%s", i, diff)
		}
	}
}

func TestCategorizer_AnalysisIsIndependent(t *testing.T) {
	c := NewCategorizer()
	a := c.Analyze("ls", nil)
	a.Reasons[0] = "tampered"

	b := c.Analyze("ls", nil)
	if b.Reasons[0] == "tampered" {
		t.Error("analyses must not share reason slices")
	}
}

func TestCategories(t *testing.T) {
	cats := NewCategorizer().Categories()
	if len(cats) != 6 {
		t.Fatalf("expected 6 categories, got %d", len(cats))
	}
	seen := map[string]bool{}
	for _, c := range cats {
		if seen[c.Name] {
			t.Errorf("duplicate category %s", c.Name)
		}
		seen[c.Name] = true
		if c.Description == "" {
			t.Errorf("category %s has no description", c.Name)
		}
	}
}

func TestID_CategoryPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid id")
		}
	}()
	_ = ID(99).Category()
}
