// internal/rules/loader_test.go
package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoatGit/semibot/internal/types"
)

func writeRuleFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v, want nil", name, err)
	}
	return path
}

func TestLoader_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, "rules.json", `[
		{"name": "low-priority", "event_type": "agent.task.failed", "priority": 1},
		{"name": "high-priority", "event_type": "agent.task.failed", "priority": 10}
	]`)

	set, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if len(set.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(set.Rules))
	}
	if set.Rules[0].Name != "high-priority" {
		t.Errorf("Rules[0].Name = %q, want high-priority (priority order)", set.Rules[0].Name)
	}
	if !set.Rules[0].IsActive {
		t.Errorf("Rules[0].IsActive = false, want true (default)")
	}
	if set.Provenance["high-priority"] != path {
		t.Errorf("Provenance = %q, want %q", set.Provenance["high-priority"], path)
	}
	if set.Fingerprint() == "" {
		t.Errorf("Fingerprint() = empty, want non-empty")
	}
}

func TestLoader_MalformedEntriesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "rules.json", `[
		{"name": "valid", "event_type": "a.b"},
		{"event_type": "missing.name"},
		{"name": "bad-mode", "event_type": "a.b", "action_mode": "yolo"},
		"not even an object",
		{"name": "also-valid", "event_type": "c.d"}
	]`)

	set, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(set.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2 (malformed skipped)", len(set.Rules))
	}
	for _, r := range set.Rules {
		if r.Name != "valid" && r.Name != "also-valid" {
			t.Errorf("unexpected surviving rule %q", r.Name)
		}
	}
}

func TestLoader_UnreadableFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a_broken.json", `{not json`)
	writeRuleFile(t, dir, "b_good.json", `[{"name": "survivor", "event_type": "a.b"}]`)

	set, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(set.Rules) != 1 || set.Rules[0].Name != "survivor" {
		t.Fatalf("Rules = %+v, want single survivor", set.Rules)
	}
}

func TestLoader_DuplicateNamePriorityWins(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.json", `[
		{"name": "shared", "event_type": "a.b", "priority": 10, "risk_level": "low"}
	]`)
	pathB := writeRuleFile(t, dir, "b.json", `[
		{"name": "shared", "event_type": "a.b", "priority": 20, "risk_level": "high"}
	]`)

	set, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if len(set.Rules) != 1 {
		t.Fatalf("len(Rules) = %d, want 1 (deduplicated)", len(set.Rules))
	}
	rule := set.Rules[0]
	if rule.Priority != 20 || rule.RiskLevel != "high" {
		t.Errorf("merged rule = priority %d risk %q, want priority-20 definition", rule.Priority, rule.RiskLevel)
	}
	if set.Provenance["shared"] != pathB {
		t.Errorf("Provenance = %q, want %q", set.Provenance["shared"], pathB)
	}
}

func TestLoader_DuplicateNameTieLaterPathWins(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.json", `[
		{"name": "shared", "event_type": "a.b", "priority": 5, "risk_level": "from-a"}
	]`)
	writeRuleFile(t, dir, "z.json", `[
		{"name": "shared", "event_type": "a.b", "priority": 5, "risk_level": "from-z"}
	]`)

	set, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(set.Rules) != 1 || set.Rules[0].RiskLevel != "from-z" {
		t.Fatalf("merged rule risk = %q, want from-z (later path)", set.Rules[0].RiskLevel)
	}
}

func TestLoader_Stale(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, "rules.json", `[{"name": "r", "event_type": "a.b"}]`)

	loader := NewLoader(dir)
	if !loader.Stale() {
		t.Errorf("Stale() = false before first load, want true")
	}

	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if loader.Stale() {
		t.Errorf("Stale() = true right after load, want false")
	}

	// Rewrite with different content length so the fingerprint moves even
	// on coarse mtime filesystems.
	writeRuleFile(t, dir, "rules.json", `[{"name": "r", "event_type": "a.b", "priority": 3}]`)
	if !loader.Stale() {
		t.Errorf("Stale() = false after rewrite of %s, want true", path)
	}

	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load() after rewrite error = %v, want nil", err)
	}
	if loader.Stale() {
		t.Errorf("Stale() = true after reload, want false")
	}
}

func TestLoader_StaleOnNewFile(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "a.json", `[{"name": "r", "event_type": "a.b"}]`)

	loader := NewLoader(dir)
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	writeRuleFile(t, dir, "b.json", `[{"name": "s", "event_type": "c.d"}]`)
	if !loader.Stale() {
		t.Errorf("Stale() = false after adding a source file, want true")
	}
}

func TestLoader_MissingSource(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope"))
	if _, err := loader.Load(); err == nil {
		t.Errorf("Load() error = nil for missing source, want error")
	}
	if !loader.Stale() {
		t.Errorf("Stale() = false for missing source, want true")
	}
}

func TestSetActive_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "rules.json", `[
		{"name": "keep", "event_type": "a.b", "priority": 1},
		{"name": "toggle-me", "event_type": "a.b", "priority": 2, "custom_field": "preserved"}
	]`)

	loader := NewLoader(dir)
	found, err := loader.SetActive("toggle-me", false)
	if err != nil {
		t.Fatalf("SetActive() error = %v, want nil", err)
	}
	if !found {
		t.Fatalf("SetActive() found = false, want true")
	}

	set, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	toggled, err := set.ByName("toggle-me")
	if err != nil {
		t.Fatalf("ByName() error = %v, want nil", err)
	}
	if toggled.IsActive {
		t.Errorf("IsActive = true after SetActive(false), want false")
	}

	// The rewrite keeps fields it does not understand.
	raw, err := os.ReadFile(filepath.Join(dir, "rules.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v, want nil", err)
	}
	if !strings.Contains(string(raw), "custom_field") {
		t.Errorf("rewritten file dropped custom_field:\n%s", raw)
	}

	kept, err := set.ByName("keep")
	if err != nil {
		t.Fatalf("ByName(keep) error = %v, want nil", err)
	}
	if !kept.IsActive {
		t.Errorf("untouched rule IsActive = false, want true")
	}

	// Re-enable and confirm the file round-trips back.
	if _, err := loader.SetActive("toggle-me", true); err != nil {
		t.Fatalf("SetActive(true) error = %v, want nil", err)
	}
	set, err = loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	toggled, err = set.ByName("toggle-me")
	if err != nil {
		t.Fatalf("ByName() error = %v, want nil", err)
	}
	if !toggled.IsActive {
		t.Errorf("IsActive = false after SetActive(true), want true")
	}
}

func TestSetActive_UnknownRule(t *testing.T) {
	dir := t.TempDir()
	writeRuleFile(t, dir, "rules.json", `[{"name": "r", "event_type": "a.b"}]`)

	found, err := NewLoader(dir).SetActive("ghost", false)
	if err != nil {
		t.Fatalf("SetActive() error = %v, want nil", err)
	}
	if found {
		t.Errorf("SetActive() found = true for unknown rule, want false")
	}
}

func TestRuleSet_ByName(t *testing.T) {
	set := &RuleSet{Rules: []types.Rule{{Name: "present", EventType: "a.b"}}}

	if _, err := set.ByName("present"); err != nil {
		t.Errorf("ByName(present) error = %v, want nil", err)
	}
	if _, err := set.ByName("absent"); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("ByName(absent) error = %v, want ErrRuleNotFound", err)
	}
}
