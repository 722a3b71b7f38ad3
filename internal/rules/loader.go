// internal/rules/loader.go
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/types"
)

/*
 * Rule loading and merge.
 *
 * Loads rule definitions from a single JSON file or a directory of *.json
 * files, each holding a JSON array of rule objects. Malformed entries are
 * skipped and logged; they never fail the batch. Duplicate names merge to
 * one rule: highest priority wins, ties prefer the lexicographically later
 * source path (and the later entry within one file).
 *
 * The loader fingerprints its sources (size + mtime per file, hashed) so
 * both the lazy on-emit check and the background watch loop can ask Stale()
 * cheaply without re-reading file contents.
 */

// RuleSet is one immutable load result. Engines swap whole sets atomically;
// a set is never mutated after Load returns it.
type RuleSet struct {
	Rules      []types.Rule      // priority descending, then name ascending
	Provenance map[string]string // rule name -> source file path
	LoadedAt   time.Time

	fingerprint string
}

// Fingerprint identifies the source state this set was loaded from.
func (rs *RuleSet) Fingerprint() string {
	return rs.fingerprint
}

// ByName returns the named rule, or ErrRuleNotFound.
func (rs *RuleSet) ByName(name string) (*types.Rule, error) {
	for i := range rs.Rules {
		if rs.Rules[i].Name == name {
			return &rs.Rules[i], nil
		}
	}
	return nil, fmt.Errorf("rule %q: %w", name, types.ErrRuleNotFound)
}

// Loader reads rule sets from a file or directory source.
type Loader struct {
	source string
	logger zerolog.Logger

	mu              sync.Mutex
	lastFingerprint string
}

// NewLoader creates a loader over source, which may name a JSON file or a
// directory of *.json files.
func NewLoader(source string) *Loader {
	return &Loader{
		source: source,
		logger: log.WithComponent("rules"),
	}
}

// Source returns the configured rule source path.
func (l *Loader) Source() string {
	return l.source
}

// Load reads every source file in sorted path order and returns the merged
// rule set. Unreadable files and malformed entries are skipped with a log
// line; only an unusable source path fails the load.
func (l *Loader) Load() (*RuleSet, error) {
	files, err := l.sourceFiles()
	if err != nil {
		return nil, err
	}

	type candidate struct {
		rule types.Rule
		path string
	}
	merged := make(map[string]candidate)

	for _, path := range files {
		entries, err := readRuleFile(path)
		if err != nil {
			l.logger.Warn().Str("event", "rules.file_skipped").
				Str("path", path).Err(err).Msg("skipping unreadable rule file")
			continue
		}
		for i, raw := range entries {
			var rule types.Rule
			if err := json.Unmarshal(raw, &rule); err == nil {
				err = rule.Validate()
			}
			if err != nil {
				l.logger.Warn().Str("event", "rules.entry_skipped").
					Str("path", path).Int("index", i).Err(err).
					Msg("skipping malformed rule entry")
				continue
			}

			prev, exists := merged[rule.Name]
			if exists && !supersedes(rule.Priority, path, prev.rule.Priority, prev.path) {
				continue
			}
			merged[rule.Name] = candidate{rule: rule, path: path}
		}
	}

	set := &RuleSet{
		Rules:      make([]types.Rule, 0, len(merged)),
		Provenance: make(map[string]string, len(merged)),
		LoadedAt:   time.Now().UTC(),
	}
	for name, c := range merged {
		set.Rules = append(set.Rules, c.rule)
		set.Provenance[name] = c.path
	}
	sort.Slice(set.Rules, func(i, j int) bool {
		if set.Rules[i].Priority != set.Rules[j].Priority {
			return set.Rules[i].Priority > set.Rules[j].Priority
		}
		return set.Rules[i].Name < set.Rules[j].Name
	})

	fp, err := fingerprintFiles(files)
	if err != nil {
		return nil, err
	}
	set.fingerprint = fp

	l.mu.Lock()
	l.lastFingerprint = fp
	l.mu.Unlock()

	return set, nil
}

// Stale reports whether any source file changed (content size or mtime)
// since the last Load. A source that cannot be statted counts as stale so
// the next reload surfaces the underlying error.
func (l *Loader) Stale() bool {
	l.mu.Lock()
	last := l.lastFingerprint
	l.mu.Unlock()
	if last == "" {
		return true
	}

	files, err := l.sourceFiles()
	if err != nil {
		return true
	}
	fp, err := fingerprintFiles(files)
	if err != nil {
		return true
	}
	return fp != last
}

// sourceFiles expands the source path into the ordered list of rule files.
func (l *Loader) sourceFiles() ([]string, error) {
	info, err := os.Stat(l.source)
	if err != nil {
		return nil, fmt.Errorf("rule source %s: %w", l.source, err)
	}
	if !info.IsDir() {
		return []string{l.source}, nil
	}

	matches, err := filepath.Glob(filepath.Join(l.source, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("rule source %s: %w", l.source, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// readRuleFile returns the raw entries of one rule file, enforcing the
// size cap before reading.
func readRuleFile(path string) ([]json.RawMessage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > types.MaxRuleSourceBytes {
		return nil, fmt.Errorf("%s is %d bytes: %w", path, info.Size(), types.ErrRuleSourceTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// supersedes decides whether a newly seen duplicate replaces the kept one:
// higher priority wins, priority ties prefer the later source path. Equal
// paths mean a duplicate within one file; the later entry wins.
func supersedes(newPriority int, newPath string, oldPriority int, oldPath string) bool {
	if newPriority != oldPriority {
		return newPriority > oldPriority
	}
	return strings.Compare(newPath, oldPath) >= 0
}

// fingerprintFiles hashes each file's identity and modification signal.
// Content is not read; size+mtime is the staleness contract.
func fingerprintFiles(files []string) (string, error) {
	h := sha256.New()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s|%d|%d\n", path, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
