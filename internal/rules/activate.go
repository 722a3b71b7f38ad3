// internal/rules/activate.go
package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

/*
 * Rule activation writeback.
 *
 * SetActive flips a rule's is_active flag inside its originating source
 * file. The merged set's provenance map names that file unambiguously, so
 * a toggle always lands on the definition that actually wins the merge.
 * The rewrite is atomic (write to temp file, rename over the original);
 * readers never observe a torn rule file, and the changed mtime makes the
 * next Stale() check pick the toggle up.
 */

// SetActive updates the named rule's is_active flag in its source file and
// reports whether a matching rule was found. The rule file keeps all entry
// fields; only is_active changes.
func (l *Loader) SetActive(name string, active bool) (bool, error) {
	set, err := l.Load()
	if err != nil {
		return false, err
	}
	path, found := set.Provenance[name]
	if !found {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("rule source %s: %w", path, err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return false, fmt.Errorf("rule source %s: %w", path, err)
	}

	updated := false
	for _, entry := range entries {
		if n, _ := entry["name"].(string); n == name {
			entry["is_active"] = active
			updated = true
		}
	}
	if !updated {
		// Provenance pointed here but the file changed since the load.
		return false, nil
	}

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return false, err
	}
	out = append(out, '\n')
	if err := renameio.WriteFile(path, out, 0o644); err != nil {
		return false, fmt.Errorf("rewrite rule source %s: %w", path, err)
	}

	l.logger.Info().Str("event", "rules.set_active").
		Str("rule", name).Bool("active", active).Str("path", path).
		Msg("rule activation updated")
	return true, nil
}
