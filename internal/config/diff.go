// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	laddrerrors "grimm.is/laddrd/internal/errors"
)

// ConfigDiff is a structured semantic diff between two decoded configs,
// listing the added, modified and removed paths. laddrctl reload prints it
// as a preview; the daemon's reload path does not use it (internal/reload
// diffs the built runtime graphs instead).
type ConfigDiff struct {
	Added    []Change
	Modified []Change
	Removed  []Change
	Summary  DiffSummary
}

// Change is a single path-level difference.
type Change struct {
	Path     string      // e.g. "virtual_server[web].real_server[10.0.0.1]"
	Old      interface{} `json:"old,omitempty"`
	New      interface{} `json:"new,omitempty"`
	Type     ChangeType
	Section  string // top-level field: virtual_server, vs_group, pool, ...
	Severity string // "critical", "warning", "info"
}

type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// DiffSummary is a high-level rollup of a ConfigDiff, filled in by
// DiffConfigs. laddrctl reload prints the change counts, not this rollup.
type DiffSummary struct {
	TotalChanges     int
	CriticalChanges  int
	WarningChanges   int
	AffectedSections []string
	HasQuorumImpact  bool // changes to quorum/hysteresis/scheduler/RS membership
	HasPoolImpact    bool // changes to pool mode/worker_bits/num_workers
}

// Diff returns a unified-diff string between the config as originally
// loaded and its current in-memory form. With structured=true it instead
// prefers the structured diff's summary line, falling back to the unified
// diff when the structured diff finds no changes.
func (cf *ConfigFile) Diff(structured ...bool) (string, error) {
	current, err := json.MarshalIndent(cf.Config, "", "  ")
	if err != nil {
		return "", laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: marshal current")
	}

	var origCfg Config
	if err := json.Unmarshal(cf.originalJSON, &origCfg); err != nil {
		return "", laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: unmarshal original snapshot")
	}
	origJSON, err := json.MarshalIndent(&origCfg, "", "  ")
	if err != nil {
		return "", laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: marshal original")
	}

	if len(structured) > 0 && structured[0] {
		d := DiffConfigs(&origCfg, cf.Config)
		if d.HasChanges() {
			return d.String(), nil
		}
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(origJSON)),
		B:        difflib.SplitLines(string(current)),
		FromFile: "running",
		ToFile:   "staged",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: unified diff")
	}
	if text == "" {
		text = "no changes"
	}
	return text, nil
}

// DiffStructured returns the full structured diff between the config as
// originally loaded and its current form.
func (cf *ConfigFile) DiffStructured() (*ConfigDiff, error) {
	var origCfg Config
	if err := json.Unmarshal(cf.originalJSON, &origCfg); err != nil {
		return nil, laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: unmarshal original snapshot")
	}
	return DiffConfigs(&origCfg, cf.Config), nil
}

// DiffConfigs performs a structured diff between two decoded configs.
func DiffConfigs(oldCfg, newCfg *Config) *ConfigDiff {
	diff := &ConfigDiff{}
	oldMap := configToMap(oldCfg)
	newMap := configToMap(newCfg)
	compareSections(oldMap, newMap, "", diff)
	diff.calculateSummary()
	return diff
}

func configToMap(cfg *Config) map[string]interface{} {
	data, _ := json.Marshal(cfg)
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	return out
}

func compareSections(old, new map[string]interface{}, basePath string, diff *ConfigDiff) {
	allKeys := make(map[string]bool)
	for k := range old {
		allKeys[k] = true
	}
	for k := range new {
		allKeys[k] = true
	}

	for key := range allKeys {
		path := joinPath(basePath, key)
		oldVal, oldOK := old[key]
		newVal, newOK := new[key]

		switch {
		case !oldOK && newOK:
			c := Change{Path: path, New: newVal, Type: Added, Section: section(path)}
			c.Severity = assessSeverity(c)
			diff.Added = append(diff.Added, c)
		case oldOK && !newOK:
			c := Change{Path: path, Old: oldVal, Type: Removed, Section: section(path)}
			c.Severity = assessSeverity(c)
			diff.Removed = append(diff.Removed, c)
		case oldOK && newOK:
			compareValues(oldVal, newVal, path, diff)
		}
	}
}

func compareValues(old, new interface{}, path string, diff *ConfigDiff) {
	if reflect.TypeOf(old) != reflect.TypeOf(new) {
		c := Change{Path: path, Old: old, New: new, Type: Modified, Section: section(path)}
		c.Severity = assessSeverity(c)
		diff.Modified = append(diff.Modified, c)
		return
	}

	switch oldTyped := old.(type) {
	case map[string]interface{}:
		newTyped, _ := new.(map[string]interface{})
		compareSections(oldTyped, newTyped, path, diff)
	case []interface{}:
		newTyped, _ := new.([]interface{})
		compareArrays(oldTyped, newTyped, path, diff)
	default:
		if !reflect.DeepEqual(old, new) {
			c := Change{Path: path, Old: old, New: new, Type: Modified, Section: section(path)}
			c.Severity = assessSeverity(c)
			diff.Modified = append(diff.Modified, c)
		}
	}
}

// compareArrays matches block elements by their HCL label (id/name/addr)
// where present, falling back to index, so a reordered real_server block
// is seen as unchanged rather than remove-then-add.
func compareArrays(old, new []interface{}, basePath string, diff *ConfigDiff) {
	oldByKey := indexArrayByKey(old)
	newByKey := indexArrayByKey(new)

	for key, oldVal := range oldByKey {
		itemPath := fmt.Sprintf("%s[%s]", basePath, key)
		if newVal, ok := newByKey[key]; ok {
			compareValues(oldVal, newVal, itemPath, diff)
			continue
		}
		c := Change{Path: itemPath, Old: oldVal, Type: Removed, Section: section(basePath)}
		c.Severity = assessSeverity(c)
		diff.Removed = append(diff.Removed, c)
	}
	for key, newVal := range newByKey {
		if _, ok := oldByKey[key]; ok {
			continue
		}
		itemPath := fmt.Sprintf("%s[%s]", basePath, key)
		c := Change{Path: itemPath, New: newVal, Type: Added, Section: section(basePath)}
		c.Severity = assessSeverity(c)
		diff.Added = append(diff.Added, c)
	}
}

func indexArrayByKey(arr []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(arr))
	for i, item := range arr {
		key := fmt.Sprintf("%d", i)
		if m, ok := item.(map[string]interface{}); ok {
			for _, labelKey := range []string{"id", "name", "addr"} {
				if label, ok := m[labelKey].(string); ok && label != "" {
					key = labelKey + ":" + label
					break
				}
			}
		}
		out[key] = item
	}
	return out
}

// assessSeverity flags changes that touch quorum arbitration or pool
// steering as critical, matching the ambient severity classification the
// rest of this codebase applies to firewall policy/ipset changes.
func assessSeverity(c Change) string {
	path := strings.ToLower(c.Path)

	if strings.Contains(path, "schema_version") {
		return "critical"
	}
	if strings.Contains(path, "pool") && (strings.Contains(path, "mode") || strings.Contains(path, "worker_bits")) {
		return "critical"
	}
	if strings.Contains(path, "real_server") && c.Type == Removed {
		return "warning"
	}
	if strings.Contains(path, "quorum") || strings.Contains(path, "hysteresis") || strings.Contains(path, "scheduler") {
		return "warning"
	}
	return "info"
}

func section(path string) string {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func (cd *ConfigDiff) calculateSummary() {
	sections := make(map[string]bool)
	for _, c := range append(append(append([]Change{}, cd.Added...), cd.Modified...), cd.Removed...) {
		cd.Summary.TotalChanges++
		sections[c.Section] = true

		switch c.Severity {
		case "critical":
			cd.Summary.CriticalChanges++
		case "warning":
			cd.Summary.WarningChanges++
		}

		path := strings.ToLower(c.Path)
		if strings.Contains(path, "quorum") || strings.Contains(path, "hysteresis") ||
			strings.Contains(path, "real_server") || strings.Contains(path, "scheduler") {
			cd.Summary.HasQuorumImpact = true
		}
		if strings.Contains(path, "pool") {
			cd.Summary.HasPoolImpact = true
		}
	}
	for s := range sections {
		cd.Summary.AffectedSections = append(cd.Summary.AffectedSections, s)
	}
	sort.Strings(cd.Summary.AffectedSections)
}

func (cd *ConfigDiff) HasChanges() bool {
	return len(cd.Added) > 0 || len(cd.Modified) > 0 || len(cd.Removed) > 0
}

func (cd *ConfigDiff) GetChangesBySection() map[string][]Change {
	out := make(map[string][]Change)
	for _, c := range cd.Added {
		out[c.Section] = append(out[c.Section], c)
	}
	for _, c := range cd.Modified {
		out[c.Section] = append(out[c.Section], c)
	}
	for _, c := range cd.Removed {
		out[c.Section] = append(out[c.Section], c)
	}
	return out
}

func (cd *ConfigDiff) String() string {
	var parts []string
	if len(cd.Added) > 0 {
		parts = append(parts, fmt.Sprintf("added: %d", len(cd.Added)))
	}
	if len(cd.Modified) > 0 {
		parts = append(parts, fmt.Sprintf("modified: %d", len(cd.Modified)))
	}
	if len(cd.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("removed: %d", len(cd.Removed)))
	}
	if cd.Summary.CriticalChanges > 0 {
		parts = append(parts, fmt.Sprintf("critical: %d", cd.Summary.CriticalChanges))
	}
	result := strings.Join(parts, ", ")
	if cd.Summary.HasQuorumImpact {
		result += " [quorum impact]"
	}
	if cd.Summary.HasPoolImpact {
		result += " [pool impact, requires full rebind]"
	}
	return result
}

func (cd *ConfigDiff) ToJSON() (string, error) {
	data, err := json.MarshalIndent(cd, "", "  ")
	if err != nil {
		return "", laddrerrors.Wrap(err, laddrerrors.KindInternal, "config: marshal diff")
	}
	return string(data), nil
}
