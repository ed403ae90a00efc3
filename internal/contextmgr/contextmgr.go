// Package contextmgr maintains the global and per-profile sets of
// glob-matched context files injected into every request, plus the
// header/footer-wrapped synthetic message pair that carries them.
package contextmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrProfileExists/ErrProfileNotFound/ErrActiveProfile are returned by
// the profile-management operations /profile drives.
var (
	ErrProfileExists   = fmt.Errorf("profile already exists")
	ErrProfileNotFound = fmt.Errorf("profile not found")
	ErrActiveProfile   = fmt.Errorf("cannot delete the active profile")
)

// DefaultMaxContextBytes is CONTEXT_FILES_MAX_SIZE's default: the total
// size budget CollectContextFilesWithLimit fills greedily, skipping any
// file that would push the total past it.
const DefaultMaxContextBytes = 150_000

// ProfileConfig is one profile's (or the global scope's) declared
// context paths and hooks. Hooks live in internal/hooks.ContextHookDef;
// this package only owns the glob list and the size cap.
type ProfileConfig struct {
	Paths            []string
	MaxContextBytes  int
}

// NewProfileConfig returns an empty config with the default size cap.
func NewProfileConfig() ProfileConfig {
	return ProfileConfig{MaxContextBytes: DefaultMaxContextBytes}
}

// Manager holds the global config plus whichever profile config is
// currently active.
type Manager struct {
	Global         ProfileConfig
	ActiveProfile  string
	Profiles       map[string]ProfileConfig
}

// NewManager returns a manager with an empty global scope and a single
// "default" profile.
func NewManager() *Manager {
	return &Manager{
		Global:        NewProfileConfig(),
		ActiveProfile: "default",
		Profiles:      map[string]ProfileConfig{"default": NewProfileConfig()},
	}
}

// EffectiveConfig merges the global scope's paths with the active
// profile's, global paths first, so /context add --global paths are
// shared across every profile while a profile can layer its own on top.
func (m *Manager) EffectiveConfig() ProfileConfig {
	active := m.Profiles[m.ActiveProfile]
	cfg := ProfileConfig{MaxContextBytes: m.Global.MaxContextBytes}
	if cfg.MaxContextBytes <= 0 {
		cfg.MaxContextBytes = active.MaxContextBytes
	}
	cfg.Paths = append(append([]string{}, m.Global.Paths...), active.Paths...)
	return cfg
}

// AddPaths appends glob patterns to the global scope or the active
// profile, deduplicating against what is already present.
func (m *Manager) AddPaths(global bool, paths []string) {
	if global {
		m.Global.Paths = dedupeAppend(m.Global.Paths, paths)
		return
	}
	cfg := m.Profiles[m.ActiveProfile]
	cfg.Paths = dedupeAppend(cfg.Paths, paths)
	m.Profiles[m.ActiveProfile] = cfg
}

// RemovePaths removes matching glob patterns (exact string match) from
// the global scope or the active profile.
func (m *Manager) RemovePaths(global bool, paths []string) {
	remove := make(map[string]bool, len(paths))
	for _, p := range paths {
		remove[p] = true
	}
	if global {
		m.Global.Paths = filterOut(m.Global.Paths, remove)
		return
	}
	cfg := m.Profiles[m.ActiveProfile]
	cfg.Paths = filterOut(cfg.Paths, remove)
	m.Profiles[m.ActiveProfile] = cfg
}

// ClearPaths empties the global scope's or active profile's path list.
func (m *Manager) ClearPaths(global bool) {
	if global {
		m.Global.Paths = nil
		return
	}
	cfg := m.Profiles[m.ActiveProfile]
	cfg.Paths = nil
	m.Profiles[m.ActiveProfile] = cfg
}

// ListProfiles returns profile names in sorted order.
func (m *Manager) ListProfiles() []string {
	names := make([]string, 0, len(m.Profiles))
	for name := range m.Profiles {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// SetActiveProfile switches the active profile. The profile must already
// exist (create it first with CreateProfile).
func (m *Manager) SetActiveProfile(name string) error {
	if _, ok := m.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	m.ActiveProfile = name
	return nil
}

// CreateProfile registers a new empty profile.
func (m *Manager) CreateProfile(name string) error {
	if _, ok := m.Profiles[name]; ok {
		return fmt.Errorf("%w: %s", ErrProfileExists, name)
	}
	m.Profiles[name] = NewProfileConfig()
	return nil
}

// DeleteProfile removes a profile. The active profile cannot be deleted.
func (m *Manager) DeleteProfile(name string) error {
	if name == m.ActiveProfile {
		return ErrActiveProfile
	}
	if _, ok := m.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(m.Profiles, name)
	return nil
}

// RenameProfile renames a profile, updating ActiveProfile if it was the
// one renamed.
func (m *Manager) RenameProfile(oldName, newName string) error {
	cfg, ok := m.Profiles[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, oldName)
	}
	if _, exists := m.Profiles[newName]; exists {
		return fmt.Errorf("%w: %s", ErrProfileExists, newName)
	}
	delete(m.Profiles, oldName)
	m.Profiles[newName] = cfg
	if m.ActiveProfile == oldName {
		m.ActiveProfile = newName
	}
	return nil
}

func dedupeAppend(existing, additions []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	out := append([]string{}, existing...)
	for _, a := range additions {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func filterOut(existing []string, remove map[string]bool) []string {
	var out []string
	for _, e := range existing {
		if !remove[e] {
			out = append(out, e)
		}
	}
	return out
}

// CollectedFile is one file successfully read into the context bundle.
type CollectedFile struct {
	Path    string
	Content string
}

// CollectResult is the outcome of collecting context files for one
// request: the files that fit, and the glob matches that were dropped
// because they would exceed the size budget or could not be read
// (surfaced to the user as a warning, not an error).
type CollectResult struct {
	Files   []CollectedFile
	Dropped []string
	Bytes   int
}

// CollectContextFilesWithLimit expands every glob in cfg.Paths against
// cwd, in declared order, greedily reading files. A file that would push
// the running total past cfg.MaxContextBytes (or DefaultMaxContextBytes
// if unset) is reported as dropped rather than causing an error, and
// later matches that still fit are read.
func CollectContextFilesWithLimit(cwd string, cfg ProfileConfig) (CollectResult, error) {
	limit := cfg.MaxContextBytes
	if limit <= 0 {
		limit = DefaultMaxContextBytes
	}

	var result CollectResult
	seen := make(map[string]bool)

	for _, pattern := range cfg.Paths {
		matches, err := doublestar.Glob(os.DirFS(cwd), pattern)
		if err != nil {
			return result, fmt.Errorf("expand glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] {
				continue
			}
			seen[rel] = true

			full := filepath.Join(cwd, rel)
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				continue
			}

			if result.Bytes+int(info.Size()) > limit {
				result.Dropped = append(result.Dropped, rel)
				continue
			}

			data, err := os.ReadFile(full)
			if err != nil {
				result.Dropped = append(result.Dropped, rel)
				continue
			}

			result.Files = append(result.Files, CollectedFile{Path: rel, Content: string(data)})
			result.Bytes += len(data)
		}
	}
	return result, nil
}

// contextSentinelOpen/Close bracket the synthetic context message so
// downstream tooling (and the orchestrator's own re-injection check) can
// recognize and strip a previous context block before adding a fresh one.
const (
	contextSentinelOpen  = "<qterm-context-files>"
	contextSentinelClose = "</qterm-context-files>"
)

// BuildContextBlock renders a CollectResult as the fixed-sentinel text
// block injected as the first synthetic user message of a request.
func BuildContextBlock(result CollectResult) string {
	if len(result.Files) == 0 && len(result.Dropped) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextSentinelOpen + "\n")
	for _, f := range result.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Path, f.Content)
	}
	if len(result.Dropped) > 0 {
		fmt.Fprintf(&b, "(%d file(s) omitted: context size limit reached)\n", len(result.Dropped))
	}
	b.WriteString(contextSentinelClose)
	return b.String()
}

// IsContextBlock reports whether text is a previously-injected context
// block, so callers can replace rather than stack it across turns.
func IsContextBlock(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), contextSentinelOpen)
}
