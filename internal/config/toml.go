package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// tomlOverrides is the shape of .qterm/config.toml: a lightweight,
// human-editable project override file for the handful of settings a
// maintainer is likely to want in version control without committing a
// full settings.json. Unlike settings.json it carries no permissions or
// hooks block — those stay JSON-only.
type tomlOverrides struct {
	Model            string            `toml:"model"`
	Theme            string            `toml:"theme"`
	EditorMode       string            `toml:"editor_mode"`
	DiffTool         string            `toml:"diff_tool"`
	NotifChannel     string            `toml:"notif_channel"`
	RespectGitignore *bool             `toml:"respect_gitignore"`
	FastMode         *bool             `toml:"fast_mode"`
	Env              map[string]string `toml:"env"`
}

// loadTOMLOverrides reads .qterm/config.toml from cwd, if present, and
// converts it into a Settings overlay. A missing file is not an error;
// a malformed one is, so a typo'd key surfaces instead of silently
// being ignored.
func loadTOMLOverrides(cwd string) (*Settings, error) {
	path := filepath.Join(cwd, ".qterm", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	var t tomlOverrides
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, err
	}

	return &Settings{
		Model:            t.Model,
		Theme:            t.Theme,
		EditorMode:       t.EditorMode,
		DiffTool:         t.DiffTool,
		NotifChannel:     t.NotifChannel,
		RespectGitignore: t.RespectGitignore,
		FastMode:         t.FastMode,
		Env:              t.Env,
	}, nil
}
