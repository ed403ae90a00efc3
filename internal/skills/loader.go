package skills

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSkills discovers and parses skill files from both user-level
// (~/.claude/skills/) and project-level (.claude/skills/) directories.
// Project-level skills take precedence over user-level skills with the
// same name.
func LoadSkills(cwd string) []Skill {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var skills []Skill
	seen := make(map[string]bool)

	// Project-level skills first (higher priority).
	projectDir := filepath.Join(cwd, ".claude", "skills")
	projectSkills := loadSkillsFromDir(projectDir)
	for _, s := range projectSkills {
		skills = append(skills, s)
		seen[s.Name] = true
	}

	// User-level skills (lower priority — skip if name already seen).
	userDir := filepath.Join(home, ".claude", "skills")
	userSkills := loadSkillsFromDir(userDir)
	for _, s := range userSkills {
		if !seen[s.Name] {
			skills = append(skills, s)
			seen[s.Name] = true
		}
	}

	return skills
}

// ActiveSkillContent returns the combined content of all loaded skills
// for injection into the system prompt.
func ActiveSkillContent(skills []Skill) string {
	if len(skills) == 0 {
		return ""
	}

	var parts []string
	for _, s := range skills {
		header := "## " + s.Name
		if s.Description != "" {
			header += " — " + s.Description
		}
		if s.Trigger != "" {
			header += " (trigger: " + s.Trigger + ")"
		}
		parts = append(parts, header+"\n\n"+s.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// loadSkillsFromDir reads all .md files from a directory and parses them as skills.
func loadSkillsFromDir(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		skill := parseSkill(string(data), path)
		if skill.Name == "" {
			// Use filename without extension as fallback name.
			skill.Name = strings.TrimSuffix(entry.Name(), ".md")
		}
		skills = append(skills, skill)
	}
	return skills
}

// frontmatter is the YAML shape expected at the top of a skill file.
// Unmarshaled with yaml.v3 rather than a line-scanner so nested values
// (e.g. a block-style description, or a list under a future field)
// don't silently come back empty.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Trigger     string `yaml:"trigger"`
}

// parseSkill parses a markdown file with optional YAML frontmatter.
// Frontmatter is delimited by "---" lines at the top of the file.
func parseSkill(content, filePath string) Skill {
	s := Skill{FilePath: filePath}

	// Check for frontmatter.
	if !strings.HasPrefix(content, "---") {
		s.Content = strings.TrimSpace(content)
		return s
	}

	// Split on "---" to extract frontmatter.
	// Expected format: ---\nkey: value\n---\nbody
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		s.Content = strings.TrimSpace(content)
		return s
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err == nil {
		s.Name = fm.Name
		s.Description = fm.Description
		s.Trigger = fm.Trigger
	}

	s.Content = strings.TrimSpace(parts[2])
	return s
}
