package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlSkillFile is the top-level YAML structure for skill content files.
type yamlSkillFile struct {
	Skills []yamlSkill `yaml:"skills"`
}

// yamlSkill is the YAML representation of a skill definition.
type yamlSkill struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	BasePower     int            `yaml:"base_power"`
	AetherCost    int            `yaml:"aether_cost"`
	Target        string         `yaml:"target"`
	ScalingStats  []string       `yaml:"scaling_stats"`
	RequiredStats map[string]int `yaml:"required_stats"`
	Type          string         `yaml:"type"`
	Branch        string         `yaml:"branch"`
}

// LoadSkillsFromBytes parses and validates skill definitions from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the skill schema.
// Postcondition: Returns validated skills or the first validation error.
func LoadSkillsFromBytes(data []byte) ([]*Skill, error) {
	var file yamlSkillFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing skill YAML: %w", err)
	}

	skills := make([]*Skill, 0, len(file.Skills))
	seen := make(map[string]bool, len(file.Skills))
	for _, y := range file.Skills {
		s := &Skill{
			ID:            y.ID,
			Name:          y.Name,
			BasePower:     y.BasePower,
			AetherCost:    y.AetherCost,
			Target:        TargetMode(strings.ToLower(y.Target)),
			ScalingStats:  y.ScalingStats,
			RequiredStats: y.RequiredStats,
			Type:          y.Type,
			BranchID:      y.Branch,
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("skill %s: duplicate id", s.ID)
		}
		seen[s.ID] = true
		skills = append(skills, s)
	}
	return skills, nil
}

// LoadSkillsFromFile reads and validates a single skill YAML file.
//
// Precondition: path must point to a valid YAML skill file.
// Postcondition: Returns validated skills or a non-nil error.
func LoadSkillsFromFile(path string) ([]*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skill file %s: %w", path, err)
	}
	skills, err := LoadSkillsFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return skills, nil
}

// LoadSkillsFromDir loads all YAML files in a directory as skill definitions.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated skills or the first error encountered.
// Duplicate skill IDs across files are an error.
func LoadSkillsFromDir(dir string) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skill directory %s: %w", dir, err)
	}

	var all []*Skill
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		skills, err := LoadSkillsFromFile(path)
		if err != nil {
			return nil, err
		}
		for _, s := range skills {
			if prev, ok := seen[s.ID]; ok {
				return nil, fmt.Errorf("skill %s: defined in both %s and %s", s.ID, prev, name)
			}
			seen[s.ID] = name
		}
		all = append(all, skills...)
	}
	return all, nil
}
