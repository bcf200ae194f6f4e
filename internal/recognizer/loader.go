package recognizer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/docveil/docveil/internal/entity"
)

// definitionFile is the on-disk schema for declarative recognizers.
type definitionFile struct {
	Recognizers []definition `yaml:"recognizers"`
}

type definition struct {
	Name               string                     `yaml:"name"`
	SupportedLanguages []string                   `yaml:"supportedLanguages"`
	SupportedCountries []string                   `yaml:"supportedCountries"`
	Priority           int                        `yaml:"priority"`
	Specificity        string                     `yaml:"specificity"`
	ContextWords       []string                   `yaml:"contextWords"`
	DenyPatterns       []string                   `yaml:"denyPatterns"`
	UseGlobalContext   bool                       `yaml:"useGlobalContext"`
	UseGlobalDenyList  bool                       `yaml:"useGlobalDenyList"`
	Patterns           []entity.PatternDefinition `yaml:"patterns"`
}

// LoadDefinitions reads declarative recognizer definitions from a YAML file.
// The whole batch is rejected on the first schema violation so a bad file
// never registers partially.
func LoadDefinitions(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions validates and converts raw YAML definition bytes.
func ParseDefinitions(data []byte) ([]Config, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	if len(file.Recognizers) == 0 {
		return nil, fmt.Errorf("definitions contain no recognizers")
	}

	seen := make(map[string]struct{})
	configs := make([]Config, 0, len(file.Recognizers))
	for i, def := range file.Recognizers {
		if err := validateDefinition(i, def, seen); err != nil {
			return nil, err
		}
		seen[def.Name] = struct{}{}

		configs = append(configs, Config{
			Name:               def.Name,
			SupportedLanguages: def.SupportedLanguages,
			SupportedCountries: def.SupportedCountries,
			Priority:           def.Priority,
			Specificity:        entity.ParseSpecificity(def.Specificity),
			ContextWords:       def.ContextWords,
			DenyPatterns:       def.DenyPatterns,
			UseGlobalContext:   def.UseGlobalContext,
			UseGlobalDenyList:  def.UseGlobalDenyList,
			Patterns:           def.Patterns,
		})
	}
	return configs, nil
}

func validateDefinition(index int, def definition, seen map[string]struct{}) error {
	if def.Name == "" {
		return fmt.Errorf("recognizer at index %d: name is required", index)
	}
	if _, dup := seen[def.Name]; dup {
		return fmt.Errorf("recognizer %q (index %d): duplicate name in batch", def.Name, index)
	}
	if def.Priority < 0 {
		return fmt.Errorf("recognizer %q: priority must not be negative", def.Name)
	}
	switch def.Specificity {
	case "", "global", "region", "country":
	default:
		return fmt.Errorf("recognizer %q: unknown specificity %q (must be global, region, or country)", def.Name, def.Specificity)
	}
	if len(def.Patterns) == 0 {
		return fmt.Errorf("recognizer %q: at least one pattern is required", def.Name)
	}
	for j, p := range def.Patterns {
		if p.Regex == "" {
			return fmt.Errorf("recognizer %q pattern %d: regex is required", def.Name, j)
		}
		if _, err := regexp.Compile("(?i)" + p.Regex); err != nil {
			return fmt.Errorf("recognizer %q pattern %d: invalid regex: %w", def.Name, j, err)
		}
		if p.EntityType == "" {
			return fmt.Errorf("recognizer %q pattern %d: entityType is required", def.Name, j)
		}
		if p.BaseScore <= 0 || p.BaseScore >= 1 {
			return fmt.Errorf("recognizer %q pattern %d: baseScore %.2f out of range (0,1)", def.Name, j, p.BaseScore)
		}
	}
	for j, d := range def.DenyPatterns {
		if d == "" {
			return fmt.Errorf("recognizer %q deny pattern %d: empty entry", def.Name, j)
		}
	}
	return nil
}
