package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// keywordRuleFile is the on-disk TOML shape for an exported rule set,
// an alternate format to the YAML config file for operators who want to
// hand-edit or share just the keyword rules.
type keywordRuleFile struct {
	Rules []KeywordRuleConfig `toml:"rule"`
}

// LoadKeywordRulesTOML reads a keyword rule set from a TOML file.
func LoadKeywordRulesTOML(path string) ([]KeywordRuleConfig, error) {
	var f keywordRuleFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: decode keyword rules %s: %w", path, err)
	}
	return f.Rules, nil
}

// SaveKeywordRulesTOML writes a keyword rule set to a TOML file.
func SaveKeywordRulesTOML(path string, rules []KeywordRuleConfig) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()

	enc := toml.NewEncoder(file)
	if err := enc.Encode(keywordRuleFile{Rules: rules}); err != nil {
		return fmt.Errorf("config: encode keyword rules %s: %w", path, err)
	}
	return nil
}
