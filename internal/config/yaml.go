package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile представляет структуру YAML файла конфигурации
type ConfigFile struct {
	Minify  *MinifyConfig  `yaml:"minify"`
	Journal *JournalConfig `yaml:"journal,omitempty"`
}

// LoadFromYAML загружает полную конфигурацию из YAML файла
func LoadFromYAML(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if configFile.Minify != nil {
		if err := configFile.Minify.Validate(); err != nil {
			return nil, err
		}
	}
	if configFile.Journal != nil && configFile.Journal.URL == "" {
		return nil, fmt.Errorf("journal has no URL")
	}

	return &configFile, nil
}
