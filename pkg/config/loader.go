package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	loadedConfig *BotConfig

	configMutex sync.RWMutex
)

func LoadConfig(filePath string) error {
	log.Printf("Loading configuration from %s...", filePath)

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	var cfg BotConfig

	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return fmt.Errorf("failed to unmarshal YAML from '%s': %w", filePath, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	configMutex.Lock()
	loadedConfig = &cfg
	configMutex.Unlock()

	log.Printf("Configuration loaded and validated successfully. %d admins configured.", len(cfg.AdminIDs))
	return nil
}

func GetConfig() *BotConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if loadedConfig == nil {
		log.Println("Warning: GetConfig() called before configuration was loaded.")
	}
	return loadedConfig
}

// SetConfig replaces the loaded configuration. Intended for tests.
func SetConfig(cfg *BotConfig) {
	configMutex.Lock()
	loadedConfig = cfg
	configMutex.Unlock()
}
