package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	BotToken        string
	BotChatID       string
	BotAPIBase      string

	DocumentPath string
	StateDir     string
	CacheDir     string
	ReportDir    string

	Tables    *Tables
	ConfigDir string
}

// FileConfig represents the structure of ~/.routekeeper/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Bot     BotConfig     `yaml:"bot"`
	Paths   PathsConfig   `yaml:"paths"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
}

// BotConfig holds notification bot configuration from file.
type BotConfig struct {
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
	APIBase string `yaml:"api_base"`
}

// PathsConfig holds file layout configuration from file.
type PathsConfig struct {
	Document  string `yaml:"document"`
	StateDir  string `yaml:"state_dir"`
	CacheDir  string `yaml:"cache_dir"`
	ReportDir string `yaml:"report_dir"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		BotToken:        getEnvOrDefault("ROUTEKEEPER_BOT_TOKEN", fileConfig.Bot.Token),
		BotChatID:       getEnvOrDefault("ROUTEKEEPER_CHAT_ID", fileConfig.Bot.ChatID),
		BotAPIBase:      getEnvOrDefault("ROUTEKEEPER_BOT_API", fileConfig.Bot.APIBase),
		DocumentPath:    getEnvOrDefault("ROUTEKEEPER_DOC", fileConfig.Paths.Document),
		ConfigDir:       configDir,
	}

	if cfg.BotAPIBase == "" {
		cfg.BotAPIBase = "https://api.telegram.org"
	}
	if cfg.DocumentPath == "" {
		cfg.DocumentPath = filepath.Join(configDir, "routing.md")
	}
	cfg.StateDir = firstNonEmpty(fileConfig.Paths.StateDir, filepath.Join(configDir, "state"))
	cfg.CacheDir = firstNonEmpty(fileConfig.Paths.CacheDir, filepath.Join(configDir, "cache"))
	cfg.ReportDir = firstNonEmpty(fileConfig.Paths.ReportDir, filepath.Join(configDir, "reports"))

	tablesPath := filepath.Join(configDir, "tables.yaml")
	if _, err := os.Stat(tablesPath); err == nil {
		tables, err := LoadTables(tablesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load tables config: %w", err)
		}
		cfg.Tables = tables
	} else {
		cfg.Tables = DefaultTables()
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".routekeeper")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
