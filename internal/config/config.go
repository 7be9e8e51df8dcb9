package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLimitlessURL = "https://api.limitless.ai/v1"
	defaultArchiveDir   = "archives"
	defaultSchedule     = "@every 6h"
)

// LimitlessConfig holds the transcript service settings
type LimitlessConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	AuthMethod     string `yaml:"auth_method"` // "all", "bearer", "api_key"
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PageSize       int    `yaml:"page_size"`
	ForceMock      bool   `yaml:"force_mock"`
}

// NotionDatabases maps destination collections to database ids
type NotionDatabases struct {
	Tasks    string `yaml:"tasks"`
	Projects string `yaml:"projects"`
	Todo     string `yaml:"todo"`
	Lifelog  string `yaml:"lifelog"`
}

// NotionConfig holds destination database settings
type NotionConfig struct {
	APIKey       string          `yaml:"api_key"`
	Databases    NotionDatabases `yaml:"databases"`
	WriteDelayMS int             `yaml:"write_delay_ms"`
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	Provider        string `yaml:"provider"` // "openai", "anthropic", "ollama", or any OpenAI-compatible
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"` // custom endpoint; defaults per provider
	Model           string `yaml:"model"`    // defaults per provider
	APIFormat       string `yaml:"api_format"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

// NotifyConfig selects the notification channels
type NotifyConfig struct {
	LogFile    string `yaml:"log_file"`
	WebhookURL string `yaml:"webhook_url"`
}

// Config holds application configuration
type Config struct {
	Limitless        LimitlessConfig `yaml:"limitless"`
	Notion           NotionConfig    `yaml:"notion"`
	LLM              LLMConfig       `yaml:"llm"`
	Days             int             `yaml:"days"`
	MaxResults       int             `yaml:"max_results"`
	ArchiveDir       string          `yaml:"archive_dir"`
	KeywordsPath     string          `yaml:"keywords_path"`
	StatePath        string          `yaml:"state_path"`
	DefaultAssignee  string          `yaml:"default_assignee"`
	DueInDays        int             `yaml:"due_in_days"`
	DatePrefixTitles bool            `yaml:"date_prefix_titles"`
	Schedule         string          `yaml:"schedule"`
	Notify           NotifyConfig    `yaml:"notify"`
	LogLevel         string          `yaml:"log_level"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Limitless: LimitlessConfig{
			BaseURL:        DefaultLimitlessURL,
			AuthMethod:     "all",
			TimeoutSeconds: 30,
			PageSize:       50,
		},
		Notion:           NotionConfig{WriteDelayMS: 300},
		LLM:              LLMConfig{Provider: "openai"},
		Days:             1,
		MaxResults:       100,
		ArchiveDir:       defaultArchiveDir,
		DueInDays:        7,
		DatePrefixTitles: true,
		Schedule:         defaultSchedule,
		LogLevel:         "info",
	}
}

// GetLLMConfig returns the effective LLM configuration. Provider-specific
// key variables are consulted when no generic key is set.
func (c *Config) GetLLMConfig() LLMConfig {
	llm := c.LLM

	if key := os.Getenv("LLM_API_KEY"); key != "" {
		llm.APIKey = key
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		llm.Provider = provider
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		llm.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		llm.Model = model
	}

	if llm.APIKey == "" {
		switch llm.Provider {
		case "anthropic":
			llm.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai", "":
			llm.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return llm
}

// Load loads configuration from config file and environment variables
// Environment variables take precedence over config file values
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.loadFromEnv()

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath := getConfigPath()
	if configPath == "" {
		return os.ErrNotExist
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if key := os.Getenv("LIMITLESS_API_KEY"); key != "" {
		c.Limitless.APIKey = key
	}
	if url := os.Getenv("LIMITLESS_API_URL"); url != "" {
		c.Limitless.BaseURL = url
	}
	if key := os.Getenv("NOTION_API_KEY"); key != "" {
		c.Notion.APIKey = key
	}
	if id := os.Getenv("NOTION_TASKS_DB_ID"); id != "" {
		c.Notion.Databases.Tasks = id
	}
	if id := os.Getenv("NOTION_PROJECTS_DB_ID"); id != "" {
		c.Notion.Databases.Projects = id
	}
	if id := os.Getenv("NOTION_TODO_DB_ID"); id != "" {
		c.Notion.Databases.Todo = id
	}
	if id := os.Getenv("NOTION_LIFELOG_DB_ID"); id != "" {
		c.Notion.Databases.Lifelog = id
	}
	if provider := os.Getenv("DEFAULT_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("DEFAULT_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if daysStr := os.Getenv("LIFELOG_DAYS"); daysStr != "" {
		if d, err := strconv.Atoi(daysStr); err == nil {
			c.Days = d
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// ResolvedKeywordsPath returns the keyword file path, defaulting into the config dir
func (c *Config) ResolvedKeywordsPath() string {
	if c.KeywordsPath != "" {
		return c.KeywordsPath
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "keywords.json"
	}
	return filepath.Join(dir, "keywords.json")
}

// ResolvedStatePath returns the run-state file path, defaulting into the config dir
func (c *Config) ResolvedStatePath() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "state.json"
	}
	return filepath.Join(dir, "state.json")
}

// getConfigPath returns the path to the config file
// Priority: $LIFELOG_SYNC_CONFIG > ~/.config/lifelog-sync/config.yaml
func getConfigPath() string {
	if configPath := os.Getenv("LIFELOG_SYNC_CONFIG"); configPath != "" {
		return configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "lifelog-sync", "config.yaml")
}

// ConfigPath exposes the resolved config file path
func ConfigPath() string {
	return getConfigPath()
}

func GetConfigDir() (string, error) {
	configPath := getConfigPath()
	if configPath == "" {
		return "", fmt.Errorf("cannot determine config path")
	}
	return filepath.Dir(configPath), nil
}

// EnsureConfigDir ensures the config directory exists
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// SaveExampleConfig creates an example config file
func SaveExampleConfig() error {
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	example := `# Lifelog Sync Configuration

# Transcript service. LIMITLESS_API_KEY and LIMITLESS_API_URL override these.
# Without an api_key the fetcher returns synthetic transcripts.
limitless:
  api_key: ""
  base_url: "https://api.limitless.ai/v1"
  auth_method: "all"       # "all", "bearer" or "api_key"
  timeout_seconds: 30

# Destination databases. NOTION_API_KEY and NOTION_*_DB_ID override these.
notion:
  api_key: ""
  databases:
    tasks: ""
    projects: ""
    todo: ""
    lifelog: ""

# Extraction model. LLM_API_KEY, LLM_PROVIDER, LLM_BASE_URL, LLM_MODEL also work.
llm:
  provider: "openai"       # "openai", "anthropic", "ollama", or custom
  api_key: ""
  # model: ""
  # max_prompt_tokens: 6000

days: 1
max_results: 100
archive_dir: "archives"
due_in_days: 7
schedule: "@every 6h"
log_level: "info"
`

	return os.WriteFile(configPath, []byte(example), 0600)
}

// Save writes the configuration back to the config file
func (c *Config) Save() error {
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Lifelog Sync Configuration\n# Note: API keys can also be set via environment variables\n\n")
	return WriteFileAtomic(getConfigPath(), append(header, data...), 0600)
}

// WriteFileAtomic writes data to a temp file in the same directory and renames it into place
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
