package liveagent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" decode cleanly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full process configuration, loaded from YAML with
// environment overrides for secrets.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	LLM        LLMConfig         `yaml:"llm"`
	Agent      AgentConfig       `yaml:"agent"`
	Storage    StorageConfig     `yaml:"storage"`
	Connectors []ConnectorConfig `yaml:"connectors"`
	Tools      []ToolConfig      `yaml:"tools"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	CORSOrigins    []string `yaml:"corsOrigins"`
	RateLimit      float64  `yaml:"rateLimit"`
	RateBurst      int      `yaml:"rateBurst"`
	RequestTimeout Duration `yaml:"requestTimeout"`
	MaxBodyBytes   int64    `yaml:"maxBodyBytes"`
}

// LLMConfig selects and configures the language model provider.
type LLMConfig struct {
	// Provider is one of "openai", "anthropic" or "ollama".
	Provider string `yaml:"provider"`

	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint. Required for ollama.
	BaseURL string `yaml:"baseUrl"`

	// APIKey is normally left empty here and supplied via
	// OPENAI_API_KEY / ANTHROPIC_API_KEY.
	APIKey string `yaml:"apiKey"`

	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float32 `yaml:"temperature"`
}

// AgentConfig bounds the planning loop.
type AgentConfig struct {
	MaxTurns     int `yaml:"maxTurns"`
	ModelRetries int `yaml:"modelRetries"`

	// RequireLiveData rejects direct answers until at least one tool
	// execution succeeded. Defaults to true.
	RequireLiveData *bool `yaml:"requireLiveData"`

	// SystemPrompt replaces the built-in system prompt when set.
	SystemPrompt string `yaml:"systemPrompt"`
}

// StorageConfig selects the conversation archive backend.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// DSNEnv names an environment variable holding the DSN.
	DSNEnv string `yaml:"dsnEnv"`
}

// ConnectorConfig declares one backing data source.
type ConnectorConfig struct {
	ID string `yaml:"id"`

	// Type is one of "postgres", "sqlite" or "http".
	Type string `yaml:"type"`

	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsnEnv"`

	// BaseURL is the endpoint root for http connectors.
	BaseURL string            `yaml:"baseUrl"`
	Headers map[string]string `yaml:"headers"`

	// HealthPath is probed by http connector health checks.
	HealthPath string `yaml:"healthPath"`

	// DataPath is a gjson path selecting the row collection in http
	// responses. Empty means the whole document.
	DataPath string `yaml:"dataPath"`

	// TimestampPath is a gjson path to the store-reported data timestamp.
	TimestampPath string `yaml:"timestampPath"`

	// RedactFields are gjson paths deleted from http payloads before
	// they reach the model.
	RedactFields []string `yaml:"redactFields"`

	ReadOnly      *bool    `yaml:"readOnly"`
	MaxRows       int      `yaml:"maxRows"`
	QueryTimeout  Duration `yaml:"queryTimeout"`
	MaxConcurrent int64    `yaml:"maxConcurrent"`
}

// ToolConfig declares a query-backed tool.
type ToolConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Connector   string            `yaml:"connector"`
	Query       string            `yaml:"query"`
	Params      []ToolParamConfig `yaml:"params"`
}

// ToolParamConfig declares one tool parameter.
type ToolParamConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// LoadConfig reads, overrides and validates configuration from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LIVEAGENT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LIVEAGENT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Storage.DSNEnv != "" {
		if v := os.Getenv(c.Storage.DSNEnv); v != "" {
			c.Storage.DSN = v
		}
	}
	for i := range c.Connectors {
		if c.Connectors[i].DSNEnv == "" {
			continue
		}
		if v := os.Getenv(c.Connectors[i].DSNEnv); v != "" {
			c.Connectors[i].DSN = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 20
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = Duration(60 * time.Second)
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.Model = "claude-sonnet-4-5"
		case "ollama":
			c.LLM.Model = "llama3.2"
		default:
			c.LLM.Model = "gpt-4o"
		}
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}

	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 10
	}
	if c.Agent.ModelRetries <= 0 {
		c.Agent.ModelRetries = 3
	}
	if c.Agent.RequireLiveData == nil {
		t := true
		c.Agent.RequireLiveData = &t
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	for i := range c.Connectors {
		cc := &c.Connectors[i]
		if cc.ReadOnly == nil {
			t := true
			cc.ReadOnly = &t
		}
		if cc.MaxRows <= 0 {
			cc.MaxRows = 1000
		}
		if cc.QueryTimeout <= 0 {
			cc.QueryTimeout = Duration(30 * time.Second)
		}
		if cc.MaxConcurrent <= 0 {
			cc.MaxConcurrent = 4
		}
		if cc.Type == "http" && cc.HealthPath == "" {
			cc.HealthPath = "/health"
		}
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm: unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm: ollama requires baseUrl")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage: postgres driver requires dsn")
		}
	default:
		return fmt.Errorf("storage: unsupported driver %q", c.Storage.Driver)
	}

	ids := make(map[string]bool, len(c.Connectors))
	for _, cc := range c.Connectors {
		if cc.ID == "" {
			return fmt.Errorf("connector: id is required")
		}
		if ids[cc.ID] {
			return fmt.Errorf("connector %q: duplicate id", cc.ID)
		}
		ids[cc.ID] = true

		switch cc.Type {
		case "postgres", "sqlite":
			if cc.DSN == "" {
				return fmt.Errorf("connector %q: dsn is required", cc.ID)
			}
		case "http":
			if cc.BaseURL == "" {
				return fmt.Errorf("connector %q: baseUrl is required", cc.ID)
			}
		default:
			return fmt.Errorf("connector %q: unsupported type %q", cc.ID, cc.Type)
		}
	}

	names := make(map[string]bool, len(c.Tools))
	for _, tc := range c.Tools {
		if tc.Name == "" {
			return fmt.Errorf("tool: name is required")
		}
		if names[tc.Name] {
			return fmt.Errorf("tool %q: duplicate name", tc.Name)
		}
		names[tc.Name] = true

		if !ids[tc.Connector] {
			return fmt.Errorf("tool %q: unknown connector %q", tc.Name, tc.Connector)
		}
		if tc.Query == "" {
			return fmt.Errorf("tool %q: query is required", tc.Name)
		}
	}

	return nil
}
