package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"leadqualify/internal/api"
	"leadqualify/internal/leads"
	"leadqualify/internal/llm"
	"leadqualify/internal/logger"
	"leadqualify/internal/retrieval"
)

// Config is the full application configuration. Structural settings come
// from config.yaml; secrets come from the environment and are filled in by
// applyEnv.
type Config struct {
	Server api.Config `yaml:"server"`
	LLM    llm.Config `yaml:"llm"`

	Cache struct {
		TTLHours int `yaml:"ttl_hours"`
	} `yaml:"cache"`

	Retrieval struct {
		DataDir              string                `yaml:"data_dir"`
		HashFile             string                `yaml:"hash_file"`
		RefreshIntervalHours int                   `yaml:"refresh_interval_hours"`
		URLs                 []string              `yaml:"urls"`
		SalesContent         []retrieval.SalesItem `yaml:"sales_content"`
	} `yaml:"retrieval"`

	Leads struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"leads"`

	SMTP      leads.SMTPConfig      `yaml:"smtp"`
	Scheduler leads.SchedulerConfig `yaml:"scheduler"`
	Logger    logger.Config         `yaml:"logger"`

	// Environment-only settings.
	RedisURL          string `yaml:"-"`
	WebhookContactURL string `yaml:"-"`
	WebhookCallURL    string `yaml:"-"`
}

// Load reads config.yaml and overlays the environment secrets. REDIS_URL and
// OPENAI_API_KEY are required.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	c.RedisURL = os.Getenv("REDIS_URL")
	c.WebhookContactURL = os.Getenv("WEBHOOK_CONTACT_URL")
	c.WebhookCallURL = os.Getenv("WEBHOOK_CALL_URL")
	c.SMTP.Username = os.Getenv("SMTP_USERNAME")
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.Scheduler.APIKey = os.Getenv("TELEPHONY_API_KEY")
}

func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is not set")
	}
	return nil
}
