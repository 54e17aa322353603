// Package config loads the engine's configuration surface with
// viper: a single mapstructure-tagged struct, an explicit config path
// plus an env var prefix, and sensible defaults applied before the
// file/env overlay.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EmbeddingConfig selects and configures the Embedder.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	Provider         string `mapstructure:"provider"`
	CollectionName   string `mapstructure:"collection_name"`
	URL              string `mapstructure:"url"`
	APIKey           string `mapstructure:"api_key"`
	InitializeSchema bool   `mapstructure:"initialize_schema"`
}

// LLMConfig selects and configures the LLM.
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int64         `mapstructure:"max_tokens"`
	RequestTimeout   int           `mapstructure:"request_timeout_s"` // seconds
}

// DatasourceConfig selects and configures the Datasource.
type DatasourceConfig struct {
	Kind          string            `mapstructure:"kind"` // sql, graphql, http
	DSN           string            `mapstructure:"dsn"`
	Driver        string            `mapstructure:"driver"`
	Endpoint      string            `mapstructure:"endpoint"`
	AuthHeaders   map[string]string `mapstructure:"auth_headers"`
}

// EngineConfig is the engine's behavioral configuration.
type EngineConfig struct {
	ConfidenceThreshold    float64  `mapstructure:"confidence_threshold"`
	MaxTemplates           int      `mapstructure:"max_templates"`
	DomainConfigPath       string   `mapstructure:"domain_config_path"`
	TemplateLibraryPath    []string `mapstructure:"template_library_path"`
	ReloadTemplatesOnStart bool     `mapstructure:"reload_templates_on_start"`
	ForceReloadTemplates   bool     `mapstructure:"force_reload_templates"`
	RequireApproved        bool     `mapstructure:"require_approved"`
}

// Config is the top-level configuration document.
type Config struct {
	Engine      EngineConfig      `mapstructure:"engine"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Datasource  DatasourceConfig  `mapstructure:"datasource"`
}

// Default returns the configuration's baseline values, overridden by
// whatever Load finds in the config file or environment.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ConfidenceThreshold: 0.7,
			MaxTemplates:        5,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		VectorStore: VectorStoreConfig{
			Provider:         "qdrant",
			CollectionName:   "orbit_templates",
			InitializeSchema: true,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0,
			RequestTimeout: 10,
		},
		Datasource: DatasourceConfig{
			Kind: "sql",
		},
	}
}

// Load reads configPath (if non-empty) plus any ORBIT_-prefixed
// environment variables, overlaying them onto Default.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	registerDefaults(v)

	explicitFileMissing := false
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr != nil {
			explicitFileMissing = true
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("orbit")
		v.AddConfigPath(".")
	}

	// AutomaticEnv only resolves a key that viper already knows about
	// (from a default, the config file, or an explicit bind), and it
	// looks up the env var name by joining the prefix to the key with
	// underscores in place of dots. Both registerDefaults and this
	// replacer are required for a nested key like
	// engine.confidence_threshold to bind to ORBIT_ENGINE_CONFIDENCE_THRESHOLD.
	v.SetEnvPrefix("ORBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if !explicitFileMissing {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// registerDefaults seeds v with Default's values under their
// mapstructure keys, so AutomaticEnv has a full set of known keys to
// match environment variables against even when no config file is
// present.
func registerDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("engine.confidence_threshold", d.Engine.ConfidenceThreshold)
	v.SetDefault("engine.max_templates", d.Engine.MaxTemplates)
	v.SetDefault("engine.domain_config_path", d.Engine.DomainConfigPath)
	v.SetDefault("engine.template_library_path", d.Engine.TemplateLibraryPath)
	v.SetDefault("engine.reload_templates_on_start", d.Engine.ReloadTemplatesOnStart)
	v.SetDefault("engine.force_reload_templates", d.Engine.ForceReloadTemplates)
	v.SetDefault("engine.require_approved", d.Engine.RequireApproved)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.collection_name", d.VectorStore.CollectionName)
	v.SetDefault("vector_store.url", d.VectorStore.URL)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)
	v.SetDefault("vector_store.initialize_schema", d.VectorStore.InitializeSchema)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.request_timeout_s", d.LLM.RequestTimeout)

	v.SetDefault("datasource.kind", d.Datasource.Kind)
	v.SetDefault("datasource.dsn", d.Datasource.DSN)
	v.SetDefault("datasource.driver", d.Datasource.Driver)
	v.SetDefault("datasource.endpoint", d.Datasource.Endpoint)
	v.SetDefault("datasource.auth_headers", d.Datasource.AuthHeaders)
}
