package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/graphbridge/internal/graph"
	"github.com/rohankatakam/graphbridge/internal/logging"
	"github.com/rohankatakam/graphbridge/internal/model"
)

// Config holds all configuration settings
type Config struct {
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// One section per backend
	Neo4j  BackendConfig `yaml:"neo4j" mapstructure:"neo4j"`
	Nebula BackendConfig `yaml:"nebula" mapstructure:"nebula"`
	Janus  BackendConfig `yaml:"janus" mapstructure:"janus"`

	Limits LimitsConfig `yaml:"limits" mapstructure:"limits"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
}

type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"` // "text", "json"
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	AddSource  bool   `yaml:"add_source" mapstructure:"add_source"`
}

// BackendConfig is the connection section of one backend
type BackendConfig struct {
	Host     string            `yaml:"host" mapstructure:"host"`
	Port     int               `yaml:"port" mapstructure:"port"`
	Username string            `yaml:"username" mapstructure:"username"`
	Password string            `yaml:"password" mapstructure:"password"`
	Database string            `yaml:"database" mapstructure:"database"` // database, space or graph
	Params   map[string]string `yaml:"params,omitempty" mapstructure:"params"`
}

type LimitsConfig struct {
	RowCap       int     `yaml:"row_cap" mapstructure:"row_cap"`
	OpsPerSecond float64 `yaml:"ops_per_second" mapstructure:"ops_per_second"` // 0 = unlimited
	Burst        int     `yaml:"burst" mapstructure:"burst"`
	// Timeouts per operation class: read, write, schema, native_query, health_check, connect
	Timeouts map[string]time.Duration `yaml:"timeouts,omitempty" mapstructure:"timeouts"`
}

type CacheConfig struct {
	SchemaTTL time.Duration `yaml:"schema_ttl" mapstructure:"schema_ttl"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Neo4j:  BackendConfig{Host: "localhost", Port: model.BackendNeo4j.DefaultPort(), Username: "neo4j", Database: "neo4j"},
		Nebula: BackendConfig{Host: "localhost", Port: model.BackendNebula.DefaultPort(), Username: "root"},
		Janus:  BackendConfig{Host: "localhost", Port: model.BackendJanus.DefaultPort()},
		Limits: LimitsConfig{
			RowCap: graph.DefaultRowCap,
			Burst:  1,
		},
		Cache: CacheConfig{
			SchemaTTL: time.Minute,
		},
	}
}

// Load loads configuration from file, .env files and the environment. An
// empty path searches .gbridge/, the working directory and ~/.gbridge for
// config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	// Storage params have dotted names, so nested keys use another delimiter
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("log", structMap(cfg.Log))
	v.SetDefault("neo4j", structMap(cfg.Neo4j))
	v.SetDefault("nebula", structMap(cfg.Nebula))
	v.SetDefault("janus", structMap(cfg.Janus))
	v.SetDefault("limits", structMap(cfg.Limits))
	v.SetDefault("cache", structMap(cfg.Cache))

	// GBRIDGE_LIMITS_ROW_CAP and friends
	v.SetEnvPrefix("GBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".gbridge")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".gbridge"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// structMap turns a section into the nested map viper merges defaults from
func structMap(section any) map[string]any {
	data, err := yaml.Marshal(section)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// loadEnvFiles loads .env files in order of precedence; godotenv never
// overwrites variables that are already set
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	if envPath, err := findEnvFile(); err == nil {
		_ = godotenv.Load(envPath)
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".gbridge", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the conventional variables of each backend on top
// of file and GBRIDGE_ values
func applyEnvOverrides(cfg *Config) error {
	// Neo4j
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		if err := applyURL(&cfg.Neo4j, uri, model.BackendNeo4j); err != nil {
			return fmt.Errorf("NEO4J_URI: %w", err)
		}
	}
	cfg.Neo4j.Username = GetString("NEO4J_USER", cfg.Neo4j.Username)
	cfg.Neo4j.Password = GetString("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = GetString("NEO4J_DATABASE", cfg.Neo4j.Database)

	// NebulaGraph
	if addr := os.Getenv("NEBULA_ADDRESS"); addr != "" {
		host, port, err := splitHostPort(addr, model.BackendNebula.DefaultPort())
		if err != nil {
			return fmt.Errorf("NEBULA_ADDRESS: %w", err)
		}
		cfg.Nebula.Host, cfg.Nebula.Port = host, port
	}
	cfg.Nebula.Username = GetString("NEBULA_USER", cfg.Nebula.Username)
	cfg.Nebula.Password = GetString("NEBULA_PASSWORD", cfg.Nebula.Password)
	cfg.Nebula.Database = GetString("NEBULA_SPACE", cfg.Nebula.Database)

	// JanusGraph
	if u := os.Getenv("JANUS_URL"); u != "" {
		if err := applyURL(&cfg.Janus, u, model.BackendJanus); err != nil {
			return fmt.Errorf("JANUS_URL: %w", err)
		}
	}
	cfg.Janus.Username = GetString("JANUS_USER", cfg.Janus.Username)
	cfg.Janus.Password = GetString("JANUS_PASSWORD", cfg.Janus.Password)
	cfg.Janus.Database = GetString("JANUS_GRAPH", cfg.Janus.Database)
	if backend := os.Getenv("JANUS_STORAGE_BACKEND"); backend != "" {
		cfg.Janus.setParam("storage.backend", backend)
	}
	if host := os.Getenv("JANUS_STORAGE_HOSTNAME"); host != "" {
		cfg.Janus.setParam("storage.hostname", host)
	}

	// Limits and logging
	cfg.Limits.RowCap = GetInt("GBRIDGE_ROW_CAP", cfg.Limits.RowCap)
	if ops := os.Getenv("GBRIDGE_OPS_PER_SECOND"); ops != "" {
		if f, err := strconv.ParseFloat(ops, 64); err == nil {
			cfg.Limits.OpsPerSecond = f
		}
	}
	cfg.Cache.SchemaTTL = GetDuration("GBRIDGE_SCHEMA_TTL", cfg.Cache.SchemaTTL)
	cfg.Log.Level = GetString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.AddSource = GetBool("LOG_ADD_SOURCE", cfg.Log.AddSource)
	cfg.Log.File = expandPath(GetString("LOG_FILE", cfg.Log.File))
	return nil
}

// applyURL takes host, port, credentials and scheme from a backend URL such
// as bolt://db:7687, plus the path of a Gremlin Server URL
func applyURL(b *BackendConfig, raw string, kind model.BackendKind) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("no host in %q", raw)
	}
	host, port, err := splitHostPort(u.Host, kind.DefaultPort())
	if err != nil {
		return err
	}
	b.Host, b.Port = host, port
	if u.User != nil {
		b.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			b.Password = pw
		}
	}

	if u.Scheme != "" {
		b.setParam("scheme", u.Scheme)
	}
	if kind == model.BackendJanus && u.Path != "" {
		b.setParam("path", u.Path)
	}
	return nil
}

func splitHostPort(addr string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given
		return addr, defaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

func (b *BackendConfig) setParam(k, v string) {
	if b.Params == nil {
		b.Params = make(map[string]string)
	}
	b.Params[k] = v
}

// Backend returns the section of kind
func (c *Config) Backend(kind model.BackendKind) *BackendConfig {
	switch kind {
	case model.BackendNeo4j:
		return &c.Neo4j
	case model.BackendNebula:
		return &c.Nebula
	case model.BackendJanus:
		return &c.Janus
	}
	return nil
}

// Connection converts a backend section to the adapter's connection config
func (b BackendConfig) Connection(kind model.BackendKind) model.ConnectionConfig {
	var params map[string]string
	if len(b.Params) > 0 {
		params = make(map[string]string, len(b.Params))
		for k, v := range b.Params {
			params[k] = v
		}
	}
	return model.ConnectionConfig{
		Kind:     kind,
		Host:     b.Host,
		Port:     b.Port,
		Username: b.Username,
		Password: b.Password,
		Database: b.Database,
		Params:   params,
	}
}

// Connections returns the connection config of every backend
func (c *Config) Connections() map[model.BackendKind]model.ConnectionConfig {
	out := make(map[model.BackendKind]model.ConnectionConfig, len(model.AllBackends))
	for _, kind := range model.AllBackends {
		out[kind] = c.Backend(kind).Connection(kind)
	}
	return out
}

// AdapterOptions returns the adapter options the limits and cache sections
// describe
func (c *Config) AdapterOptions() []graph.Option {
	opts := []graph.Option{
		graph.WithRowCap(c.Limits.RowCap),
		graph.WithSchemaTTL(c.Cache.SchemaTTL),
	}
	if len(c.Limits.Timeouts) > 0 {
		ops := graph.OperationConfigs(graph.DefaultOperationConfigs()).WithTimeouts(c.Limits.Timeouts)
		opts = append(opts, graph.WithOperations(ops))
	}
	return opts
}

// Logging returns the logger configuration of the log section
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      logging.ParseLevel(c.Log.Level),
		OutputFile: c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		JSONFormat: strings.EqualFold(c.Log.Format, "json"),
		AddSource:  c.Log.AddSource,
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration as YAML. Passwords are written too, so the
// file is created user-only.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
