package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"tickvault/pkg/confkit"
	ingestpkg "tickvault/pkg/ingest"
)

// PersistConf points at the remote persistence service.
type PersistConf struct {
	// BaseURL example: http://localhost:8000
	BaseURL    string `json:",default=http://localhost:8000"`
	Database   string `json:",default=marketdata"`
	TimeoutSec int    `json:",default=30"`
	MaxRetries int    `json:",default=3"`
}

// AdapterConfig maps the section onto the ingestion adapter's knobs.
func (p PersistConf) AdapterConfig() ingestpkg.Config {
	return ingestpkg.Config{
		BaseURL:    p.BaseURL,
		Database:   p.Database,
		Timeout:    time.Duration(p.TimeoutSec) * time.Second,
		MaxRetries: p.MaxRetries,
	}
}

// CacheTTL carries checkpoint cache TTLs in seconds.
type CacheTTL struct {
	Short  int `json:",default=10"`
	Medium int `json:",default=60"`
	Long   int `json:",default=300"`
}

type Config struct {
	// Env indicates the running environment: test | dev | prod
	Env     string          `json:",default=test"`
	Log     logx.LogConf    `json:",optional"`
	Persist PersistConf     `json:",optional"`
	Redis   redis.RedisConf `json:",optional"`
	TTL     CacheTTL        `json:",optional"`

	Ingest confkit.Section[ingestpkg.Plan] `json:",optional"`

	mainPath string
	baseDir  string
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test" || c.Env == ""
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}

	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.hydrateSections(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "", "test", "dev", "prod":
		if strings.TrimSpace(c.Env) == "" {
			c.Env = "test"
		}
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}
	if strings.TrimSpace(c.Persist.BaseURL) == "" {
		return errors.New("config: persist.baseUrl is required")
	}
	if c.Persist.TimeoutSec <= 0 {
		return errors.New("config: persist.timeoutSec must be positive")
	}
	if c.Persist.MaxRetries < 0 {
		return errors.New("config: persist.maxRetries must not be negative")
	}
	return c.validateTTL()
}

func (c *Config) validateTTL() error {
	if c.TTL.Short <= 0 {
		return errors.New("config: ttl.short must be positive")
	}
	if c.TTL.Medium <= 0 {
		return errors.New("config: ttl.medium must be positive")
	}
	if c.TTL.Long <= 0 {
		return errors.New("config: ttl.long must be positive")
	}
	return nil
}

func (c *Config) hydrateSections() error {
	if err := c.Ingest.Hydrate(c.baseDir, ingestpkg.LoadPlan); err != nil {
		return fmt.Errorf("load ingest plan: %w", err)
	}
	return nil
}

func (c *Config) MainPath() string {
	return c.mainPath
}

func (c *Config) BaseDir() string {
	return c.baseDir
}
