package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server      ServerConfig      `toml:"server"`
	World       WorldConfig       `toml:"world"`
	Persistence PersistenceConfig `toml:"persistence"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Scripting   ScriptingConfig   `toml:"scripting"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type WorldConfig struct {
	MapList        string        `toml:"map_list"`
	TileDir        string        `toml:"tile_dir"`
	TileData       string        `toml:"tiledata"`
	SectorSize     int           `toml:"sector_size"` // tiles per sector edge, power of two
	TickRate       time.Duration `toml:"tick_rate"`
	CommandQueue   int           `toml:"command_queue"`   // max commands drained per tick, 0 = all
	WanderInterval time.Duration `toml:"wander_interval"` // 0 disables creature wandering
}

type PersistenceConfig struct {
	Dir              string        `toml:"dir"`
	Backups          int           `toml:"backups"` // old snapshots kept under Backups/
	AutosaveInterval time.Duration `toml:"autosave_interval"`
	Compress         bool          `toml:"compress"` // zstd .bin bodies
	Parallel         bool          `toml:"parallel"` // serialize mobiles and items concurrently
	RetryAttempts    int           `toml:"retry_attempts"`
	RetryBase        time.Duration `toml:"retry_base"`
	DropUnknownTypes bool          `toml:"drop_unknown_types"`
}

// CatalogConfig selects the SQL database that records save history.
// An empty driver disables the catalog.
type CatalogConfig struct {
	Driver string `toml:"driver"` // "", "sqlite" or "pgx"
	DSN    string `toml:"dsn"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type MetricsConfig struct {
	Address string `toml:"address"` // empty = no /metrics endpoint
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration used when no file overrides it.
func Default() *Config {
	return defaults()
}

// Validate rejects settings the world core cannot run with.
func (c *Config) Validate() error {
	s := c.World.SectorSize
	if s <= 0 || s&(s-1) != 0 {
		return fmt.Errorf("world.sector_size must be a power of two, got %d", s)
	}
	if c.World.TickRate <= 0 {
		return fmt.Errorf("world.tick_rate must be positive")
	}
	if c.World.WanderInterval < 0 {
		return fmt.Errorf("world.wander_interval must not be negative")
	}
	if c.Persistence.Backups < 0 {
		return fmt.Errorf("persistence.backups must not be negative")
	}
	if c.Persistence.RetryAttempts < 0 {
		return fmt.Errorf("persistence.retry_attempts must not be negative")
	}
	switch c.Catalog.Driver {
	case "", "sqlite", "pgx":
	default:
		return fmt.Errorf("catalog.driver %q not supported", c.Catalog.Driver)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "runeshard",
			ID:   1,
		},
		World: WorldConfig{
			MapList:        "data/map_list.yaml",
			TileDir:        "data/maps",
			TileData:       "data/tiledata.yaml",
			SectorSize:     16,
			TickRate:       100 * time.Millisecond,
			CommandQueue:   1024,
			WanderInterval: 2 * time.Second,
		},
		Persistence: PersistenceConfig{
			Dir:              "saves",
			Backups:          3,
			AutosaveInterval: 15 * time.Minute,
			Compress:         true,
			Parallel:         true,
			RetryAttempts:    5,
			RetryBase:        200 * time.Millisecond,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
