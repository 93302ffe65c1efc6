package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Built-in pre-shared keys. Clients ship with the same network key.
const (
	DefaultNetworkKey = "Kc4kgRwJju2TbjHc9V21VY9bm0U2mRAKPZdM9aKZ5E0="
	DefaultStorageKey = "gcj57LgWAe8KnRUqGZLf7RnfxQWs7ZzPeAkCLHZh5M0="
)

type Config struct {
	Server    ServerConfig
	Crypto    CryptoConfig
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Gameplay  GameplayConfig
	Weapons   map[string]WeaponConfig `toml:"weapons"`
}

type ServerConfig struct {
	Name          string   `toml:"name"`
	Port          int      `toml:"port"`
	MaxPeers      int      `toml:"max_peers"`
	Version       string   `toml:"version"`
	MapsDir       string   `toml:"maps_dir"`
	DataDir       string   `toml:"data_dir"`
	ScriptsDir    string   `toml:"scripts_dir"`
	PollTimeoutMS int      `toml:"poll_timeout_ms"`
	StatusPort    int      `toml:"status_port"`
	LoginTimeout  int      `toml:"login_timeout"`
	Developers    []string `toml:"developers"`

	// logging configuration
	LogToFile     bool   `toml:"log_to_file"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
}

type CryptoConfig struct {
	NetworkKey string `toml:"network_key"`
	StorageKey string `toml:"storage_key"`
}

type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	MessagesPerSecond float64 `toml:"messages_per_second"`
	Burst             int     `toml:"burst"`

	// Login and Create are always budgeted, they cost a password hash each.
	LoginsPerSecond float64 `toml:"logins_per_second"`
	LoginBurst      int     `toml:"login_burst"`
}

type GameplayConfig struct {
	MaxHealth        int    `toml:"max_health"`
	SpawnMap         string `toml:"spawn_map"`
	DeathMap         string `toml:"death_map"`
	DeathSpread      int    `toml:"death_spread"`
	HitFlagCooldown  int    `toml:"hit_flag_cooldown"`
	CheatBanDuration int    `toml:"cheat_ban_duration"`
	GravityInterval  int    `toml:"gravity_interval"`
	GravityBudget    int    `toml:"gravity_budget"`
	JumpCooldown     int    `toml:"jump_cooldown"`
	PotionHeal       int    `toml:"potion_heal"`
	PotionCooldown   int    `toml:"potion_cooldown"`
}

// WeaponConfig overrides single fields of the built-in weapon table.
// Times are milliseconds.
type WeaponConfig struct {
	Damage       *int  `toml:"damage"`
	Range        *int  `toml:"range"`
	Step         *int  `toml:"step"`
	FireInterval *int  `toml:"fire_interval"`
	ReloadTime   *int  `toml:"reload_time"`
	Capacity     *int  `toml:"capacity"`
	Automatic    *bool `toml:"automatic"`
}

func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns a configuration with every default applied, as if loaded
// from an empty file.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "coas"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 18832
	}
	if c.Server.MaxPeers == 0 {
		c.Server.MaxPeers = 100
	}
	if c.Server.Version == "" {
		c.Server.Version = "0.1.0"
	}
	if c.Server.MapsDir == "" {
		c.Server.MapsDir = "maps"
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Server.ScriptsDir == "" {
		c.Server.ScriptsDir = "scripts/commands"
	}
	if c.Server.PollTimeoutMS == 0 {
		c.Server.PollTimeoutMS = 1
	}
	if c.Server.LoginTimeout == 0 {
		c.Server.LoginTimeout = 120
	}
	if c.Server.LogFile == "" {
		c.Server.LogFile = "logs/coas.log"
	}
	if c.Server.LogMaxSizeMB == 0 {
		c.Server.LogMaxSizeMB = 10
	}
	if c.Server.LogMaxBackups == 0 {
		c.Server.LogMaxBackups = 5
	}

	if c.Crypto.NetworkKey == "" {
		c.Crypto.NetworkKey = DefaultNetworkKey
	}
	if c.Crypto.StorageKey == "" {
		c.Crypto.StorageKey = DefaultStorageKey
	}

	// rate limit defaults
	if c.RateLimit.MessagesPerSecond == 0 {
		c.RateLimit.MessagesPerSecond = 60
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 120
	}
	if c.RateLimit.LoginsPerSecond == 0 {
		c.RateLimit.LoginsPerSecond = 1
	}
	if c.RateLimit.LoginBurst == 0 {
		c.RateLimit.LoginBurst = 3
	}

	// gameplay defaults
	g := &c.Gameplay
	if g.MaxHealth == 0 {
		g.MaxHealth = 3000
	}
	if g.SpawnMap == "" {
		g.SpawnMap = "main"
	}
	if g.DeathMap == "" {
		g.DeathMap = "safe_zone"
	}
	if g.DeathSpread == 0 {
		g.DeathSpread = 50
	}
	if g.HitFlagCooldown == 0 {
		g.HitFlagCooldown = 30000
	}
	if g.CheatBanDuration == 0 {
		g.CheatBanDuration = 180000
	}
	if g.GravityInterval == 0 {
		g.GravityInterval = 70
	}
	if g.GravityBudget == 0 {
		g.GravityBudget = 5
	}
	if g.JumpCooldown == 0 {
		g.JumpCooldown = 2400
	}
	if g.PotionHeal == 0 {
		g.PotionHeal = 500
	}
	if g.PotionCooldown == 0 {
		g.PotionCooldown = 30000
	}
}

func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server name cannot be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.StatusPort < 0 || c.Server.StatusPort > 65535 {
		return fmt.Errorf("invalid status port: %d", c.Server.StatusPort)
	}

	if c.Server.MaxPeers <= 0 || c.Server.MaxPeers > 4095 {
		return fmt.Errorf("max_peers must be between 1 and 4095")
	}

	if _, err := c.NetworkKey(); err != nil {
		return fmt.Errorf("network_key: %w", err)
	}
	if _, err := c.StorageKey(); err != nil {
		return fmt.Errorf("storage_key: %w", err)
	}

	if c.RateLimit.LoginsPerSecond < 0 || c.RateLimit.LoginBurst < 0 {
		return fmt.Errorf("login rate limit cannot be negative")
	}

	if c.Gameplay.MaxHealth <= 0 {
		return fmt.Errorf("max_health must be positive")
	}
	if c.Gameplay.DeathSpread < 0 {
		return fmt.Errorf("death_spread cannot be negative")
	}
	if c.Gameplay.GravityBudget <= 0 {
		return fmt.Errorf("gravity_budget must be positive")
	}

	return nil
}

func (c *Config) NetworkKey() ([]byte, error) {
	return decodeKey(c.Crypto.NetworkKey)
}

func (c *Config) StorageKey() ([]byte, error) {
	return decodeKey(c.Crypto.StorageKey)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("key is not base64: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Server.PollTimeoutMS) * time.Millisecond
}

func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.Server.LoginTimeout) * time.Second
}

func (g GameplayConfig) Millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
