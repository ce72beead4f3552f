package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sim      SimConfig      `mapstructure:"sim"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql | none
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// SpawnConfig places one archetype in the arena at startup.
type SpawnConfig struct {
	Archetype string  `mapstructure:"archetype"`
	ID        string  `mapstructure:"id"`
	X         float64 `mapstructure:"x"`
	Y         float64 `mapstructure:"y"`
	Z         float64 `mapstructure:"z"`
	Respawn   bool    `mapstructure:"respawn"`
}

// TargetConfig is the simulated player every hostile is pointed at.
type TargetConfig struct {
	ID string  `mapstructure:"id"`
	X  float64 `mapstructure:"x"`
	Y  float64 `mapstructure:"y"`
	Z  float64 `mapstructure:"z"`
}

type SimConfig struct {
	TickMs             int           `mapstructure:"tick_ms"`
	MaxDeltaS          float64       `mapstructure:"max_delta_s"`
	SnapshotIntervalMs int           `mapstructure:"snapshot_interval_ms"`
	ContentDir         string        `mapstructure:"content_dir"`
	WatchContent       bool          `mapstructure:"watch_content"`
	EventLogSize       int           `mapstructure:"event_log_size"`
	RespawnDelay       time.Duration `mapstructure:"respawn_delay"`
	CommandQueue       int           `mapstructure:"command_queue"`
	Seed               int64         `mapstructure:"seed"` // 0 seeds from the clock
	Target             TargetConfig  `mapstructure:"target"`
	Spawns             []SpawnConfig `mapstructure:"spawns"`
}

type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	QueueSize     int           `mapstructure:"queue_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Retention     time.Duration `mapstructure:"retention"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AdminNetworks restricts /api/admin to these IPs or CIDR blocks. Empty
	// allows any address that has the admin key.
	AdminNetworks []string `mapstructure:"admin_networks"`
	// AllowedOrigins limits WebSocket upgrades by Origin header. Empty
	// accepts any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path. An empty path yields the
// defaults. Any key can be overridden from the environment as
// COMBATCORE_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("combatcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/combat.db")
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("sim.tick_ms", 50)
	v.SetDefault("sim.max_delta_s", 0.1)
	v.SetDefault("sim.snapshot_interval_ms", 250)
	v.SetDefault("sim.content_dir", "./content")
	v.SetDefault("sim.watch_content", true)
	v.SetDefault("sim.event_log_size", 200)
	v.SetDefault("sim.respawn_delay", "10s")
	v.SetDefault("sim.command_queue", 64)
	v.SetDefault("sim.seed", 0)
	v.SetDefault("sim.target.id", "player")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", "2s")
	v.SetDefault("audit.retention", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TickInterval is the wall-clock period of the arena loop.
func (s SimConfig) TickInterval() time.Duration {
	return time.Duration(s.TickMs) * time.Millisecond
}

// SnapshotInterval is the wall-clock period of snapshot publishing.
func (s SimConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalMs) * time.Millisecond
}
