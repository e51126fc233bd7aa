// Package config loads settings from defaults, an optional YAML file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverKafka    = "kafka"
)

type Config struct {
	Source      string            `mapstructure:"source"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Bus         BusConfig         `mapstructure:"bus"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether a Redis server is configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type BusConfig struct {
	Driver string `mapstructure:"driver"`
}

type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	GroupID    string `mapstructure:"group_id"`
	Partitions int    `mapstructure:"partitions"`
}

// BrokerList splits the comma separated broker list.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type GatewayConfig struct {
	Destinations string        `mapstructure:"destinations"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ReservationConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

type WorkerConfig struct {
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	OutboxGrace       time.Duration `mapstructure:"outbox_grace"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	StaleClaim        time.Duration `mapstructure:"stale_claim"`
}

// envBindings maps keys onto the environment variable names used by the
// deployment, in addition to the automatic SECTION_KEY names.
var envBindings = map[string]string{
	"server.port":          "PORT",
	"log_level":            "LOG_LEVEL",
	"database.host":        "DB_HOST",
	"database.port":        "DB_PORT",
	"database.user":        "DB_USER",
	"database.password":    "DB_PASSWORD",
	"database.dbname":      "DB_NAME",
	"database.sslmode":     "DB_SSLMODE",
	"redis.addr":           "REDIS_ADDR",
	"redis.password":       "REDIS_PASSWORD",
	"kafka.brokers":        "KAFKA_BROKERS",
	"kafka.topic":          "KAFKA_RESERVATION_TOPIC",
	"kafka.group_id":       "KAFKA_GROUP_ID",
	"auth.jwt_secret":      "JWT_SECRET",
	"gateway.destinations": "GATEWAY_DESTINATIONS",
}

func setDefaults(v *viper.Viper, service, port string) {
	v.SetDefault("source", service)
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "mandir_reservations")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 30*time.Second)

	v.SetDefault("bus.driver", DriverKafka)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "reservation-events")
	v.SetDefault("kafka.group_id", "reservation-service-group")
	v.SetDefault("kafka.partitions", 6)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "mandir-hub")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("gateway.destinations", "reservations=http://localhost:8080,events=http://localhost:8081")
	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("reservation.max_attempts", 5)
	v.SetDefault("reservation.base_backoff", 5*time.Millisecond)

	v.SetDefault("worker.outbox_interval", 10*time.Second)
	v.SetDefault("worker.outbox_grace", 30*time.Second)
	v.SetDefault("worker.reconcile_interval", time.Minute)
	v.SetDefault("worker.batch_size", 100)
	v.SetDefault("worker.stale_claim", 5*time.Minute)
}

// Load builds the configuration for service. configFile may be empty.
func Load(service, defaultPort, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service, defaultPort)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver))
	}

	switch c.Bus.Driver {
	case DriverKafka:
		if len(c.Kafka.BrokerList()) == 0 {
			errs = append(errs, errors.New("kafka.brokers must list at least one broker"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("bus.driver must be %q or %q, got %q", DriverKafka, DriverMemory, c.Bus.Driver))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	return errors.Join(errs...)
}

// RequireAuth fails unless a signing secret is configured.
func (c *Config) RequireAuth() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	return nil
}

type Flags struct {
	ConfigFile string
	Migrate    bool
	Seed       bool
	IssueToken string
}

// ParseFlags reads the command line shared by every binary.
func ParseFlags(name string, args []string) (*Flags, error) {
	var f Flags

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "path to a YAML config file")
	fs.BoolVar(&f.Migrate, "migrate", false, "create or update the database schema before starting")
	fs.BoolVar(&f.Seed, "seed", false, "load the default offerings before starting")
	fs.StringVar(&f.IssueToken, "issue-token", "", "print a signed token for this subject and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &f, nil
}
