package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nearby_server/utils"

	"github.com/spf13/viper"
)

// Store backends
const (
	BackendDynamo   = "dynamo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Configuration struct {
	ListenAddr string
	Log        struct {
		Level  string
		Format string // "text" (colored) or "json"
	}
	Store struct {
		Backend string
		Timeout time.Duration
	}
	AWS struct {
		Region            string
		Endpoint          string // optional, e.g. DynamoDB Local
		UsersTable        string
		InteractionsTable string
		PhotoBucket       string
		PhotoURLExpiry    time.Duration
	}
	Database struct {
		DSN string
	}
	RateLimit struct {
		PerMinute int
		Burst     int
	}
	RelationshipCacheTTL time.Duration
	// PhotoBaseURL serves photos from a public CDN when no S3 bucket is configured
	PhotoBaseURL         string
	AllowedOrigins       []string
	Bluetooth            struct {
		TxPower float64
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listenaddr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.backend", BackendDynamo)
	v.SetDefault("store.timeout", "3s")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.userstable", "Users")
	v.SetDefault("aws.interactionstable", "Interactions")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.photobucket", "")
	v.SetDefault("aws.photourlexpiry", "5m")
	v.SetDefault("database.dsn", "")
	v.SetDefault("ratelimit.perminute", 30)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("relationshipcachettl", "30s")
	v.SetDefault("photobaseurl", "")
	v.SetDefault("allowedorigins", []string{"*"})
	v.SetDefault("bluetooth.txpower", utils.DefaultTxPower)
}

// Load reads config.yaml from the given search paths if present, then applies
// NEARBY_ environment overrides, e.g. NEARBY_STORE_BACKEND=memory.
func Load(paths ...string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("NEARBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Configuration) validate() error {
	switch c.Store.Backend {
	case BackendDynamo, BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be positive")
	}
	if c.RateLimit.PerMinute < 0 {
		return errors.New("ratelimit.perminute must not be negative")
	}
	return nil
}
