package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret         string        `mapstructure:"jwt_secret"`
		TokenTTL          time.Duration `mapstructure:"token_ttl"`
		MinPasswordLength int           `mapstructure:"min_password_length"`
		PasswordHasher    string        `mapstructure:"password_hasher"`
		BcryptCost        int           `mapstructure:"bcrypt_cost"`
	}
	Redis struct {
		Addr          string
		Password      string
		DB            int
		TokenCacheTTL time.Duration `mapstructure:"token_cache_ttl"`
	}
	Storage struct {
		Bucket         string
		KeyPrefix      string `mapstructure:"key_prefix"`
		Region         string
		Endpoint       string
		MaxAvatarBytes int64         `mapstructure:"max_avatar_bytes"`
		URLTTL         time.Duration `mapstructure:"url_ttl"`
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")
	return load(".")
}

func load(configDir string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/accounts.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "0s")
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.password_hasher", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.token_cache_ttl", "5m")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.key_prefix", "accounts")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.max_avatar_bytes", 2<<20)
	v.SetDefault("storage.url_ttl", "15m")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	switch strings.ToLower(c.Auth.PasswordHasher) {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("unknown password hasher %q", c.Auth.PasswordHasher)
	}
	if c.Auth.MinPasswordLength < 1 {
		return errors.New("auth min password length must be positive")
	}
	if c.Auth.TokenTTL < 0 {
		return errors.New("auth token ttl must not be negative")
	}
	if c.Storage.MaxAvatarBytes <= 0 {
		return errors.New("storage max avatar bytes must be positive")
	}
	return nil
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
