package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password Secret `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN builds the postgres connection string. Callers must not log the result.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password.Reveal(), c.Host, c.Port, c.Name,
	)
}

type EmailConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Sender      string        `yaml:"sender"`
	APIKey      Secret        `yaml:"api_key"`
	APISecret   Secret        `yaml:"api_secret"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password Secret `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Port    string `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public address used in confirmation links
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Email  EmailConfig  `yaml:"email"`
	Redis  RedisConfig  `yaml:"redis"`
	MQ     MQConfig     `yaml:"mq"`
	Server ServerConfig `yaml:"server"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	overrideFromEnv(&cfg)

	if cfg.Email.SendTimeout <= 0 {
		cfg.Email.SendTimeout = 10 * time.Second
	}

	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = NewSecret(password)
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if baseURL := os.Getenv("EMAIL_BASE_URL"); baseURL != "" {
		cfg.Email.BaseURL = baseURL
	}
	if sender := os.Getenv("EMAIL_SENDER"); sender != "" {
		cfg.Email.Sender = sender
	}
	if key := os.Getenv("EMAIL_API_KEY"); key != "" {
		cfg.Email.APIKey = NewSecret(key)
	}
	if secret := os.Getenv("EMAIL_API_SECRET"); secret != "" {
		cfg.Email.APISecret = NewSecret(secret)
	}
	if timeout := os.Getenv("EMAIL_SEND_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Email.SendTimeout = d
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = NewSecret(password)
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if baseURL := os.Getenv("SERVER_BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
}
