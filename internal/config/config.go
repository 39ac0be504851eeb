// Package config загружает конфигурацию утилиты dtx-mediator из флагов,
// переменных окружения DTX_*, файла .env и необязательного файла конфигурации.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "DTX"

// Config — корневая конфигурация.
type Config struct {
	Strategy string      `mapstructure:"strategy" validate:"oneof=stop-on-error continue-on-error parallel-no-wait parallel-wait-all"`
	Log      LogConfig   `mapstructure:"log"`
	Bench    BenchConfig `mapstructure:"bench"`
}

// LogConfig описывает журналирование.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// BenchConfig описывает нагрузочный прогон.
type BenchConfig struct {
	Count       int           `mapstructure:"count" validate:"gte=1"`
	Delay       time.Duration `mapstructure:"delay" validate:"gte=0"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SetDefaults задает значения по умолчанию.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("strategy", "stop-on-error")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("bench.count", 1000)
	v.SetDefault("bench.delay", time.Duration(0))
	v.SetDefault("bench.failure_rate", 0.0)
	v.SetDefault("bench.rate_limit", 0.0)
	v.SetDefault("bench.timeout", 30*time.Second)
}

// New создает viper с источниками конфигурации: значения по умолчанию,
// файл configPath (если задан), .env и переменные окружения DTX_*.
// Флаги привязываются вызывающей стороной через BindPFlag.
func New(configPath string) (*viper.Viper, error) {
	// .env необязателен.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("не удалось прочитать файл конфигурации: %w", err)
			}
		}
	}

	return v, nil
}

// Load собирает и проверяет конфигурацию.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать конфигурацию: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}
	return &cfg, nil
}
