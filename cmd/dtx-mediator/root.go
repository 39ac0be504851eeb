package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/x-research-team/dtx-mediator/internal/config"
)

// app хранит состояние, общее для всех подкоманд.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "dtx-mediator",
		Short:         "Утилита для внутрипроцессного медиатора",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(a.configPath)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			a.v, a.cfg = v, cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "путь к файлу конфигурации")
	flags.String("strategy", "stop-on-error", "стратегия публикации по умолчанию")
	flags.String("log-level", "info", "уровень журналирования: debug, info, warn, error")
	flags.String("log-format", "text", "формат журнала: text, json")

	cmd.AddCommand(newBenchCommand(a), newStrategiesCommand())
	return cmd
}

// flagKeys сопоставляет флаги ключам конфигурации.
var flagKeys = map[string]string{
	"strategy":     "strategy",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"count":        "bench.count",
	"delay":        "bench.delay",
	"failure-rate": "bench.failure_rate",
	"rate-limit":   "bench.rate_limit",
	"timeout":      "bench.timeout",
}

// bindFlags привязывает флаги выполняемой команды. Явно заданный флаг
// имеет приоритет над окружением и файлом.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("не удалось привязать флаг --%s: %w", name, err)
		}
	}
	return nil
}
