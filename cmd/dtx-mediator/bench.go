package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/x-research-team/dtx-mediator/internal/bench"
	"github.com/x-research-team/dtx-mediator/internal/config"
)

func newBenchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Нагрузочный прогон медиатора",
		Long: `Отправляет запросы и публикует уведомления трем обработчикам с выбранной
стратегией. Задержка и доля сбоев обработчиков настраиваются.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			logger := config.NewLogger(cfg.Log, os.Stderr)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Bench.Timeout)
			defer cancel()

			report, err := bench.Run(ctx, bench.Options{
				Count:       cfg.Bench.Count,
				Strategy:    cfg.Strategy,
				Delay:       cfg.Bench.Delay,
				FailureRate: cfg.Bench.FailureRate,
				RateLimit:   cfg.Bench.RateLimit,
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("прогон завершился ошибкой: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Стратегия:          %s\n", report.Strategy)
			fmt.Fprintf(out, "Запросов:           %d\n", report.Requests)
			fmt.Fprintf(out, "Уведомлений:        %d\n", report.Notifications)
			fmt.Fprintf(out, "Вызовов обработчиков: %d\n", report.HandlerCalls)
			fmt.Fprintf(out, "Ошибок:             %d\n", report.Errors)
			fmt.Fprintf(out, "Длительность:       %s\n", report.Duration.Round(time.Microsecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int("count", 1000, "число итераций")
	flags.Duration("delay", 0, "задержка каждого обработчика")
	flags.Float64("failure-rate", 0, "доля вызовов обработчиков, завершающихся ошибкой (0..1)")
	flags.Float64("rate-limit", 0, "ограничение отправок в секунду, 0 — без ограничения")
	flags.Duration("timeout", 30*time.Second, "общий таймаут прогона")

	return cmd
}
