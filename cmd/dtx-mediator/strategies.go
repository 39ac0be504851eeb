package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/x-research-team/dtx-mediator/bus/mediator"
)

func newStrategiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "Список стратегий публикации",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range mediator.StrategyNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
