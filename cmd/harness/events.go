package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Mutation events published by harness runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print every event until interrupted; needs events.redis_url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Broker == nil {
				return fmt.Errorf("events are disabled: set events.redis_url")
			}

			msgs, err := a.Broker.Subscribe(ctx, a.Publisher.Pattern())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for msg := range msgs {
				fmt.Fprintln(out, string(msg))
			}
			return nil
		},
	})
	return cmd
}
