/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/shoplite/apiserver/config"
	"github.com/shoplite/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// eventsCmd groups event-stream tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Auth event stream tooling",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the auth event channel and print events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		backend, err := mq.New(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		if backend == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer backend.Close()

		fmt.Printf("tailing %s (ctrl-c to stop)\n", cfg.MQ.Channel)
		err = backend.Subscribe(cmd.Context(), cfg.MQ.Channel, func(ctx context.Context, msg mq.Message) error {
			fmt.Printf("%s %s\n", msg.ID, string(msg.Data))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
