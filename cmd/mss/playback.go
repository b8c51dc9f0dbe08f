package main

import (
	"context"

	"github.com/spf13/cobra"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play [server]",
		Short: "Start playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Play(ctx, selectorArg(args, 0))
		},
	}
}

func pauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pause [server]",
		Short: "Pause playback",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Pause(ctx, selectorArg(args, 0))
		},
	}
}

func seekCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "seek <position>",
		Short: "Seek to a position (ms or duration like 1m30s)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Seek(ctx, server, args[0])
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}
