package main

import (
	"context"

	"github.com/spf13/cobra"
)

func connectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect [server]",
		Short: "Negotiate a controller session",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Connect(ctx, selectorArg(args, 0))
			if err != nil {
				return err
			}
			return app.printUnlessQuiet(result)
		},
	}
}

func disconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect [server]",
		Short: "End the cached controller session",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Disconnect(ctx, selectorArg(args, 0))
		},
	}
}
