package main

import (
	"context"

	"github.com/spf13/cobra"
)

func rootItemCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "root [server]",
		Short: "Show the catalog root",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Root(ctx, selectorArg(args, 0))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func itemCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "item <mediaId>",
		Short: "Show one catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Item(ctx, server, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}

func browseCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "browse [parentId]",
		Short: "List the children of a catalog node (root by default)",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Children(ctx, server, selectorArg(args, 0))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}

func subscribeCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "subscribe <parentId>",
		Short: "Ask for a child count push for a catalog node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.Subscribe(ctx, server, args[0])
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}
