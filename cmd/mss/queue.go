package main

import (
	"context"

	"github.com/spf13/cobra"
)

func addCommand() *cobra.Command {
	var server string
	var query string
	var play bool

	cmd := &cobra.Command{
		Use:   "add [mediaId|url...]",
		Short: "Queue catalog items, URLs or a search query",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.AddItems(ctx, server, args, query)
			if err != nil {
				return err
			}
			if play {
				if err := app.service.Play(ctx, server); err != nil {
					return err
				}
			}
			return app.printUnlessQuiet(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	cmd.Flags().StringVar(&query, "query", "", `search query such as "play Blue Train"`)
	cmd.Flags().BoolVar(&play, "play", false, "start playback after queueing")
	return cmd
}
