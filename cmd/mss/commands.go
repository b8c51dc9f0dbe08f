package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/media_session/internal/core"
)

func shuffleCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:       "shuffle <on|off>",
		Short:     "Turn shuffle on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch strings.ToLower(args[0]) {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return &core.CLIError{Code: core.ExitUsage, Msg: "shuffle must be on or off"}
			}

			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Shuffle(ctx, server, enabled)
			if err != nil {
				return err
			}
			return app.printUnlessQuiet(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}

func customCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "command <identifier>",
		Short: "Send a custom command by identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Custom(ctx, server, args[0])
			if err != nil {
				return err
			}
			return app.printUnlessQuiet(result)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "media session server")
	return cmd
}
