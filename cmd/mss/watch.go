package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/media_session/internal/core"
)

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [server]",
		Short: "Print layout, children and cue pushes until interrupted",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pushes, errs, err := app.service.Watch(ctx, selectorArg(args, 0))
			if err != nil {
				return err
			}
			for {
				select {
				case push, ok := <-pushes:
					if !ok {
						return nil
					}
					if err := app.printer.Print(core.PushResult{Push: push}); err != nil {
						return err
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					if err != nil {
						return core.WrapError(core.ExitCode(err), "watch", err)
					}
				}
			}
		},
	}
}
