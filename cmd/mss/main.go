package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/media_session/internal/adapters/clock"
	"github.com/mikey-austin/media_session/internal/adapters/config"
	"github.com/mikey-austin/media_session/internal/adapters/idgen"
	"github.com/mikey-austin/media_session/internal/adapters/mqtt"
	"github.com/mikey-austin/media_session/internal/adapters/output"
	"github.com/mikey-austin/media_session/internal/adapters/sessionstore"
	"github.com/mikey-austin/media_session/internal/core"
	"github.com/mikey-austin/media_session/pkg/msp"
)

type app struct {
	service core.Service
	printer output.Printer
	client  *mqtt.Client
	quiet   bool
	json    bool
	timeout time.Duration
}

func main() {
	root := rootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "mss",
		Short:        "Media session controller",
		SilenceUsage: true,
	}

	var (
		broker    string
		topicBase string
		identity  string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		noColor   bool
		tlsCA     string
		tlsCert   string
		tlsKey    string
		userOpt   string
		passOpt   string
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", msp.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "controller identity")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color")
	root.PersistentFlags().StringVar(&tlsCA, "tls-ca", "", "TLS CA path")
	root.PersistentFlags().StringVar(&tlsCert, "tls-cert", "", "TLS cert path")
	root.PersistentFlags().StringVar(&tlsKey, "tls-key", "", "TLS key path")
	root.PersistentFlags().StringVar(&userOpt, "user", "", "MQTT username")
	root.PersistentFlags().StringVar(&passOpt, "pass", "", "MQTT password")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return core.WrapError(core.ExitUsage, "load config", err)
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if topicBase == msp.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if !cmd.Flags().Changed("timeout") && cfg.Timeout != "" {
			parsed, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return core.WrapError(core.ExitUsage, "config timeout", err)
			}
			timeout = parsed
		}
		if broker == "" {
			return &core.CLIError{Code: core.ExitUsage, Msg: "broker is required (set --broker or config)"}
		}
		if noColor || jsonOut {
			output.DisableStyling()
		}

		sessions, err := sessionstore.NewStore()
		if err != nil {
			return err
		}

		clientID := fmt.Sprintf("mss-%d", time.Now().UnixNano())
		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  clientID,
			Username:  userOpt,
			Password:  passOpt,
			TLSCA:     tlsCA,
			TLSCert:   tlsCert,
			TLSKey:    tlsKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return core.WrapError(core.ExitRuntime, "connect broker", err)
		}

		coreCfg := core.Config{
			Broker:    broker,
			Identity:  identity,
			TopicBase: topicBase,
			Aliases:   cfg.Aliases,
			Defaults:  core.Defaults{Server: cfg.Defaults.Server},
		}

		service := core.Service{
			Broker:   mqttClient,
			Resolver: core.Resolver{Presence: mqttClient, Config: coreCfg},
			Clock:    clock.Clock{},
			IDGen:    idgen.Generator{},
			Sessions: sessions,
			Config:   coreCfg,
		}

		var printer output.Printer = output.HumanPrinter{}
		if jsonOut {
			printer = output.JSONPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			printer: printer,
			client:  mqttClient,
			quiet:   quiet,
			json:    jsonOut,
			timeout: timeout,
		}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app := fromContext(cmd); app != nil && app.client != nil {
			app.client.Close()
		}
	}

	root.AddCommand(lsCommand())
	root.AddCommand(connectCommand())
	root.AddCommand(disconnectCommand())
	root.AddCommand(rootItemCommand())
	root.AddCommand(itemCommand())
	root.AddCommand(browseCommand())
	root.AddCommand(subscribeCommand())
	root.AddCommand(shuffleCommand())
	root.AddCommand(customCommand())
	root.AddCommand(addCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(watchCommand())

	return root
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	val := ctx.Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

// printUnlessQuiet prints a confirmation result; errors still surface via exit code.
func (a *app) printUnlessQuiet(v any) error {
	if a.quiet && !a.json {
		return nil
	}
	return a.printer.Print(v)
}

func selectorArg(args []string, index int) string {
	if len(args) > index {
		return args[index]
	}
	return ""
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "mss-unknown"
}
