package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/internal/adapters/mqttserver"
	embeddedmqtt "github.com/mikey-austin/media_session/internal/modules/embedded_mqtt"
	mediasession "github.com/mikey-austin/media_session/internal/modules/media_session"
	wsgateway "github.com/mikey-austin/media_session/internal/modules/ws_gateway"
	"github.com/mikey-austin/media_session/internal/mssd"
	"github.com/mikey-austin/media_session/pkg/msp"
)

const defaultNodeID = "mss:session:default"

type overrides struct {
	broker    string
	identity  string
	topicBase string
	logLevel  string
	logFormat string
	logOutput string
	logSource bool
	logUTC    bool
	logColor  bool
}

func main() {
	var (
		configPath  string
		ov          overrides
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := mssd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&ov.broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&ov.identity, "identity", "", "server identity override")
	flag.StringVar(&ov.topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&ov.logLevel, "log-level", "", "log level override")
	flag.StringVar(&ov.logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&ov.logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&ov.logSource, "log-source", false, "include caller in logs")
	flag.BoolVar(&ov.logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&ov.logColor, "log-color", false, "enable colored log levels (text only)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := mssd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, ov)

	if printConfig {
		printResolvedConfig(os.Stdout, cfg)
		return
	}
	if dryRun {
		return
	}

	logger := mssd.NewLogger(mssd.LogConfig{
		Level:     cfg.Server.LogLevel,
		Format:    cfg.Server.LogFormat,
		Output:    cfg.Server.LogOutput,
		AddSource: cfg.Server.LogSource,
		UTC:       cfg.Server.LogUTC,
		Color:     cfg.Server.LogColor,
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("mssd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.String("log_format", cfg.Server.LogFormat),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if needsMQTT(cfg, moduleOnly) {
		if cfg.Server.Broker == "" {
			logger.Error("broker is required")
			os.Exit(1)
		}
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("mssd-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
			Logger:    logger.With(zap.String("component", "mqtt")),
			Debug:     cfg.Server.LogLevel == "debug",
			WillTopic: msp.TopicPresence(cfg.Server.TopicBase, cfg.Modules.MediaSession.NodeID),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	modules, err := buildModules(ctx, cfg, client, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := mssd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *mssd.Config, ov overrides) {
	if ov.broker != "" {
		cfg.Server.Broker = ov.broker
	}
	if ov.identity != "" {
		cfg.Server.Identity = ov.identity
	}
	if ov.topicBase != "" {
		cfg.Server.TopicBase = ov.topicBase
	}
	if ov.logLevel != "" {
		cfg.Server.LogLevel = ov.logLevel
	}
	if ov.logFormat != "" {
		cfg.Server.LogFormat = ov.logFormat
	}
	if ov.logOutput != "" {
		cfg.Server.LogOutput = ov.logOutput
	}
	if ov.logSource {
		cfg.Server.LogSource = true
	}
	if ov.logUTC {
		cfg.Server.LogUTC = true
	}
	if ov.logColor {
		cfg.Server.LogColor = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = msp.BaseTopic
	}
	if cfg.Modules.MediaSession.NodeID == "" {
		cfg.Modules.MediaSession.NodeID = defaultNodeID
	}
	if cfg.Modules.MediaSession.Name == "" {
		cfg.Modules.MediaSession.Name = cfg.Server.Identity
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func needsMQTT(cfg mssd.Config, moduleOnly string) bool {
	if !cfg.Modules.MediaSession.Enabled {
		return false
	}
	return moduleOnly == "" || moduleOnly == "media_session"
}

func buildModules(ctx context.Context, cfg mssd.Config, client *mqttserver.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]mssd.ModuleRunner, error) {
	selected := func(name string) bool { return moduleOnly == "" || moduleOnly == name }

	modules := []mssd.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded && selected("embedded_mqtt") {
		mod, err := newEmbeddedBroker(cfg, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mssd.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
	}

	wantSession := cfg.Modules.MediaSession.Enabled && selected("media_session")
	wantGateway := cfg.Modules.WSGateway.Enabled && selected("ws_gateway")
	if wantSession || wantGateway {
		sess, err := mssd.BuildSession(ctx, logger.With(zap.String("module", "session")), cfg.Modules.MediaSession)
		if err != nil {
			return nil, err
		}

		if wantSession {
			if client == nil {
				return nil, errors.New("media_session requires an mqtt connection")
			}
			mod, err := mediasession.NewModule(logger.With(zap.String("module", "media_session")), client, sess.Service, mediasession.Config{
				NodeID:      cfg.Modules.MediaSession.NodeID,
				TopicBase:   cfg.Server.TopicBase,
				Name:        cfg.Modules.MediaSession.Name,
				IdleTimeout: time.Duration(cfg.Modules.MediaSession.IdleTimeoutMS) * time.Millisecond,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, mssd.ModuleRunner{Name: "media_session", Run: mod.Run})
		}

		if wantGateway {
			mod, err := wsgateway.NewModule(logger.With(zap.String("module", "ws_gateway")), sess.Service, wsgateway.Config{
				Listen: cfg.Modules.WSGateway.Listen,
				Path:   cfg.Modules.WSGateway.Path,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, mssd.ModuleRunner{Name: "ws_gateway", Run: mod.Run})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg mssd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.MediaSession.Enabled {
		out = append(out, "media_session")
	}
	if cfg.Modules.WSGateway.Enabled {
		out = append(out, "ws_gateway")
	}
	return out
}

func printResolvedConfig(w io.Writer, cfg mssd.Config) {
	fmt.Fprintf(w,
		"broker=%s identity=%s topic_base=%s log_level=%s log_format=%s log_output=%s node_id=%s catalog=%s feeds=%d driver=%s modules=%v\n",
		cfg.Server.Broker,
		cfg.Server.Identity,
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		cfg.Modules.MediaSession.NodeID,
		cfg.Modules.MediaSession.CatalogPath,
		len(cfg.Modules.MediaSession.Feeds),
		cfg.Modules.MediaSession.Driver,
		enabledModules(cfg),
	)
}

func embeddedConfig(cfg mssd.Config) embeddedmqtt.Config {
	return embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
		TopicBase:      cfg.Server.TopicBase,
	}
}

func embeddedBrokerURL(cfg mssd.Config) string {
	ec := embeddedConfig(cfg)
	listen := ec.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return embeddedmqtt.BrokerURL(listen, ec.TLSEnabled())
}

func newEmbeddedBroker(cfg mssd.Config, logger *zap.Logger) (*embeddedmqtt.Module, error) {
	return embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedConfig(cfg))
}

// startEmbeddedBroker runs the broker ahead of the supervisor so the MQTT
// client can connect to it.
func startEmbeddedBroker(ctx context.Context, cfg mssd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := newEmbeddedBroker(cfg, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()

	select {
	case <-mod.Ready():
	case err := <-errCh:
		if err == nil {
			err = errors.New("embedded mqtt stopped before listening")
		}
		return err
	case <-time.After(3 * time.Second):
		return errors.New("embedded mqtt not ready")
	}

	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()
	return waitForListen(mod.BrokerURL(), cfg.Modules.EmbeddedMQTT.Listen, time.Second)
}

func waitForListen(brokerURL string, listen string, timeout time.Duration) error {
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not reachable at %s", brokerURL)
}
