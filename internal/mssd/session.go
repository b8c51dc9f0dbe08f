package mssd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/media_session/internal/catalog"
	"github.com/mikey-austin/media_session/internal/commands"
	"github.com/mikey-austin/media_session/internal/layout"
	mediasession "github.com/mikey-austin/media_session/internal/modules/media_session"
	"github.com/mikey-austin/media_session/internal/player"
	"github.com/mikey-austin/media_session/internal/session"
)

const defaultFeedTimeout = 10 * time.Second

// Session is the assembled session core shared by every transport module.
type Session struct {
	Catalog *catalog.Catalog
	Player  *player.Local
	Handler *session.Handler
	Service *mediasession.Service
}

// BuildSession loads the catalog, starts from the default shuffle-on layout
// and wires the handler to a local player. Any failure here is fatal for mssd.
func BuildSession(ctx context.Context, log *zap.Logger, cfg MediaSessionConfig) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	desc, err := catalog.LoadDescription(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(cfg.Feeds) > 0 {
		timeout := defaultFeedTimeout
		if cfg.FeedTimeoutMS > 0 {
			timeout = time.Duration(cfg.FeedTimeoutMS) * time.Millisecond
		}
		importer := catalog.FeedImporter{
			HTTP: &http.Client{Timeout: timeout},
			Log:  log.With(zap.String("component", "feeds")),
		}
		desc = importer.Import(ctx, desc, cfg.Feeds)
	}
	cat, err := catalog.Build(desc)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	log.Info("catalog loaded", zap.Int("nodes", cat.Len()), zap.Int("leaves", len(cat.Leaves())))

	driver, err := newDriver(cfg)
	if err != nil {
		return nil, err
	}
	local := player.NewLocal(log.With(zap.String("component", "player")), player.Config{HandleAudioFocus: cfg.HandleAudioFocus}, driver)

	controllers := session.NewControllers(log)
	state := layout.New([]commands.CustomAction{commands.ShuffleOn}, controllers)
	handler, err := session.NewHandler(session.Options{
		Log:         log,
		Catalog:     cat,
		Registry:    commands.Default(),
		Layout:      state,
		Controllers: controllers,
		Player:      local,
	})
	if err != nil {
		return nil, err
	}
	local.OnCues(handler.OnCues)

	return &Session{
		Catalog: cat,
		Player:  local,
		Handler: handler,
		Service: mediasession.NewService(log, handler, local),
	}, nil
}

func newDriver(cfg MediaSessionConfig) (player.Driver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "null":
		return &player.NullDriver{}, nil
	case "gstreamer":
		driver, err := player.NewGStreamerDriver(cfg.Pipeline, cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("gstreamer driver: %w", err)
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown player driver %q", cfg.Driver)
	}
}
