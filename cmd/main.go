package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/tt-live-music-player/internal/config"
	"github.com/weiawesome/tt-live-music-player/internal/handler"
	"github.com/weiawesome/tt-live-music-player/internal/hub"
	"github.com/weiawesome/tt-live-music-player/internal/kafka"
	"github.com/weiawesome/tt-live-music-player/internal/registry"
	"github.com/weiawesome/tt-live-music-player/internal/resolver"
	"github.com/weiawesome/tt-live-music-player/internal/router"
	"github.com/weiawesome/tt-live-music-player/internal/service"
	"github.com/weiawesome/tt-live-music-player/internal/session"
	"github.com/weiawesome/tt-live-music-player/internal/stats"
	"github.com/weiawesome/tt-live-music-player/internal/upstream"
	pkglog "github.com/weiawesome/tt-live-music-player/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:    cfg.Log.Level,
		Pretty:   cfg.Log.Pretty,
		Service:  "jukebox",
		Instance: cfg.Server.InstanceID,
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional resolve cache
	var cache resolver.Cache
	if cfg.Cache.Enabled {
		rc, err := resolver.NewRedisCache(cfg.Cache)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Cache.Address).Msg("resolve cache unavailable, continuing without it")
		} else {
			cache = rc
			defer rc.Close()
			logger.Info().Str("addr", cfg.Cache.Address).Msg("resolve cache connected")
		}
	}

	// Optional claim mirror
	var observer registry.ClaimObserver
	if cfg.Mirror.Enabled {
		mirror, err := registry.NewRedisMirror(cfg.Mirror, cfg.Server.InstanceID)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Mirror.Address).Msg("claim mirror unavailable, continuing without it")
		} else {
			if err := mirror.StartHeartbeat(ctx); err != nil {
				logger.Warn().Err(err).Msg("claim mirror heartbeat failed to start")
			}
			observer = mirror
			defer mirror.Close()
			logger.Info().Str("addr", cfg.Mirror.Address).Msg("claim mirror connected")
		}
	}

	// Optional song request export
	var producer kafka.SongRequestProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka, cfg.Server.InstanceID)
		if err != nil {
			logger.Warn().Err(err).Str("brokers", cfg.Kafka.Brokers).Msg("kafka unavailable, song requests will not be exported")
		} else {
			producer = p
			defer p.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka producer connected")
		}
	}

	reg := registry.New(observer)
	res := resolver.NewCachingResolver(
		resolver.NewYouTubeResolver(cfg.Resolver),
		cache,
		cfg.Cache.TTL,
		cfg.Cache.NegativeTTL,
	)
	agg := stats.NewAggregator()

	// Initialize Hub
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()
	defer wsHub.Stop()

	jukeboxSvc := service.NewJukeboxService(wsHub, reg, agg, session.Dependencies{
		Connector: upstream.NewWebcastConnector(cfg.Upstream),
		Router:    router.New(res, agg, producer),
	}, service.Config{
		Session: session.Options{
			CommentCapacity:  cfg.Session.CommentCapacity,
			MailboxWarnDepth: cfg.Session.MailboxWarnDepth,
		},
		BroadcastInterval: cfg.Statistics.BroadcastInterval,
	})
	if err := jukeboxSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start jukebox service")
	}
	defer jukeboxSvc.Stop()

	// Setup HTTP server
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), pkglog.GinMiddleware(logger))

	wsHandler := handler.NewWSHandler(wsHub, jukeboxSvc, cfg.WebSocket)
	engine.GET("/ws", wsHandler.HandleWebSocket)
	handler.NewHTTPHandler(jukeboxSvc).RegisterRoutes(engine)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("jukebox listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down jukebox")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("jukebox stopped")
}
