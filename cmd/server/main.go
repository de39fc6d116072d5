package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/knowme/internal/api"
	"github.com/kiliankoe/knowme/internal/catalog"
	"github.com/kiliankoe/knowme/internal/config"
	"github.com/kiliankoe/knowme/internal/event"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/kiliankoe/knowme/internal/metrics"
	"github.com/kiliankoe/knowme/internal/notify"
	"github.com/kiliankoe/knowme/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	version         = "v1.0.0-dev"
	deliveryTimeout = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	var v *viper.Viper
	cmd := &cobra.Command{
		Use:           "knowme",
		Short:         "Realtime party quiz where players guess each other's answers.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ApplyEnv(cmd.Flags(), v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			setupLogging(cfg)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	v = config.Bind(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("knowme {{.Version}}\n")
	return cmd
}

// zerolog setup (human-friendly console)
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)
	lvl, _ := cfg.Level()
	zerolog.SetGlobalLevel(lvl)
}

func serve(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(cfg.EventBuffer, deliveryTimeout)
	dispatcher.OnDrop = metrics.EventDropped

	rm, err := game.NewRegistry(cat, dispatcher)
	if err != nil {
		return err
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())
	r.Use(corsMiddleware(cfg))
	if cfg.Metrics {
		r.Use(metrics.Middleware())
		r.GET("/metrics", metrics.Handler())
		metrics.RegisterSessionGauge(rm.Len)
		dispatcher.Register("metrics", metrics.Sink{})
	}

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	sock := ws.New(rm)
	io := sock.Mount(r)
	defer io.Close()
	dispatcher.Register("socketio", sock)

	feed := ws.NewFeed(cfg.AllowedOrigins)
	r.GET("/ws/:pin", feed.Handler())
	dispatcher.Register("feed", feed)

	publisher, err := event.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if publisher.Enabled() {
		dispatcher.Register("amqp", publisher)
	}

	if cfg.ExportEnabled {
		dispatcher.Register("export", game.NewExporter(cfg.ExportFile))
		log.Info().Str("file", cfg.ExportFile).Msg("round export enabled")
	}

	api.NewHandler(rm, cfg.PublicURL).Register(r)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatcher.Run(dispatchCtx)
	}()

	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Int("rounds", len(cat.RoundsOrdered())).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		stopDispatch()
		<-dispatched
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stopDispatch()
	<-dispatched
	return err
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	}
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if cfg.AllowsAnyOrigin() {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}
